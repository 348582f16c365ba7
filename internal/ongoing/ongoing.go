// Package ongoing tracks work handed out by the broker while a consumer
// computes on it, keyed by a fresh per-dispatch identity so a later result
// report can be correlated.
package ongoing

import (
	"context"
	"errors"
	"hash/maphash"
	"sync"
	"time"
)

// Value mirrors the broker's liveness capability: an entry whose original
// requester is gone gets swept instead of waiting forever for a result.
type Value interface {
	IsAlive() bool
}

// ErrDuplicateID is returned by Add when the id is already registered.
// Ids are high-entropy, so hitting this indicates a caller bug.
var ErrDuplicateID = errors.New("ongoing: duplicate id")

const shardCount = 16

// Ongoing is a concurrent id-to-value registry with a background sweep.
type Ongoing[K comparable, V Value] struct {
	seed   maphash.Seed
	shards [shardCount]shard[K, V]
}

type shard[K comparable, V Value] struct {
	mu      sync.Mutex
	entries map[K]V
}

func New[K comparable, V Value]() *Ongoing[K, V] {
	o := &Ongoing[K, V]{seed: maphash.MakeSeed()}
	for i := range o.shards {
		o.shards[i].entries = make(map[K]V)
	}
	return o
}

func (o *Ongoing[K, V]) shardFor(key K) *shard[K, V] {
	return &o.shards[maphash.Comparable(o.seed, key)%shardCount]
}

// Add registers value under id at dispatch time.
func (o *Ongoing[K, V]) Add(id K, value V) error {
	s := o.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return ErrDuplicateID
	}
	s.entries[id] = value
	return nil
}

// Remove takes the value registered under id, reporting false if it was
// never added, already removed, or swept. Calling it again is harmless.
func (o *Ongoing[K, V]) Remove(id K) (V, bool) {
	s := o.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	return v, ok
}

// Len returns the number of in-flight entries.
func (o *Ongoing[K, V]) Len() int {
	n := 0
	for i := range o.shards {
		s := &o.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// SweepOnce evicts entries whose requester vanished while the consumer was
// still working, returning the eviction count.
func (o *Ongoing[K, V]) SweepOnce() int {
	evicted := 0
	for i := range o.shards {
		s := &o.shards[i]
		s.mu.Lock()
		for id, v := range s.entries {
			if !v.IsAlive() {
				delete(s.entries, id)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}

// Sweep runs SweepOnce on the given interval until ctx is done.
func (o *Ongoing[K, V]) Sweep(ctx context.Context, interval time.Duration, onEvict func(n int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := o.SweepOnce(); n > 0 && onEvict != nil {
				onEvict(n)
			}
		}
	}
}
