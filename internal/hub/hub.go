// Package hub is an in-process rendezvous broker: producers deposit values
// under a key, consumers park on a key until a value arrives, and each value
// is delivered to exactly one consumer. Nothing is durable; abandoned values
// are reclaimed by a periodic sweep.
package hub

import (
	"context"
	"hash/maphash"
	"sync"
	"time"
)

// Value is the capability every storable value must supply: whether the
// party that produced it is still reachable. Dead values are swept instead
// of delivered.
type Value interface {
	IsAlive() bool
}

const shardCount = 16

// Hub pairs Submit with Acquire per key. Keys are sharded so activity on
// distinct keys does not serialize.
type Hub[K comparable, V Value] struct {
	seed   maphash.Seed
	shards [shardCount]shard[K, V]
}

type shard[K comparable, V Value] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
}

// entry holds, for one key, the undelivered values and the parked consumers.
// Both are FIFO. At most one of the two is non-empty at any time.
type entry[V Value] struct {
	queue   []V
	waiters []chan V
}

func New[K comparable, V Value]() *Hub[K, V] {
	h := &Hub[K, V]{seed: maphash.MakeSeed()}
	for i := range h.shards {
		h.shards[i].entries = make(map[K]*entry[V])
	}
	return h
}

func (h *Hub[K, V]) shardFor(key K) *shard[K, V] {
	return &h.shards[maphash.Comparable(h.seed, key)%shardCount]
}

// Submit deposits value under key and returns immediately. If a consumer is
// already parked on the key it receives the value directly; otherwise the
// value joins the key's FIFO queue until an Acquire or a sweep takes it.
func (h *Hub[K, V]) Submit(key K, value V) {
	s := h.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if e == nil {
		e = &entry[V]{}
		s.entries[key] = e
	}
	if len(e.waiters) > 0 {
		ch := e.waiters[0]
		e.waiters = e.waiters[1:]
		ch <- value // buffered; the waiter drains it or hands it back
		s.compact(key, e)
		return
	}
	e.queue = append(e.queue, value)
}

// Acquire returns the oldest value deposited under key, parking the caller
// until one arrives or ctx is done. Each value is handed to exactly one
// Acquire call. Values whose producer died while queued are discarded, never
// returned.
func (h *Hub[K, V]) Acquire(ctx context.Context, key K) (V, error) {
	var zero V
	s := h.shardFor(key)

	s.mu.Lock()
	e := s.entries[key]
	if e == nil {
		e = &entry[V]{}
		s.entries[key] = e
	}
	for len(e.queue) > 0 {
		v := e.queue[0]
		e.queue = e.queue[1:]
		if !v.IsAlive() {
			continue
		}
		s.compact(key, e)
		s.mu.Unlock()
		return v, nil
	}
	ch := make(chan V, 1)
	e.waiters = append(e.waiters, ch)
	s.mu.Unlock()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
	}

	// Cancelled. Withdraw the waiter, but a concurrent Submit may have
	// already handed a value to ch; if so, pass it on so it is not lost.
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		for i, w := range e.waiters {
			if w == ch {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				break
			}
		}
		s.compact(key, e)
	}
	select {
	case v := <-ch:
		h.requeueFrontLocked(s, key, v)
	default:
	}
	s.mu.Unlock()
	return zero, ctx.Err()
}

// requeueFrontLocked puts back a value that was delivered to a cancelling
// waiter. It goes to the next parked consumer if any, else to the front of
// the queue so FIFO order toward the next Acquire is preserved.
func (h *Hub[K, V]) requeueFrontLocked(s *shard[K, V], key K, v V) {
	e := s.entries[key]
	if e == nil {
		e = &entry[V]{}
		s.entries[key] = e
	}
	if len(e.waiters) > 0 {
		ch := e.waiters[0]
		e.waiters = e.waiters[1:]
		ch <- v
		s.compact(key, e)
		return
	}
	e.queue = append([]V{v}, e.queue...)
}

// compact drops the entry once it holds neither values nor waiters, keeping
// the key space bounded by actual activity.
func (s *shard[K, V]) compact(key K, e *entry[V]) {
	if len(e.queue) == 0 && len(e.waiters) == 0 {
		delete(s.entries, key)
	}
}

// Len returns the number of queued, undelivered values across all keys.
func (h *Hub[K, V]) Len() int {
	n := 0
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.Lock()
		for _, e := range s.entries {
			n += len(e.queue)
		}
		s.mu.Unlock()
	}
	return n
}

// SweepOnce evicts every queued value whose producer is no longer alive and
// returns how many were dropped. Eviction here and delivery via Acquire are
// the only two ways a value leaves the hub.
func (h *Hub[K, V]) SweepOnce() int {
	evicted := 0
	for i := range h.shards {
		s := &h.shards[i]
		s.mu.Lock()
		for key, e := range s.entries {
			kept := e.queue[:0]
			for _, v := range e.queue {
				if v.IsAlive() {
					kept = append(kept, v)
				} else {
					evicted++
				}
			}
			e.queue = kept
			s.compact(key, e)
		}
		s.mu.Unlock()
	}
	return evicted
}

// Sweep runs SweepOnce on the given interval until ctx is done. onEvict, if
// non-nil, is called with the eviction count of each pass that dropped
// anything.
func (h *Hub[K, V]) Sweep(ctx context.Context, interval time.Duration, onEvict func(n int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.SweepOnce(); n > 0 && onEvict != nil {
				onEvict(n)
			}
		}
	}
}
