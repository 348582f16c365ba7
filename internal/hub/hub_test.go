package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type item struct {
	id    int
	alive atomic.Bool
}

func newItem(id int) *item {
	it := &item{id: id}
	it.alive.Store(true)
	return it
}

func (i *item) IsAlive() bool { return i.alive.Load() }

func TestSubmitThenAcquire(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	v := newItem(1)
	h.Submit("k", v)

	got, err := h.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != v {
		t.Fatalf("got %#v, want %#v", got, v)
	}
	if h.Len() != 0 {
		t.Fatalf("Len = %d, want 0", h.Len())
	}
}

func TestAcquireReturnsValuesInFIFOOrder(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	first := newItem(1)
	second := newItem(2)
	h.Submit("k", first)
	h.Submit("k", second)

	got, err := h.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if got != first {
		t.Fatalf("first acquire got id %d, want 1", got.id)
	}
	got, err = h.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if got != second {
		t.Fatalf("second acquire got id %d, want 2", got.id)
	}
}

func TestAcquireParksUntilSubmit(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	v := newItem(1)

	done := make(chan *item, 1)
	go func() {
		got, err := h.Acquire(context.Background(), "k")
		if err != nil {
			t.Errorf("Acquire: %v", err)
		}
		done <- got
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Acquire returned before Submit")
	default:
	}

	h.Submit("k", v)
	select {
	case got := <-done:
		if got != v {
			t.Fatalf("got id %d, want 1", got.id)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire did not resume after Submit")
	}
}

func TestWaitersServedInFIFOOrder(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()

	results := make([]chan *item, 2)
	for i := range results {
		results[i] = make(chan *item, 1)
		ch := results[i]
		go func() {
			got, err := h.Acquire(context.Background(), "k")
			if err != nil {
				t.Errorf("Acquire: %v", err)
			}
			ch <- got
		}()
		// Let this waiter park before starting the next one.
		time.Sleep(50 * time.Millisecond)
	}

	first := newItem(1)
	second := newItem(2)
	h.Submit("k", first)
	h.Submit("k", second)

	for i, want := range []*item{first, second} {
		select {
		case got := <-results[i]:
			if got != want {
				t.Fatalf("waiter %d got id %d, want %d", i, got.id, want.id)
			}
		case <-time.After(time.Second):
			t.Fatalf("waiter %d never resumed", i)
		}
	}
}

func TestConcurrentAcquireDeliversEachValueOnce(t *testing.T) {
	t.Parallel()

	const n = 100
	h := New[string, *item]()

	var wg sync.WaitGroup
	got := make(chan *item, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := h.Acquire(context.Background(), "k")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			got <- v
		}()
	}
	for i := 0; i < n; i++ {
		h.Submit("k", newItem(i))
	}
	wg.Wait()
	close(got)

	seen := make(map[*item]bool, n)
	for v := range got {
		if seen[v] {
			t.Fatalf("value %d delivered twice", v.id)
		}
		seen[v] = true
	}
	if len(seen) != n {
		t.Fatalf("delivered %d distinct values, want %d", len(seen), n)
	}
}

func TestDistinctKeysDoNotMix(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	a := newItem(1)
	b := newItem(2)
	h.Submit("a", a)
	h.Submit("b", b)

	got, err := h.Acquire(context.Background(), "b")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != b {
		t.Fatalf("acquired id %d under key b, want 2", got.id)
	}
}

func TestSweepEvictsDeadValues(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	dead := newItem(1)
	live := newItem(2)
	h.Submit("k", dead)
	h.Submit("k", live)
	dead.alive.Store(false)

	if n := h.SweepOnce(); n != 1 {
		t.Fatalf("SweepOnce = %d, want 1", n)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}

	got, err := h.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != live {
		t.Fatalf("acquired id %d, want 2", got.id)
	}
}

func TestAcquireSkipsDeadValues(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	dead := newItem(1)
	live := newItem(2)
	h.Submit("k", dead)
	h.Submit("k", live)
	dead.alive.Store(false)

	got, err := h.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got != live {
		t.Fatalf("acquired id %d, want 2", got.id)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := h.Acquire(ctx, "k"); err == nil {
		t.Fatal("Acquire returned without a value or error")
	}

	// The abandoned waiter must not swallow a later submission.
	v := newItem(1)
	h.Submit("k", v)
	got, err := h.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire after cancel: %v", err)
	}
	if got != v {
		t.Fatalf("acquired id %d, want 1", got.id)
	}
}

func TestSweepLoopStopsOnContextDone(t *testing.T) {
	t.Parallel()

	h := New[string, *item]()
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		h.Sweep(ctx, 10*time.Millisecond, nil)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Sweep did not stop after cancellation")
	}
}
