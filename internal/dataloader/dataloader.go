// Package dataloader eliminates duplicate and N+1 backing-store calls within
// one request's resolution tree.
//
// A Loader collects keys submitted during the same resolution step, waits for
// a short batching window so concurrently-resolving fields can enqueue more
// keys, then issues exactly one fetch with the deduplicated key set. Results
// are memoized for the lifetime of the loader, so a second load of an
// already-resolved key never triggers another store round-trip.
//
// Loaders are built fresh per request and must never be shared across
// requests.
package dataloader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	defaultWait     = 2 * time.Millisecond
	defaultMaxBatch = 100
)

// FetchFunc fetches the values for a deduplicated set of keys. Values must be
// returned in key order; a missing key yields the zero value at its position.
// The returned error fails every caller waiting on the batch.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

// GroupFetchFunc fetches one-to-many relationship rows for a set of owner
// keys, partitioned by owner. Owners with no rows may be absent from the map.
type GroupFetchFunc[K comparable, V any] func(ctx context.Context, ownerKeys []K) (map[K][]V, error)

type Option func(*config)

type config struct {
	wait       time.Duration
	maxBatch   int
	onDispatch func(batchSize int)
}

// WithWait overrides the batching window.
func WithWait(wait time.Duration) Option {
	return func(c *config) {
		c.wait = wait
	}
}

// WithMaxBatch caps how many unique keys a single fetch may carry. A full
// batch dispatches immediately without waiting for the window to elapse.
func WithMaxBatch(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBatch = n
		}
	}
}

// WithDispatchObserver registers a callback invoked with the size of every
// dispatched batch. Used to feed metrics.
func WithDispatchObserver(fn func(batchSize int)) Option {
	return func(c *config) {
		c.onDispatch = fn
	}
}

type thunk[V any] struct {
	done  chan struct{}
	value V
	err   error
}

type batch[K comparable, V any] struct {
	keys    []K
	thunks  []*thunk[V]
	trigger chan struct{}
	fired   bool
}

// Loader batches and memoizes loads of one entity shape for one request.
type Loader[K comparable, V any] struct {
	fetch FetchFunc[K, V]
	cfg   config

	mu    sync.Mutex
	cache map[K]*thunk[V]
	batch *batch[K, V]
}

// New constructs a Loader around the given fetch function.
func New[K comparable, V any](fetch FetchFunc[K, V], opts ...Option) *Loader[K, V] {
	cfg := config{wait: defaultWait, maxBatch: defaultMaxBatch}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Loader[K, V]{
		fetch: fetch,
		cfg:   cfg,
		cache: make(map[K]*thunk[V]),
	}
}

// NewGrouped constructs a Loader for one-to-many relationships. All owner keys
// enqueued within the same batching window coalesce into one backing fetch,
// whose result is partitioned back per owner. Owners with no rows load a nil
// slice.
func NewGrouped[K comparable, V any](fetch GroupFetchFunc[K, V], opts ...Option) *Loader[K, []V] {
	return New(func(ctx context.Context, keys []K) ([][]V, error) {
		grouped, err := fetch(ctx, keys)
		if err != nil {
			return nil, err
		}

		values := make([][]V, len(keys))
		for i, key := range keys {
			values[i] = grouped[key]
		}
		return values, nil
	}, opts...)
}

// Load returns the value for key, scheduling it on the next batch if it has
// not been requested before. Safe to call from many goroutines with the same
// key; all of them receive the same resolved value.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	return l.LoadThunk(ctx, key)(ctx)
}

// LoadThunk enqueues key and returns a function that blocks until the batch
// carrying it has resolved. It lets callers enqueue several keys before
// waiting on any of them.
func (l *Loader[K, V]) LoadThunk(ctx context.Context, key K) func(context.Context) (V, error) {
	l.mu.Lock()

	if t, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return t.wait
	}

	t := &thunk[V]{done: make(chan struct{})}
	l.cache[key] = t

	if l.batch == nil {
		b := &batch[K, V]{trigger: make(chan struct{})}
		l.batch = b
		go l.run(ctx, b)
	}

	b := l.batch
	b.keys = append(b.keys, key)
	b.thunks = append(b.thunks, t)

	if len(b.keys) >= l.cfg.maxBatch {
		l.fire(b)
	}

	l.mu.Unlock()
	return t.wait
}

// LoadMany loads every key, preserving order. Missing keys yield zero values;
// the first batch failure is returned.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, error) {
	thunks := make([]func(context.Context) (V, error), len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(ctx, key)
	}

	values := make([]V, len(keys))
	var firstErr error
	for i, wait := range thunks {
		v, err := wait(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		values[i] = v
	}
	return values, firstErr
}

// Prime seeds the cache with an already-fetched value. A later Load of the
// same key resolves immediately without touching the store. Existing entries
// are left untouched.
func (l *Loader[K, V]) Prime(key K, value V) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[key]; ok {
		return
	}

	t := &thunk[V]{done: make(chan struct{}), value: value}
	close(t.done)
	l.cache[key] = t
}

// fire detaches the batch and triggers its dispatch. Caller must hold l.mu.
func (l *Loader[K, V]) fire(b *batch[K, V]) {
	if b.fired {
		return
	}
	b.fired = true
	if l.batch == b {
		l.batch = nil
	}
	close(b.trigger)
}

// run waits for the batching window (or an early trigger), then executes the
// single fetch for the batch and resolves every waiter.
func (l *Loader[K, V]) run(ctx context.Context, b *batch[K, V]) {
	timer := time.NewTimer(l.cfg.wait)
	defer timer.Stop()

	select {
	case <-b.trigger:
	case <-timer.C:
		l.mu.Lock()
		l.fire(b)
		l.mu.Unlock()
	}

	if l.cfg.onDispatch != nil {
		l.cfg.onDispatch(len(b.keys))
	}

	values, err := l.fetch(ctx, b.keys)
	if err == nil && len(values) != len(b.keys) {
		err = fmt.Errorf("dataloader: fetch returned %d values for %d keys", len(values), len(b.keys))
	}

	for i, t := range b.thunks {
		if err != nil {
			t.err = err
		} else {
			t.value = values[i]
		}
		close(t.done)
	}
}

func (t *thunk[V]) wait(ctx context.Context) (V, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
