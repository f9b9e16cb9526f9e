package cache

import (
	"context"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
)

const defaultMaxCacheSize = 10_000

// InMemory is an LRU Cache for single-node deployments and tests.
type InMemory struct {
	ccache      *ccache.Cache[[]byte]
	maxElements int64
	closeOnce   *sync.Once
}

var _ Cache = (*InMemory)(nil)

type InMemoryOpt func(*InMemory)

func WithMaxEntries(maxElements int64) InMemoryOpt {
	return func(c *InMemory) {
		c.maxElements = maxElements
	}
}

func NewInMemory(opts ...InMemoryOpt) *InMemory {
	c := &InMemory{
		maxElements: defaultMaxCacheSize,
		closeOnce:   &sync.Once{},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.ccache = ccache.New(ccache.Configure[[]byte]().MaxSize(c.maxElements))
	return c
}

func (c *InMemory) Get(_ context.Context, key string) ([]byte, error) {
	item := c.ccache.Get(key)
	if item == nil || item.Expired() {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

func (c *InMemory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.ccache.Set(key, value, ttl)
	return nil
}

func (c *InMemory) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		c.ccache.Delete(key)
	}
	return nil
}

func (c *InMemory) Exists(ctx context.Context, keys ...string) (bool, error) {
	for _, key := range keys {
		if _, err := c.Get(ctx, key); err == nil {
			return true, nil
		}
	}
	return false, nil
}

func (c *InMemory) Close() error {
	c.closeOnce.Do(func() {
		c.ccache.Stop()
	})
	return nil
}
