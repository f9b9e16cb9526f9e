// Package redis provides a redis-backed implementation of cache.Cache.
package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mercatolabs/mercato/pkg/cache"
)

var ErrAddrMissing = errors.New("redis addresses must be specified")

type options func(h *Handle)

// Handle adapts a redis universal client to the cache.Cache contract.
type Handle struct {
	db             int
	addrs          []string
	userCredential string
	passCredential string
	client         redis.UniversalClient
}

var _ cache.Cache = (*Handle)(nil)

func WithAddr(addrs string) options {
	return func(h *Handle) {
		h.addrs = strings.Split(addrs, ",")
	}
}

func WithUserCredential(credential string) options {
	return func(h *Handle) {
		h.userCredential = credential
	}
}

func WithPassCredential(credential string) options {
	return func(h *Handle) {
		h.passCredential = credential
	}
}

func WithDatabase(db int) options {
	return func(h *Handle) {
		h.db = db
	}
}

// New creates a new redis cache handle.
func New(opts ...options) (*Handle, error) {
	h := &Handle{}

	for _, opt := range opts {
		opt(h)
	}

	if h.addrs == nil {
		return nil, ErrAddrMissing
	}

	h.client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    h.addrs,
		Username: h.userCredential,
		Password: h.passCredential,
		DB:       h.db,
	})

	return h, nil
}

// Ping returns the redis server liveliness response.
func (h *Handle) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *Handle) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := h.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, cache.ErrNotFound
	case err != nil:
		return nil, err
	default:
		return value, nil
	}
}

func (h *Handle) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return h.client.Set(ctx, key, value, ttl).Err()
}

// Del removes the specified keys. A key is ignored if it does not exist.
func (h *Handle) Del(ctx context.Context, keys ...string) error {
	return h.client.Del(ctx, keys...).Err()
}

// Exists reports whether any of the specified keys exist.
func (h *Handle) Exists(ctx context.Context, keys ...string) (bool, error) {
	n, err := h.client.Exists(ctx, keys...).Result()
	return n != 0, err
}

// Close closes the server connection.
func (h *Handle) Close() error {
	return h.client.Close()
}
