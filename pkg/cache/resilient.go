package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mercatolabs/mercato/pkg/logger"
)

// Resilient wraps a Cache so that an unreachable or failing backend degrades
// to a no-op: every Get becomes a miss, every Set/Del becomes best effort.
// Failures are logged at debug and never propagate to the request.
type Resilient struct {
	inner Cache
	log   logger.Logger
}

var _ Cache = (*Resilient)(nil)

func NewResilient(inner Cache, log logger.Logger) *Resilient {
	return &Resilient{inner: inner, log: log}
}

func (r *Resilient) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.inner.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Debug("cache get degraded to miss", zap.String("key", key), zap.Error(err))
		}
		return nil, ErrNotFound
	}
	return value, nil
}

func (r *Resilient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.inner.Set(ctx, key, value, ttl); err != nil {
		r.log.Debug("cache set dropped", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (r *Resilient) Del(ctx context.Context, keys ...string) error {
	if err := r.inner.Del(ctx, keys...); err != nil {
		r.log.Debug("cache del dropped", zap.Strings("keys", keys), zap.Error(err))
	}
	return nil
}

func (r *Resilient) Exists(ctx context.Context, keys ...string) (bool, error) {
	ok, err := r.inner.Exists(ctx, keys...)
	if err != nil {
		r.log.Debug("cache exists degraded to false", zap.Strings("keys", keys), zap.Error(err))
		return false, nil
	}
	return ok, nil
}

func (r *Resilient) Close() error {
	return r.inner.Close()
}
