package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/mercatolabs/mercato/internal/metrics"
	"github.com/mercatolabs/mercato/pkg/cache"
	"github.com/mercatolabs/mercato/pkg/logger"
)

const responseKeyPrefix = "resp:"

// responseCache accelerates resolved result fragments. It is never
// authoritative: every failure on the underlying cache degrades to a miss, and
// a disabled cache (nil engine) misses everything.
//
// Keys written by this process are indexed per namespace so mutations can
// invalidate the fragments they affect. Entries written by sibling processes
// are not in the index; those age out by TTL instead.
type responseCache struct {
	engine cache.Cache
	ttl    time.Duration
	log    logger.Logger

	mu    sync.Mutex
	index map[string]map[string]struct{}
}

func newResponseCache(engine cache.Cache, ttl time.Duration, log logger.Logger) *responseCache {
	return &responseCache{
		engine: engine,
		ttl:    ttl,
		log:    log,
		index:  make(map[string]map[string]struct{}),
	}
}

// fragmentKey reduces the identifying parts of a fragment to a fixed-width
// cache key.
func fragmentKey(parts ...string) string {
	h := xxhash.New()
	for _, part := range parts {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// get unmarshals the cached fragment under (namespace, key) into out. False
// means miss, including every error path.
func (r *responseCache) get(ctx context.Context, namespace, key string, out interface{}) bool {
	if r.engine == nil {
		return false
	}

	raw, err := r.engine.Get(ctx, responseKeyPrefix+namespace+":"+key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			r.log.Debug("response cache read degraded to miss", zap.String("namespace", namespace), zap.Error(err))
		}
		metrics.ResponseCacheHits.WithLabelValues("miss").Inc()
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		r.log.Debug("response cache entry unreadable", zap.String("namespace", namespace), zap.Error(err))
		metrics.ResponseCacheHits.WithLabelValues("miss").Inc()
		return false
	}

	metrics.ResponseCacheHits.WithLabelValues("hit").Inc()
	return true
}

// set stores the fragment best effort and records the key in the namespace
// index.
func (r *responseCache) set(ctx context.Context, namespace, key string, value interface{}) {
	if r.engine == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		r.log.Debug("response cache fragment not serializable", zap.String("namespace", namespace), zap.Error(err))
		return
	}

	fullKey := responseKeyPrefix + namespace + ":" + key
	if err := r.engine.Set(ctx, fullKey, raw, r.ttl); err != nil {
		r.log.Debug("response cache write dropped", zap.String("namespace", namespace), zap.Error(err))
		return
	}

	r.mu.Lock()
	keys, ok := r.index[namespace]
	if !ok {
		keys = make(map[string]struct{})
		r.index[namespace] = keys
	}
	keys[fullKey] = struct{}{}
	r.mu.Unlock()
}

// invalidate deletes every indexed key of the namespace, best effort and
// concurrently. A failed delete is logged and forgotten; the entry expires by
// TTL.
func (r *responseCache) invalidate(ctx context.Context, namespace string) {
	if r.engine == nil {
		return
	}

	r.mu.Lock()
	keys := r.index[namespace]
	delete(r.index, namespace)
	r.mu.Unlock()

	if len(keys) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(4)
	for key := range keys {
		key := key
		p.Go(func() {
			if err := r.engine.Del(ctx, key); err != nil {
				r.log.Debug("response cache invalidation dropped", zap.String("key", key), zap.Error(err))
			}
		})
	}
	p.Wait()
}
