// Package persisted implements the persisted query store: registered query
// bodies addressable by a short content hash, so repeat clients can send the
// hash instead of the full body.
//
// Lookups consult a process-local LRU tier first, then the shared cache tier,
// backfilling the local tier on a shared hit. Registration writes both tiers;
// the shared write is best effort. A shared-tier outage therefore only costs
// cross-process hits, never request correctness.
package persisted

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mercatolabs/mercato/pkg/cache"
	"github.com/mercatolabs/mercato/pkg/logger"
)

const (
	defaultLocalMaxEntries = 1000
	defaultTTL             = 24 * time.Hour

	sharedKeyPrefix = "pq:"
)

// ErrNotFound means no body has been registered under the hash.
var ErrNotFound = errors.New("persisted query not found")

// Digest returns the content hash of a query body, as hex.
func Digest(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Store maps content hashes to previously registered query bodies. It is
// process-wide shared state with a lifecycle independent of any request.
type Store struct {
	local  *ccache.Cache[string]
	shared cache.Cache
	ttl    time.Duration
	log    logger.Logger

	group     singleflight.Group
	closeOnce sync.Once
}

type Option func(*Store)

// WithSharedTier attaches a shared cache tier so registrations survive process
// restarts and are visible to sibling gateway instances.
func WithSharedTier(shared cache.Cache) Option {
	return func(s *Store) {
		s.shared = shared
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLocalMaxEntries(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.local = ccache.New(ccache.Configure[string]().MaxSize(n))
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		local: ccache.New(ccache.Configure[string]().MaxSize(defaultLocalMaxEntries)),
		ttl:   defaultTTL,
		log:   logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Resolve returns the body registered under hash, or ErrNotFound. Concurrent
// misses of the local tier for the same hash share one shared-tier lookup.
// Shared-tier failures are treated as misses.
func (s *Store) Resolve(ctx context.Context, hash string) (string, error) {
	if item := s.local.Get(hash); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	if s.shared == nil {
		return "", ErrNotFound
	}

	body, err, _ := s.group.Do(hash, func() (interface{}, error) {
		value, err := s.shared.Get(ctx, sharedKeyPrefix+hash)
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				s.log.Debug("persisted query shared tier degraded to miss",
					zap.String("hash", hash), zap.Error(err))
			}
			return "", ErrNotFound
		}
		return string(value), nil
	})
	if err != nil {
		return "", err
	}

	s.local.Set(hash, body.(string), s.ttl)
	return body.(string), nil
}

// Register stores body under hash in both tiers. Registration is idempotent;
// an existing hash is overwritten without comparing bodies (last write wins,
// a documented gap of the request protocol). The shared write is best effort.
func (s *Store) Register(ctx context.Context, hash, body string) {
	s.local.Set(hash, body, s.ttl)

	if s.shared == nil {
		return
	}
	if err := s.shared.Set(ctx, sharedKeyPrefix+hash, []byte(body), s.ttl); err != nil {
		s.log.Debug("persisted query shared registration dropped",
			zap.String("hash", hash), zap.Error(err))
	}
}

// Evict removes the hash from both tiers.
func (s *Store) Evict(ctx context.Context, hash string) {
	s.local.Delete(hash)

	if s.shared == nil {
		return
	}
	if err := s.shared.Del(ctx, sharedKeyPrefix+hash); err != nil {
		s.log.Debug("persisted query shared eviction dropped",
			zap.String("hash", hash), zap.Error(err))
	}
}

// Close releases the local tier. The shared tier is owned by the caller.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.local.Stop()
	})
}
