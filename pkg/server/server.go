// Package server assembles the graphql resolution pipeline: shape guard,
// authentication, per-request loader registry, cursor paging, persisted
// queries and the response cache, exposed over one HTTP endpoint.
package server

import (
	"time"

	"github.com/graphql-go/graphql"

	"github.com/mercatolabs/mercato/internal/authn"
	"github.com/mercatolabs/mercato/internal/persisted"
	"github.com/mercatolabs/mercato/internal/shapeguard"
	"github.com/mercatolabs/mercato/pkg/cache"
	"github.com/mercatolabs/mercato/pkg/encoder"
	"github.com/mercatolabs/mercato/pkg/logger"
	"github.com/mercatolabs/mercato/pkg/pagination"
	"github.com/mercatolabs/mercato/pkg/server/config"
	"github.com/mercatolabs/mercato/pkg/storage"
	"github.com/mercatolabs/mercato/pkg/storage/memory"
)

// Server owns the process-wide pipeline state: schema, guard, paginator,
// persisted query store and response cache. Per-request state (identity,
// loaders) lives in the request context only.
type Server struct {
	log           logger.Logger
	datastore     storage.Datastore
	authenticator authn.Authenticator
	persisted     *persisted.Store
	respCache     *responseCache
	paginator     *pagination.Paginator
	guard         *shapeguard.Guard
	schema        graphql.Schema

	loaderWait     time.Duration
	loaderMaxBatch int

	ownsPersisted bool
}

type Option func(*Server)

func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithDatastore sets the backing entity store. Defaults to the in-memory
// engine.
func WithDatastore(ds storage.Datastore) Option {
	return func(s *Server) {
		s.datastore = ds
	}
}

// WithAuthenticator sets the credential verifier. Defaults to treating every
// request as anonymous.
func WithAuthenticator(a authn.Authenticator) Option {
	return func(s *Server) {
		s.authenticator = a
	}
}

// WithPersistedQueryStore replaces the default process-local store, typically
// to attach a shared tier. The caller keeps ownership of its lifecycle.
func WithPersistedQueryStore(store *persisted.Store) Option {
	return func(s *Server) {
		if s.ownsPersisted {
			s.persisted.Close()
		}
		s.persisted = store
		s.ownsPersisted = false
	}
}

// WithResponseCache enables fragment caching on the given engine. The engine's
// lifecycle stays with the caller.
func WithResponseCache(engine cache.Cache, ttl time.Duration) Option {
	return func(s *Server) {
		s.respCache.engine = engine
		if ttl > 0 {
			s.respCache.ttl = ttl
		}
	}
}

// WithPageSizes sets the default and maximum connection page sizes.
func WithPageSizes(defaultPageSize, maxPageSize int) Option {
	return func(s *Server) {
		s.paginator = pagination.New(encoder.NewBase64Encoder(), defaultPageSize, maxPageSize)
	}
}

// WithQueryBounds sets the shape guard limits.
func WithQueryBounds(maxDepth, maxComplexity, listWeight int) Option {
	return func(s *Server) {
		s.guard = shapeguard.New(shapeguard.Config{
			MaxDepth:      maxDepth,
			MaxComplexity: maxComplexity,
			ListWeight:    listWeight,
			IsListField:   isListField,
		})
	}
}

// WithLoaderBatching tunes the per-request loader batching window and batch
// size cap.
func WithLoaderBatching(wait time.Duration, maxBatch int) Option {
	return func(s *Server) {
		if wait > 0 {
			s.loaderWait = wait
		}
		if maxBatch > 0 {
			s.loaderMaxBatch = maxBatch
		}
	}
}

// New builds a ready-to-serve Server. The zero-option form runs fully
// self-contained: in-memory datastore, anonymous auth, no response cache.
func New(opts ...Option) (*Server, error) {
	log := logger.NewNoopLogger()

	s := &Server{
		log:           log,
		datastore:     memory.New(),
		authenticator: authn.NoopAuthenticator{},
		persisted:     persisted.New(),
		ownsPersisted: true,
		respCache:     newResponseCache(nil, config.DefaultResponseCacheTTL, log),
		paginator: pagination.New(encoder.NewBase64Encoder(),
			config.DefaultDefaultPageSize, config.DefaultMaxPageSize),
		guard: shapeguard.New(shapeguard.Config{
			MaxDepth:      config.DefaultMaxQueryDepth,
			MaxComplexity: config.DefaultMaxComplexity,
			ListWeight:    config.DefaultListFieldWeight,
			IsListField:   isListField,
		}),
		loaderWait:     config.DefaultLoaderWait,
		loaderMaxBatch: config.DefaultLoaderMaxBatch,
	}

	for _, opt := range opts {
		opt(s)
	}
	s.respCache.log = s.log

	schema, err := newSchema(s)
	if err != nil {
		return nil, err
	}
	s.schema = schema

	return s, nil
}

// Datastore exposes the backing store, mainly so callers can seed the
// in-memory engine.
func (s *Server) Datastore() storage.Datastore {
	return s.datastore
}

// Close releases everything the server owns. Injected dependencies (datastore,
// caches, authenticator) are closed by whoever constructed them.
func (s *Server) Close() {
	if s.ownsPersisted {
		s.persisted.Close()
	}
}
