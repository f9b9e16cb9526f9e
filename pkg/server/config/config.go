// Package config contains all knobs and defaults used to configure features
// of the gateway when running as a standalone server.
package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultHTTPAddr        = "0.0.0.0:8080"
	DefaultRequestTimeout  = 15 * time.Second
	DefaultDefaultPageSize = 10
	DefaultMaxPageSize     = 100
	DefaultMaxQueryDepth   = 10
	DefaultMaxComplexity   = 1000
	DefaultListFieldWeight = 10

	DefaultPersistedQueryTTL          = 24 * time.Hour
	DefaultPersistedQueryLocalEntries = 1000

	DefaultResponseCacheTTL = 30 * time.Second

	DefaultLoaderWait     = 2 * time.Millisecond
	DefaultLoaderMaxBatch = 100
)

// DatastoreConfig selects and tunes the backing entity store.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'memory', 'postgres').
	Engine string
	URI    string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	// Metrics enables export of connection pool statistics.
	Metrics bool
}

// HTTPConfig defines the HTTP server specific settings.
type HTTPConfig struct {
	Addr string

	// RequestTimeout bounds one inbound request end to end; it is also the
	// cancellation boundary for in-flight backing-store calls.
	RequestTimeout time.Duration

	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
}

// AuthnConfig defines authentication specific settings.
type AuthnConfig struct {
	// Method is the authentication method that should be enforced
	// (e.g. 'none', 'jwt', 'oidc').
	Method string

	// Key is the HMAC secret or PEM-encoded RSA public key for the 'jwt'
	// method.
	Key string

	// JWKSURI is the remote key-set endpoint for the 'oidc' method.
	JWKSURI string

	Issuer   string
	Audience string
}

// CacheConfig defines the shared response/persisted-query cache settings.
type CacheConfig struct {
	// Engine is the cache engine to use (e.g. 'none', 'memory', 'redis').
	Engine string
	Addr   string

	Username string
	Password string
	DB       int

	// TTL applies to response cache entries.
	TTL time.Duration

	// MaxEntries bounds the in-memory engine.
	MaxEntries int64
}

// PersistedQueryConfig tunes the persisted query store.
type PersistedQueryConfig struct {
	TTL             time.Duration
	LocalMaxEntries int64
}

// GraphQLConfig bounds accepted query shapes and pagination windows.
type GraphQLConfig struct {
	MaxQueryDepth   int
	MaxComplexity   int
	ListFieldWeight int

	DefaultPageSize int
	MaxPageSize     int

	// LoaderWait is the batching window of the per-request dataloaders;
	// LoaderMaxBatch caps keys per backing fetch.
	LoaderWait     time.Duration
	LoaderMaxBatch int
}

// TraceConfig defines tracing specific settings.
type TraceConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// MetricsConfig defines metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// LogConfig defines logging specific settings.
type LogConfig struct {
	// Format is the log output format ('text' or 'json').
	Format string

	// Level is the log level ('none', 'debug', 'info', 'warn', 'error').
	Level string
}

type Config struct {
	HTTP           HTTPConfig
	Datastore      DatastoreConfig
	Authn          AuthnConfig
	Cache          CacheConfig
	PersistedQuery PersistedQueryConfig
	GraphQL        GraphQLConfig
	Trace          TraceConfig
	Metrics        MetricsConfig
	Log            LogConfig
}

// DefaultConfig is the gateway's out of the box configuration: in-memory
// datastore, anonymous auth, no shared cache.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:               DefaultHTTPAddr,
			RequestTimeout:     DefaultRequestTimeout,
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedHeaders: []string{"*"},
		},
		Datastore: DatastoreConfig{
			Engine: "memory",
		},
		Authn: AuthnConfig{
			Method: "none",
		},
		Cache: CacheConfig{
			Engine:     "none",
			TTL:        DefaultResponseCacheTTL,
			MaxEntries: 10_000,
		},
		PersistedQuery: PersistedQueryConfig{
			TTL:             DefaultPersistedQueryTTL,
			LocalMaxEntries: DefaultPersistedQueryLocalEntries,
		},
		GraphQL: GraphQLConfig{
			MaxQueryDepth:   DefaultMaxQueryDepth,
			MaxComplexity:   DefaultMaxComplexity,
			ListFieldWeight: DefaultListFieldWeight,
			DefaultPageSize: DefaultDefaultPageSize,
			MaxPageSize:     DefaultMaxPageSize,
			LoaderWait:      DefaultLoaderWait,
			LoaderMaxBatch:  DefaultLoaderMaxBatch,
		},
		Trace: TraceConfig{
			SampleRatio: 0.2,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "0.0.0.0:2112",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Verify checks the configuration for contradictions before startup.
func (cfg *Config) Verify() error {
	switch cfg.Datastore.Engine {
	case "memory":
	case "postgres":
		if cfg.Datastore.URI == "" {
			return errors.New("datastore.uri is required for the postgres engine")
		}
	default:
		return fmt.Errorf("unknown datastore engine: %q", cfg.Datastore.Engine)
	}

	switch cfg.Authn.Method {
	case "none":
	case "jwt":
		if cfg.Authn.Key == "" {
			return errors.New("authn.key is required for the jwt method")
		}
	case "oidc":
		if cfg.Authn.JWKSURI == "" {
			return errors.New("authn.jwks-uri is required for the oidc method")
		}
	default:
		return fmt.Errorf("unknown authn method: %q", cfg.Authn.Method)
	}

	switch cfg.Cache.Engine {
	case "none", "memory":
	case "redis":
		if cfg.Cache.Addr == "" {
			return errors.New("cache.addr is required for the redis engine")
		}
	default:
		return fmt.Errorf("unknown cache engine: %q", cfg.Cache.Engine)
	}

	if cfg.GraphQL.DefaultPageSize < 1 || cfg.GraphQL.MaxPageSize < 1 {
		return errors.New("pagination page sizes must be positive")
	}
	if cfg.GraphQL.DefaultPageSize > cfg.GraphQL.MaxPageSize {
		return errors.New("graphql.default-page-size cannot exceed graphql.max-page-size")
	}
	if cfg.GraphQL.MaxQueryDepth < 1 || cfg.GraphQL.MaxComplexity < 1 {
		return errors.New("query shape bounds must be positive")
	}

	if cfg.HTTP.RequestTimeout <= 0 {
		return errors.New("http.request-timeout must be positive")
	}

	return nil
}
