// Package run contains the command to run a mercato server.
package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/mercatolabs/mercato/internal/authn"
	"github.com/mercatolabs/mercato/internal/authn/jwtauth"
	"github.com/mercatolabs/mercato/internal/authn/oidc"
	"github.com/mercatolabs/mercato/internal/build"
	"github.com/mercatolabs/mercato/internal/persisted"
	"github.com/mercatolabs/mercato/pkg/cache"
	"github.com/mercatolabs/mercato/pkg/cache/redis"
	"github.com/mercatolabs/mercato/pkg/logger"
	"github.com/mercatolabs/mercato/pkg/server"
	serverconfig "github.com/mercatolabs/mercato/pkg/server/config"
	"github.com/mercatolabs/mercato/pkg/storage"
	"github.com/mercatolabs/mercato/pkg/storage/memory"
	"github.com/mercatolabs/mercato/pkg/storage/postgres"
	"github.com/mercatolabs/mercato/pkg/storage/sqlcommon"
	"github.com/mercatolabs/mercato/pkg/telemetry"
)

// NewRunCommand returns the command to start the mercato server.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Mercato server",
		Long:  "Run the Mercato graphql gateway.",
		Run:   run,
		Args:  cobra.NoArgs,
	}

	bindRunFlags(cmd)

	return cmd
}

func run(_ *cobra.Command, _ []string) {
	config := ReadConfig()

	if err := RunServer(context.Background(), config); err != nil {
		panic(err)
	}
}

// ReadConfig assembles the server configuration from viper, which layers CLI
// flags over MERCATO_* environment variables over config.yaml over defaults.
func ReadConfig() *serverconfig.Config {
	config := serverconfig.DefaultConfig()

	config.HTTP.Addr = viper.GetString("http.addr")
	config.HTTP.RequestTimeout = viper.GetDuration("http.request-timeout")
	config.HTTP.CORSAllowedOrigins = viper.GetStringSlice("http.cors-allowed-origins")
	config.HTTP.CORSAllowedHeaders = viper.GetStringSlice("http.cors-allowed-headers")

	config.Datastore.Engine = viper.GetString("datastore.engine")
	config.Datastore.URI = viper.GetString("datastore.uri")
	config.Datastore.MaxOpenConns = viper.GetInt("datastore.max-open-conns")
	config.Datastore.MaxIdleConns = viper.GetInt("datastore.max-idle-conns")
	config.Datastore.ConnMaxIdleTime = viper.GetDuration("datastore.conn-max-idle-time")
	config.Datastore.ConnMaxLifetime = viper.GetDuration("datastore.conn-max-lifetime")
	config.Datastore.Metrics = viper.GetBool("datastore.metrics.enabled")

	config.Authn.Method = viper.GetString("authn.method")
	config.Authn.Key = viper.GetString("authn.key")
	config.Authn.JWKSURI = viper.GetString("authn.jwks-uri")
	config.Authn.Issuer = viper.GetString("authn.issuer")
	config.Authn.Audience = viper.GetString("authn.audience")

	config.Cache.Engine = viper.GetString("cache.engine")
	config.Cache.Addr = viper.GetString("cache.addr")
	config.Cache.Username = viper.GetString("cache.username")
	config.Cache.Password = viper.GetString("cache.password")
	config.Cache.DB = viper.GetInt("cache.db")
	config.Cache.TTL = viper.GetDuration("cache.ttl")
	config.Cache.MaxEntries = viper.GetInt64("cache.max-entries")

	config.PersistedQuery.TTL = viper.GetDuration("persisted-query.ttl")
	config.PersistedQuery.LocalMaxEntries = viper.GetInt64("persisted-query.local-max-entries")

	config.GraphQL.MaxQueryDepth = viper.GetInt("graphql.max-query-depth")
	config.GraphQL.MaxComplexity = viper.GetInt("graphql.max-complexity")
	config.GraphQL.ListFieldWeight = viper.GetInt("graphql.list-field-weight")
	config.GraphQL.DefaultPageSize = viper.GetInt("graphql.default-page-size")
	config.GraphQL.MaxPageSize = viper.GetInt("graphql.max-page-size")
	config.GraphQL.LoaderWait = viper.GetDuration("graphql.loader-wait")
	config.GraphQL.LoaderMaxBatch = viper.GetInt("graphql.loader-max-batch")

	config.Trace.Enabled = viper.GetBool("trace.enabled")
	config.Trace.OTLPEndpoint = viper.GetString("trace.otlp-endpoint")
	config.Trace.SampleRatio = viper.GetFloat64("trace.sample-ratio")

	config.Metrics.Enabled = viper.GetBool("metrics.enabled")
	config.Metrics.Addr = viper.GetString("metrics.addr")

	config.Log.Format = viper.GetString("log.format")
	config.Log.Level = viper.GetString("log.level")

	return config
}

// RunServer runs the gateway until ctx is cancelled or a SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func RunServer(ctx context.Context, config *serverconfig.Config) error {
	if err := config.Verify(); err != nil {
		return err
	}

	log, err := logger.NewLogger(config.Log.Format, config.Log.Level)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	if config.Trace.Enabled {
		tp := telemetry.MustNewTracerProvider(
			telemetry.WithOTLPEndpoint(config.Trace.OTLPEndpoint),
			telemetry.WithSamplingRatio(config.Trace.SampleRatio),
		)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.ForceFlush(shutdownCtx)
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	datastore, err := buildDatastore(config, log)
	if err != nil {
		return err
	}
	defer datastore.Close()

	authenticator, err := buildAuthenticator(config)
	if err != nil {
		return err
	}
	defer authenticator.Close()

	sharedCache, err := buildCache(ctx, config, log)
	if err != nil {
		return err
	}
	if sharedCache != nil {
		defer func() {
			_ = sharedCache.Close()
		}()
	}

	persistedOpts := []persisted.Option{
		persisted.WithTTL(config.PersistedQuery.TTL),
		persisted.WithLocalMaxEntries(config.PersistedQuery.LocalMaxEntries),
		persisted.WithLogger(log),
	}
	if sharedCache != nil {
		persistedOpts = append(persistedOpts, persisted.WithSharedTier(sharedCache))
	}
	persistedStore := persisted.New(persistedOpts...)
	defer persistedStore.Close()

	serverOpts := []server.Option{
		server.WithLogger(log),
		server.WithDatastore(datastore),
		server.WithAuthenticator(authenticator),
		server.WithPersistedQueryStore(persistedStore),
		server.WithPageSizes(config.GraphQL.DefaultPageSize, config.GraphQL.MaxPageSize),
		server.WithQueryBounds(config.GraphQL.MaxQueryDepth, config.GraphQL.MaxComplexity, config.GraphQL.ListFieldWeight),
		server.WithLoaderBatching(config.GraphQL.LoaderWait, config.GraphQL.LoaderMaxBatch),
	}
	if sharedCache != nil {
		serverOpts = append(serverOpts, server.WithResponseCache(sharedCache, config.Cache.TTL))
	}

	srv, err := server.New(serverOpts...)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}
	defer srv.Close()

	handler := cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.CORSAllowedOrigins,
		AllowedHeaders:   config.HTTP.CORSAllowedHeaders,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(otelhttp.NewHandler(srv.Handler(), build.ProjectName))

	httpServer := &http.Server{
		Addr:         config.HTTP.Addr,
		Handler:      withRequestTimeout(handler, config.HTTP.RequestTimeout),
		ReadTimeout:  config.HTTP.RequestTimeout,
		WriteTimeout: 2 * config.HTTP.RequestTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	go func() {
		log.Info("starting mercato http server",
			zap.String("addr", config.HTTP.Addr),
			zap.String("version", build.Version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var metricsServer *http.Server
	if config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: config.Metrics.Addr, Handler: mux}

		go func() {
			log.Info("starting metrics server", zap.String("addr", config.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown", zap.Error(err))
		}
	}

	return nil
}

// withRequestTimeout bounds every inbound request's context so in-flight
// datastore and cache calls are cancelled together with the request.
func withRequestTimeout(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func buildDatastore(config *serverconfig.Config, log logger.Logger) (storage.Datastore, error) {
	switch config.Datastore.Engine {
	case "memory":
		return memory.New(), nil
	case "postgres":
		opts := []sqlcommon.DatastoreOption{
			sqlcommon.WithLogger(log),
			sqlcommon.WithMaxOpenConns(config.Datastore.MaxOpenConns),
			sqlcommon.WithMaxIdleConns(config.Datastore.MaxIdleConns),
			sqlcommon.WithConnMaxIdleTime(config.Datastore.ConnMaxIdleTime),
			sqlcommon.WithConnMaxLifetime(config.Datastore.ConnMaxLifetime),
		}
		if config.Datastore.Metrics {
			opts = append(opts, sqlcommon.WithMetrics())
		}
		return postgres.New(config.Datastore.URI, sqlcommon.NewConfig(opts...))
	default:
		return nil, fmt.Errorf("unsupported datastore engine: %q", config.Datastore.Engine)
	}
}

func buildAuthenticator(config *serverconfig.Config) (authn.Authenticator, error) {
	switch config.Authn.Method {
	case "none":
		return authn.NoopAuthenticator{}, nil
	case "jwt":
		return jwtauth.New(config.Authn.Key, config.Authn.Issuer, config.Authn.Audience)
	case "oidc":
		return oidc.New(config.Authn.JWKSURI, config.Authn.Issuer, config.Authn.Audience)
	default:
		return nil, fmt.Errorf("unsupported authn method: %q", config.Authn.Method)
	}
}

// buildCache returns the shared cache engine, already wrapped so every failure
// degrades to a miss, or nil when caching is disabled.
func buildCache(ctx context.Context, config *serverconfig.Config, log logger.Logger) (cache.Cache, error) {
	switch config.Cache.Engine {
	case "none":
		return nil, nil
	case "memory":
		return cache.NewInMemory(cache.WithMaxEntries(config.Cache.MaxEntries)), nil
	case "redis":
		handle, err := redis.New(
			redis.WithAddr(config.Cache.Addr),
			redis.WithUserCredential(config.Cache.Username),
			redis.WithPassCredential(config.Cache.Password),
			redis.WithDatabase(config.Cache.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("initialize redis cache: %w", err)
		}
		if err := handle.Ping(ctx); err != nil {
			log.Warn("redis cache unreachable at startup, continuing degraded", zap.Error(err))
		}
		return cache.NewResilient(handle, log), nil
	default:
		return nil, fmt.Errorf("unsupported cache engine: %q", config.Cache.Engine)
	}
}
