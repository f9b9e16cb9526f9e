package run

import (
	"github.com/spf13/cobra"

	"github.com/mercatolabs/mercato/cmd/util"
	serverconfig "github.com/mercatolabs/mercato/pkg/server/config"
)

// bindRunFlags binds the cobra cmd flags to the equivalent config value being
// managed by viper. This bridges the config between cobra flags and viper
// flags.
func bindRunFlags(command *cobra.Command) {
	defaultConfig := serverconfig.DefaultConfig()
	flags := command.Flags()

	flags.String("http-addr", defaultConfig.HTTP.Addr, "the host:port address to serve the HTTP server on")
	util.MustBindPFlag("http.addr", flags.Lookup("http-addr"))
	util.MustBindEnv("http.addr", "MERCATO_HTTP_ADDR")

	flags.Duration("http-request-timeout", defaultConfig.HTTP.RequestTimeout, "the timeout applied to each inbound request end to end")
	util.MustBindPFlag("http.request-timeout", flags.Lookup("http-request-timeout"))
	util.MustBindEnv("http.request-timeout", "MERCATO_HTTP_REQUEST_TIMEOUT")

	flags.StringSlice("http-cors-allowed-origins", defaultConfig.HTTP.CORSAllowedOrigins, "origins allowed by CORS")
	util.MustBindPFlag("http.cors-allowed-origins", flags.Lookup("http-cors-allowed-origins"))
	util.MustBindEnv("http.cors-allowed-origins", "MERCATO_HTTP_CORS_ALLOWED_ORIGINS")

	flags.StringSlice("http-cors-allowed-headers", defaultConfig.HTTP.CORSAllowedHeaders, "headers allowed by CORS")
	util.MustBindPFlag("http.cors-allowed-headers", flags.Lookup("http-cors-allowed-headers"))
	util.MustBindEnv("http.cors-allowed-headers", "MERCATO_HTTP_CORS_ALLOWED_HEADERS")

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine that will be used for persistence ('memory', 'postgres')")
	util.MustBindPFlag("datastore.engine", flags.Lookup("datastore-engine"))
	util.MustBindEnv("datastore.engine", "MERCATO_DATASTORE_ENGINE")

	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	util.MustBindPFlag("datastore.uri", flags.Lookup("datastore-uri"))
	util.MustBindEnv("datastore.uri", "MERCATO_DATASTORE_URI")

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")
	util.MustBindPFlag("datastore.max-open-conns", flags.Lookup("datastore-max-open-conns"))
	util.MustBindEnv("datastore.max-open-conns", "MERCATO_DATASTORE_MAX_OPEN_CONNS")

	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")
	util.MustBindPFlag("datastore.max-idle-conns", flags.Lookup("datastore-max-idle-conns"))
	util.MustBindEnv("datastore.max-idle-conns", "MERCATO_DATASTORE_MAX_IDLE_CONNS")

	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")
	util.MustBindPFlag("datastore.conn-max-idle-time", flags.Lookup("datastore-conn-max-idle-time"))
	util.MustBindEnv("datastore.conn-max-idle-time", "MERCATO_DATASTORE_CONN_MAX_IDLE_TIME")

	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")
	util.MustBindPFlag("datastore.conn-max-lifetime", flags.Lookup("datastore-conn-max-lifetime"))
	util.MustBindEnv("datastore.conn-max-lifetime", "MERCATO_DATASTORE_CONN_MAX_LIFETIME")

	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics, "enable datastore connection pool metrics")
	util.MustBindPFlag("datastore.metrics.enabled", flags.Lookup("datastore-metrics-enabled"))
	util.MustBindEnv("datastore.metrics.enabled", "MERCATO_DATASTORE_METRICS_ENABLED")

	flags.String("authn-method", defaultConfig.Authn.Method, "the authentication method to enforce ('none', 'jwt', 'oidc')")
	util.MustBindPFlag("authn.method", flags.Lookup("authn-method"))
	util.MustBindEnv("authn.method", "MERCATO_AUTHN_METHOD")

	flags.String("authn-key", defaultConfig.Authn.Key, "the HMAC secret or PEM-encoded RSA public key used to verify tokens (only for the 'jwt' method)")
	util.MustBindPFlag("authn.key", flags.Lookup("authn-key"))
	util.MustBindEnv("authn.key", "MERCATO_AUTHN_KEY")

	flags.String("authn-jwks-uri", defaultConfig.Authn.JWKSURI, "the remote json web key set endpoint (only for the 'oidc' method)")
	util.MustBindPFlag("authn.jwks-uri", flags.Lookup("authn-jwks-uri"))
	util.MustBindEnv("authn.jwks-uri", "MERCATO_AUTHN_JWKS_URI")

	flags.String("authn-issuer", defaultConfig.Authn.Issuer, "the issuer claim expected on accepted tokens")
	util.MustBindPFlag("authn.issuer", flags.Lookup("authn-issuer"))
	util.MustBindEnv("authn.issuer", "MERCATO_AUTHN_ISSUER")

	flags.String("authn-audience", defaultConfig.Authn.Audience, "the audience claim expected on accepted tokens")
	util.MustBindPFlag("authn.audience", flags.Lookup("authn-audience"))
	util.MustBindEnv("authn.audience", "MERCATO_AUTHN_AUDIENCE")

	flags.String("cache-engine", defaultConfig.Cache.Engine, "the shared cache engine backing the response cache and persisted queries ('none', 'memory', 'redis')")
	util.MustBindPFlag("cache.engine", flags.Lookup("cache-engine"))
	util.MustBindEnv("cache.engine", "MERCATO_CACHE_ENGINE")

	flags.String("cache-addr", defaultConfig.Cache.Addr, "the address of the redis cache (only for the 'redis' engine)")
	util.MustBindPFlag("cache.addr", flags.Lookup("cache-addr"))
	util.MustBindEnv("cache.addr", "MERCATO_CACHE_ADDR")

	flags.String("cache-username", defaultConfig.Cache.Username, "the username used to authenticate against the redis cache")
	util.MustBindPFlag("cache.username", flags.Lookup("cache-username"))
	util.MustBindEnv("cache.username", "MERCATO_CACHE_USERNAME")

	flags.String("cache-password", defaultConfig.Cache.Password, "the password used to authenticate against the redis cache")
	util.MustBindPFlag("cache.password", flags.Lookup("cache-password"))
	util.MustBindEnv("cache.password", "MERCATO_CACHE_PASSWORD")

	flags.Int("cache-db", defaultConfig.Cache.DB, "the redis logical database")
	util.MustBindPFlag("cache.db", flags.Lookup("cache-db"))
	util.MustBindEnv("cache.db", "MERCATO_CACHE_DB")

	flags.Duration("cache-ttl", defaultConfig.Cache.TTL, "the time to live of response cache entries")
	util.MustBindPFlag("cache.ttl", flags.Lookup("cache-ttl"))
	util.MustBindEnv("cache.ttl", "MERCATO_CACHE_TTL")

	flags.Int64("cache-max-entries", defaultConfig.Cache.MaxEntries, "the maximum number of entries held by the in-memory cache engine")
	util.MustBindPFlag("cache.max-entries", flags.Lookup("cache-max-entries"))
	util.MustBindEnv("cache.max-entries", "MERCATO_CACHE_MAX_ENTRIES")

	flags.Duration("persisted-query-ttl", defaultConfig.PersistedQuery.TTL, "the time to live of persisted query registrations")
	util.MustBindPFlag("persisted-query.ttl", flags.Lookup("persisted-query-ttl"))
	util.MustBindEnv("persisted-query.ttl", "MERCATO_PERSISTED_QUERY_TTL")

	flags.Int64("persisted-query-local-max-entries", defaultConfig.PersistedQuery.LocalMaxEntries, "the maximum number of persisted queries held in the process-local tier")
	util.MustBindPFlag("persisted-query.local-max-entries", flags.Lookup("persisted-query-local-max-entries"))
	util.MustBindEnv("persisted-query.local-max-entries", "MERCATO_PERSISTED_QUERY_LOCAL_MAX_ENTRIES")

	flags.Int("graphql-max-query-depth", defaultConfig.GraphQL.MaxQueryDepth, "the maximum nesting depth accepted for a query")
	util.MustBindPFlag("graphql.max-query-depth", flags.Lookup("graphql-max-query-depth"))
	util.MustBindEnv("graphql.max-query-depth", "MERCATO_GRAPHQL_MAX_QUERY_DEPTH")

	flags.Int("graphql-max-complexity", defaultConfig.GraphQL.MaxComplexity, "the maximum weighted complexity accepted for a query")
	util.MustBindPFlag("graphql.max-complexity", flags.Lookup("graphql-max-complexity"))
	util.MustBindEnv("graphql.max-complexity", "MERCATO_GRAPHQL_MAX_COMPLEXITY")

	flags.Int("graphql-list-field-weight", defaultConfig.GraphQL.ListFieldWeight, "the multiplier applied to fields nested under list-producing fields")
	util.MustBindPFlag("graphql.list-field-weight", flags.Lookup("graphql-list-field-weight"))
	util.MustBindEnv("graphql.list-field-weight", "MERCATO_GRAPHQL_LIST_FIELD_WEIGHT")

	flags.Int("graphql-default-page-size", defaultConfig.GraphQL.DefaultPageSize, "the page size applied when a connection field requests none")
	util.MustBindPFlag("graphql.default-page-size", flags.Lookup("graphql-default-page-size"))
	util.MustBindEnv("graphql.default-page-size", "MERCATO_GRAPHQL_DEFAULT_PAGE_SIZE")

	flags.Int("graphql-max-page-size", defaultConfig.GraphQL.MaxPageSize, "the maximum page size a connection field may request")
	util.MustBindPFlag("graphql.max-page-size", flags.Lookup("graphql-max-page-size"))
	util.MustBindEnv("graphql.max-page-size", "MERCATO_GRAPHQL_MAX_PAGE_SIZE")

	flags.Duration("graphql-loader-wait", defaultConfig.GraphQL.LoaderWait, "the batching window of the per-request dataloaders")
	util.MustBindPFlag("graphql.loader-wait", flags.Lookup("graphql-loader-wait"))
	util.MustBindEnv("graphql.loader-wait", "MERCATO_GRAPHQL_LOADER_WAIT")

	flags.Int("graphql-loader-max-batch", defaultConfig.GraphQL.LoaderMaxBatch, "the maximum number of unique keys per dataloader fetch")
	util.MustBindPFlag("graphql.loader-max-batch", flags.Lookup("graphql-loader-max-batch"))
	util.MustBindEnv("graphql.loader-max-batch", "MERCATO_GRAPHQL_LOADER_MAX_BATCH")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable OTLP trace export")
	util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
	util.MustBindEnv("trace.enabled", "MERCATO_TRACE_ENABLED")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLPEndpoint, "the grpc endpoint of the trace collector")
	util.MustBindPFlag("trace.otlp-endpoint", flags.Lookup("trace-otlp-endpoint"))
	util.MustBindEnv("trace.otlp-endpoint", "MERCATO_TRACE_OTLP_ENDPOINT")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample")
	util.MustBindPFlag("trace.sample-ratio", flags.Lookup("trace-sample-ratio"))
	util.MustBindEnv("trace.sample-ratio", "MERCATO_TRACE_SAMPLE_RATIO")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable the prometheus metrics endpoint")
	util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	util.MustBindEnv("metrics.enabled", "MERCATO_METRICS_ENABLED")

	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")
	util.MustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	util.MustBindEnv("metrics.addr", "MERCATO_METRICS_ADDR")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in ('text', 'json')")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "MERCATO_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use ('none', 'debug', 'info', 'warn', 'error')")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "MERCATO_LOG_LEVEL")

	// NOTE: if you add a new flag here, add the binding next to it.
}
