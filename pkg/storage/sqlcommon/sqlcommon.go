// Package sqlcommon holds connection plumbing shared by SQL-backed
// datastores.
package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mercatolabs/mercato/pkg/logger"
)

const maxConnectRetries = 10

// Config defines the configuration parameters for setting up and managing a
// sql connection.
type Config struct {
	Logger logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	ExportMetrics bool
}

// DatastoreOption defines a function type used for configuring a Config.
type DatastoreOption func(*Config)

func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig returns a Config with defaults applied.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{Logger: logger.NewNoopLogger()}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Open opens a database handle, applies the pool settings, and pings it with
// exponential backoff until it is reachable or the retries run out.
func Open(driverName, uri string, cfg *Config) (*sql.DB, error) {
	db, err := sql.Open(driverName, uri)
	if err != nil {
		return nil, fmt.Errorf("initialize %s connection: %w", driverName, err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxConnectRetries)
	attempt := 1
	err = backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if pingErr := db.PingContext(ctx); pingErr != nil {
			cfg.Logger.Info(fmt.Sprintf("waiting for %s", driverName),
				zap.Int("attempt", attempt), zap.Int("retries", maxConnectRetries))
			attempt++
			return pingErr
		}
		return nil
	}, policy)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	return db, nil
}

// RegisterDBStatsCollector exports the connection pool stats of db under the
// given name. The returned collector should be unregistered on Close.
func RegisterDBStatsCollector(db *sql.DB, dbName string) prometheus.Collector {
	collector := collectors.NewDBStatsCollector(db, dbName)
	if err := prometheus.Register(collector); err != nil {
		// an already-registered collector is fine on reconnect paths
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			return alreadyRegistered.ExistingCollector
		}
	}
	return collector
}
