// Package app wires configuration into a ready-to-use user directory.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/userdir/internal/config"
	"github.com/prn-tf/userdir/internal/ldapdir"
	"github.com/prn-tf/userdir/internal/lock"
	"github.com/prn-tf/userdir/internal/metrics"
	"github.com/prn-tf/userdir/internal/repository"
	"github.com/prn-tf/userdir/internal/repository/postgres"
	"github.com/prn-tf/userdir/internal/repository/sqlite"
	"github.com/prn-tf/userdir/internal/userdir"
)

// Database is a store connection that can apply its own schema.
type Database interface {
	repository.DatabaseHealth
	Migrate(ctx context.Context) error
}

// App holds the directory and the connections backing it.
type App struct {
	Directory *userdir.Directory
	Database  Database

	logger  zerolog.Logger
	closers []io.Closer
}

// New connects the store, directory source and locker described by cfg.
// Collectors are registered with the default Prometheus registry when
// metrics are enabled.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = prometheus.DefaultRegisterer
	}
	return newApp(ctx, cfg, logger, reg)
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{logger: logger}
	if err := a.open(ctx, cfg, reg); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) error {
	db, repo, err := openStore(ctx, cfg.Database, a.logger)
	if err != nil {
		return err
	}
	a.Database = db
	a.closers = append(a.closers, db)

	source, err := a.openSource(cfg.LDAP)
	if err != nil {
		return err
	}

	locker, err := a.openLocker(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	a.Directory, err = userdir.New(userdir.Config{
		Repository:              repo,
		Source:                  source,
		Locker:                  locker,
		Metrics:                 metrics.New(reg),
		Logger:                  a.logger,
		ProvisionLockTTL:        cfg.Lock.TTL,
		ProvisionLockRetries:    cfg.Lock.Retries,
		ProvisionLockRetryDelay: cfg.Lock.RetryDelay,
	})
	return err
}

// Migrate applies the embedded schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	return a.Database.Migrate(ctx)
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (Database, repository.UserRepository, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqliteConfig(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
		return db, sqlite.NewUserRepository(db), nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.NewUserRepository(db), nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", repository.ErrUnsupportedDriver, cfg.Driver)
	}
}

func sqliteConfig(cfg config.DatabaseConfig) sqlite.Config {
	c := sqlite.DefaultConfig(cfg.Path)
	if cfg.MaxOpenConns > 0 {
		c.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		c.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.JournalMode != "" {
		c.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		c.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.CacheSize != 0 {
		c.CacheSize = cfg.CacheSize
	}
	if cfg.SynchronousMode != "" {
		c.SynchronousMode = cfg.SynchronousMode
	}
	return c
}

func (a *App) openSource(cfg config.LDAPConfig) (userdir.Source, error) {
	if !cfg.Enabled() {
		a.logger.Warn().Msg("ldap.url not set, unknown uids cannot be provisioned")
		return ldapdir.Unconfigured{}, nil
	}

	client, err := ldapdir.NewClient(ldapdir.ConfigFrom(cfg), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ldap client: %w", err)
	}
	a.closers = append(a.closers, client)
	return client, nil
}

func (a *App) openLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, error) {
	if !cfg.Enabled {
		return lock.NewNoOpLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}
	a.closers = append(a.closers, client)

	a.logger.Info().Str("addr", cfg.Addr()).Msg("using redis provisioning lock")
	return lock.NewRedisLocker(client), nil
}
