package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/sitesync"
	"github.com/petrijr/sitesync/internal/config"
	"github.com/petrijr/sitesync/postgres"
)

// connectRetry is applied to every network backend before giving up.
var connectRetry = sitesync.Retry(4).WithExponentialBackoff(250*time.Millisecond, 2, 2*time.Second).Policy()

// backend is an opened bundle together with the connections it holds.
type backend struct {
	*sitesync.Bundle
	closers []func() error
}

func (b *backend) addCloser(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close releases the connections in reverse order of opening.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// openBackend opens the configured store and notifier.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	store, err := openStore(ctx, cfg, b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	notifier, err := openNotifier(ctx, cfg.Redis, logger, b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	bundle, err := sitesync.NewBundle(store, notifier, cfg)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	bundle.Logger = logger
	b.Bundle = bundle
	logger.Debug("backend_opened", "store", cfg.Store.Backend, "redis", cfg.Redis.Addr != "")
	return b, nil
}

func openStore(ctx context.Context, cfg *config.Config, b *backend) (sitesync.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return sitesync.NewInMemoryStore(), nil

	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		b.addCloser(db.Close)
		return sitesync.NewSQLiteStore(db)

	case config.BackendPostgres:
		var db *sql.DB
		err := connectRetry.Do(ctx, func(ctx context.Context) error {
			var err error
			db, err = postgres.Open(ctx, cfg.SQL.DSN)
			return err
		})
		if err != nil {
			return nil, err
		}
		b.addCloser(db.Close)
		return sitesync.NewPostgresStore(db)

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		b.addCloser(func() error { return client.Disconnect(context.Background()) })
		if err := connectRetry.Do(ctx, func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}); err != nil {
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		return sitesync.NewMongoStore(client, cfg.Mongo.Database), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func openNotifier(ctx context.Context, rc config.RedisConfig, logger *slog.Logger, b *backend) (sitesync.Notifier, error) {
	if rc.Addr == "" {
		return sitesync.NewHub(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	b.addCloser(client.Close)
	if err := connectRetry.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return sitesync.NewRedisNotifier(client, rc.Prefix, logger), nil
}

// indexer is implemented by stores that maintain per-project indexes.
type indexer interface {
	EnsureIndexes(ctx context.Context, project string) error
}
