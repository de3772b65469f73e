package app

import (
	"context"
	"errors"
	"fmt"

	"ignews-service/internal/config"
	"ignews-service/internal/db"
	"ignews-service/internal/logger"
	"ignews-service/internal/redis"
	"ignews-service/internal/users"
	"ignews-service/internal/users/badgerstore"
	"ignews-service/internal/users/memstore"
	"ignews-service/internal/users/pgstore"
	"ignews-service/internal/users/redislock"
)

type Infra struct {
	DB    *db.DB
	Redis *redis.Client
	Users users.Store

	closers []func() error
}

// SetupInfra connects the backing services named by cfg and builds the
// user store on top of them.
func SetupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.RedisAddr != "" {
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		infra.Redis = client
		infra.closers = append(infra.closers, client.Close)
		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})
	}

	store, err := infra.openUserStore(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	if cfg.UserStoreLock {
		store = redislock.New(store, infra.Redis.Client, cfg.UserLockTTL)
		logger.Info("user store lock enabled", map[string]any{"ttl": cfg.UserLockTTL.String()})
	}

	infra.Users = store
	return infra, nil
}

func (i *Infra) openUserStore(ctx context.Context, cfg config.Config) (users.Store, error) {
	switch cfg.UserStore {
	case config.UserStorePostgres:
		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		i.DB = database
		i.closers = append(i.closers, database.Close)

		if err := db.Migrate(ctx, database.DB); err != nil {
			return nil, fmt.Errorf("db: migrate: %w", err)
		}
		logger.Info("database ready", nil)
		return pgstore.New(database), nil

	case config.UserStoreBadger:
		store, err := badgerstore.Open(badgerstore.Config{
			Path:       cfg.BadgerPath,
			SyncWrites: true,
		})
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, store.Close)
		logger.Info("badger ready", map[string]any{"path": cfg.BadgerPath})
		return store, nil

	case config.UserStoreMemory:
		logger.Warn("using in-memory user store; records are lost on restart", nil)
		return memstore.New(), nil

	default:
		return nil, fmt.Errorf("unknown user store %q", cfg.UserStore)
	}
}

// UserService wraps the store with the retry policy from cfg.
func (i *Infra) UserService(cfg config.Config) *users.Service {
	return users.NewService(
		i.Users,
		users.WithRetry(cfg.UpsertMaxRetries, cfg.UpsertRetryBase),
	)
}

// Close releases everything in reverse order of acquisition.
func (i *Infra) Close() error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}
