package config

import (
	"context"
	"fmt"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/pkg/store"
	badgerstore "github.com/marmos91/imgloader/pkg/store/badger"
	memorystore "github.com/marmos91/imgloader/pkg/store/memory"
	redisstore "github.com/marmos91/imgloader/pkg/store/redis"
	s3store "github.com/marmos91/imgloader/pkg/store/s3"
	sqlstore "github.com/marmos91/imgloader/pkg/store/sql"
)

// CreateStore builds the durable tier selected by cfg.Type.
//
// It returns a nil store for type "none". Network backends are polled until
// they answer a healthcheck or cfg.OpenTimeout elapses.
func CreateStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch cfg.Type {
	case store.TypeNone:
		return nil, nil
	case store.TypeMemory:
		s = memorystore.New()
	case store.TypeBadger:
		s, err = createBadgerStore(cfg.Badger)
	case store.TypeSQLite, store.TypePostgres:
		s, err = createSQLStore(cfg)
	case store.TypeS3:
		s, err = createS3Store(ctx, cfg.S3)
	case store.TypeRedis:
		s, err = createRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Type, err)
	}

	if isNetworkStore(cfg.Type) {
		if err := store.WaitReady(ctx, s, cfg.Type, cfg.OpenTimeout); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	logger.Info("Durable store ready", logger.StoreType(cfg.Type))
	return s, nil
}

func isNetworkStore(t string) bool {
	switch t {
	case store.TypePostgres, store.TypeS3, store.TypeRedis:
		return true
	}
	return false
}

func createBadgerStore(cfg BadgerStoreConfig) (store.Store, error) {
	return badgerstore.New(badgerstore.Config{
		Path:       cfg.Path,
		TTL:        cfg.TTL,
		GCInterval: cfg.GCInterval,
		SyncWrites: cfg.SyncWrites,
	})
}

func createSQLStore(cfg StoreConfig) (store.Store, error) {
	sqlCfg := sqlstore.Config{
		Type: sqlstore.DatabaseType(cfg.Type),
		SQLite: sqlstore.SQLiteConfig{
			Path: cfg.SQLite.Path,
		},
		Postgres: sqlstore.PostgresConfig{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		},
	}
	return sqlstore.New(sqlCfg)
}

func createS3Store(ctx context.Context, cfg S3StoreConfig) (store.Store, error) {
	return s3store.NewFromConfig(ctx, s3store.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		ForcePathStyle:  cfg.ForcePathStyle,
	})
}

func createRedisStore(cfg RedisStoreConfig) (store.Store, error) {
	return redisstore.New(redisstore.Config{
		Addr:      cfg.Addr,
		Username:  cfg.Username,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: cfg.KeyPrefix,
		TTL:       cfg.TTL,
		PoolSize:  cfg.PoolSize,
	})
}
