package main

import (
	"context"
	"fmt"

	"vidshare/internal/config"
	"vidshare/internal/repository"
	"vidshare/internal/repository/memory"
	"vidshare/internal/repository/mongodb"
	"vidshare/internal/repository/postgres"
	"vidshare/pkg/logger"
)

// openBackend connects the configured store. The returned close function
// releases its connections.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Backend, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := postgres.InitDB(
			ctx,
			cfg.Database.DatabaseDSN(),
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Database connection established", "driver", cfg.Store.Driver)
		return postgres.NewStore(pool), pool.Close, nil

	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		store := mongodb.NewStore(client, cfg.Mongo.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		log.Info("Database connection established", "driver", cfg.Store.Driver, "database", cfg.Mongo.Database)
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.DriverMemory:
		log.Warn("Using the in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
