// Package bootstrap builds the long-lived dependencies both binaries share
// from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/repository/cached"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/internal/repository/mongo"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/messaging/kafka"
	"github.com/jwalitptl/booking-api/pkg/messaging/redis"
)

// NewLogger builds the injected logger and points the global zerolog logger
// at the same sink.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Pretty,
	})
	log.Logger = *l.Zerolog()
	return l
}

// OpenStore connects the configured storage driver and wraps it in the
// business cache. Close the returned store on shutdown.
func OpenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.Store, error) {
	var store repository.Store
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info("Database migrated")
		}
		store = postgres.NewStore(db)
	case config.StorageDriverMongo:
		client, err := mongo.New(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		store = mongo.NewStore(client)
	case config.StorageDriverMemory:
		log.Warn("Using in-memory storage; data is lost on restart")
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	log.Info("Storage ready", "driver", cfg.Storage.Driver)
	if cfg.Cache.BusinessTTL > 0 {
		return cached.NewStore(store, cfg.Cache.BusinessTTL), nil
	}
	return store, nil
}

// NewBroker connects the configured message broker.
func NewBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (messaging.Broker, error) {
	switch cfg.Broker.Driver {
	case config.BrokerDriverRedis:
		return redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, *log.Zerolog())
	case config.BrokerDriverKafka:
		broker, err := kafka.NewBroker(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.GroupID,
			ClientID: cfg.Kafka.ClientID,
		}, *log.Zerolog())
		if err != nil {
			return nil, err
		}
		return broker, nil
	default:
		return nil, fmt.Errorf("unknown broker driver %q", cfg.Broker.Driver)
	}
}
