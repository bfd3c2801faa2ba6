package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"mindcare-chatbot-backend/config"
)

// Connect opens every backing store the configuration enables.
func Connect(cfg *config.Config) error {
	if cfg.NeedsMongo() {
		if err := ConnectMongoDB(cfg); err != nil {
			return err
		}
	}

	if cfg.Postgres.Enabled {
		if _, err := GetPostgres(cfg); err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
	}

	if cfg.Sessions.Store == "redis" {
		GetRedis(cfg)
	}

	return nil
}

// Disconnect closes database connections
func Disconnect() error {
	return errors.Join(
		DisconnectMongoDB(),
		ClosePostgres(),
		CloseRedis(),
	)
}

// HealthCheck pings every store that was opened.
func HealthCheck(ctx context.Context) error {
	var errs []error

	if mongoClient != nil {
		if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			errs = append(errs, fmt.Errorf("mongodb: %w", err))
		}
	}

	if db != nil {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}

	if redisClient != nil {
		if err := redisClient.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	return errors.Join(errs...)
}
