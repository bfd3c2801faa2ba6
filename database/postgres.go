package database

import (
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// GetPostgres opens the relational credential store once.
func GetPostgres(cfg *config.Config) (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = gorm.Open(postgres.Open(cfg.BuildPostgresDSN()), &gorm.Config{
			TranslateError: true,
		})
		if dbErr != nil {
			logger.Log.WithError(dbErr).Error("Failed to connect to PostgreSQL")
			return
		}

		logger.Log.Info("Connected to PostgreSQL")
	})

	return db, dbErr
}

func ClosePostgres() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
