package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/logger"
)

// Connect opens the PostgreSQL connection and optionally migrates the given models.
func Connect(dsn string, migrate bool, models ...interface{}) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Database connected")

	if migrate {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info().Int("tables", len(models)).Msg("Database migrations completed")
	}

	return db, nil
}
