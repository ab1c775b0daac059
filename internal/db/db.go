package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pond-status-backend/config"
	"pond-status-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableTimescale {
		log.Info("applying TimescaleDB-specific DDL for lift_events")
		if err := applyTimescaleDDL(db); err != nil {
			log.Warn("failed to apply TimescaleDB DDL, continuing without it", zap.Error(err))
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate runs the schema migrations. Split out so tests can migrate an
// in-memory sqlite database without the postgres-only setup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Pond{},
		&model.PushSubscription{},
		&model.Alert{},
		&model.LiftEvent{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func applyTimescaleDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS timescaledb;",
		"SELECT create_hypertable('lift_events', 'observed_at', if_not_exists => TRUE);",
		"CREATE INDEX IF NOT EXISTS idx_lift_events_pond_id_observed_at ON lift_events (pond_id, observed_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
