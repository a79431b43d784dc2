package database

import (
	"context"
	"fmt"
	"time"

	"giveaway/internal/config"
	"giveaway/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the configured database and applies the pool settings
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	default:
		dialector = postgres.Open(cfg.GetDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MinConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info("database connection established", zap.String("driver", cfg.Driver))
	return db, nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	// Principals first
	identityModels := []interface{}{
		&models.Host{},
		&models.User{},
	}

	// Campaigns and everything that references them
	campaignModels := []interface{}{
		&models.Campaign{},
		&models.Participation{},
		&models.CampaignLink{},
		&models.AccessLog{},
	}

	var firstErr error
	for _, group := range [][]interface{}{identityModels, campaignModels} {
		for _, model := range group {
			if err := db.AutoMigrate(model); err != nil {
				log.Warn("migration issue", zap.String("model", fmt.Sprintf("%T", model)), zap.Error(err))
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to migrate %T: %w", model, err)
				}
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	log.Info("database migrations completed successfully")
	return nil
}

// NewReader wraps the gorm connection pool in sqlx for the analytics read path
func NewReader(db *gorm.DB, driver string) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// The name only selects the bind variable style.
	name := "postgres"
	if driver == "sqlite" {
		name = "sqlite3"
	}
	return sqlx.NewDb(sqlDB, name), nil
}

// Ping checks connectivity for health endpoints
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
