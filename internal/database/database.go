package database

import (
	"fmt"

	"position-tracker/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pendingAlertIndex allows at most one PENDING alert per owner, asset and type.
const pendingAlertIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_one_pending
ON strategy_alerts(owner_id, asset_id, strategy_type) WHERE status = 'PENDING'`

// NewDatabase opens the SQLite database at dsn and migrates the schema.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite serialises writers anyway; a single connection also keeps
	// ":memory:" databases from splitting across pool connections.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates every table the engine uses.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Asset{},
		&models.Exchange{},
		&models.Transaction{},
		&models.BuyStrategy{},
		&models.SellStrategy{},
		&models.PricePeak{},
		&models.StrategyAlert{},
		&models.AccumulationTrade{},
		&models.SessionToken{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	if err := db.Exec(pendingAlertIndex).Error; err != nil {
		return fmt.Errorf("failed to create pending alert index: %w", err)
	}
	return nil
}
