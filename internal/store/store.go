// Package store declares the persistence capabilities the engine consumes and
// builds the configured adapter. Adapters report missing or foreign-owned rows
// with apperr.NotFound and uniqueness violations with apperr.Conflict.
package store

import (
	"context"
	"fmt"
	"time"

	"position-tracker/internal/config"
	"position-tracker/internal/database"
	"position-tracker/internal/memory"
	"position-tracker/internal/models"

	"go.uber.org/zap"
)

// Catalog is the asset and exchange lookup table.
type Catalog interface {
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id uint) (*models.Asset, error)
	FindAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]models.Asset, error)
	CreateExchange(ctx context.Context, exchange *models.Exchange) error
	GetExchange(ctx context.Context, id uint) (*models.Exchange, error)
	FindExchangeByName(ctx context.Context, name string) (*models.Exchange, error)
	ListExchanges(ctx context.Context) ([]models.Exchange, error)
}

// Ledger is the append-only transaction set.
type Ledger interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, ownerID string, id uint) (*models.Transaction, error)
	// ListTransactions returns every owner transaction, newest (date, id) first.
	ListTransactions(ctx context.Context, ownerID string) ([]models.Transaction, error)
	// ListBuys returns the owner's BUY rows for one asset, newest (date, id) first.
	ListBuys(ctx context.Context, ownerID string, assetID uint) ([]models.Transaction, error)
}

// Strategies holds one buy and one sell strategy per (owner, asset).
type Strategies interface {
	SaveBuyStrategy(ctx context.Context, s *models.BuyStrategy) error
	GetBuyStrategy(ctx context.Context, ownerID string, assetID uint) (*models.BuyStrategy, error)
	DeleteBuyStrategy(ctx context.Context, ownerID string, assetID uint) error
	SaveSellStrategy(ctx context.Context, s *models.SellStrategy) error
	GetSellStrategy(ctx context.Context, ownerID string, assetID uint) (*models.SellStrategy, error)
	DeleteSellStrategy(ctx context.Context, ownerID string, assetID uint) error
}

// Peaks holds one price peak row per (owner, asset).
type Peaks interface {
	SavePeak(ctx context.Context, p *models.PricePeak) error
	GetPeak(ctx context.Context, ownerID string, assetID uint) (*models.PricePeak, error)
	DeletePeak(ctx context.Context, ownerID string, assetID uint) error
}

// Alerts stores strategy alerts. CreateAlert fails with a conflict when a
// PENDING alert of the same type already exists for the owner and asset.
type Alerts interface {
	CreateAlert(ctx context.Context, a *models.StrategyAlert) error
	GetAlert(ctx context.Context, ownerID string, id uint) (*models.StrategyAlert, error)
	// AcknowledgeAlert moves a PENDING alert to ACKNOWLEDGED and reports
	// whether this call made the change. An alert that is already
	// acknowledged is left untouched.
	AcknowledgeAlert(ctx context.Context, ownerID string, id uint, at time.Time) (bool, error)
	DeleteAlert(ctx context.Context, ownerID string, id uint) error
	// ListAlerts returns the owner's alerts, newest created first.
	ListAlerts(ctx context.Context, ownerID string) ([]models.StrategyAlert, error)
	HasPendingAlert(ctx context.Context, ownerID string, assetID uint, typ models.StrategyType) (bool, error)
}

// Trades stores accumulation trades.
type Trades interface {
	CreateTrade(ctx context.Context, t *models.AccumulationTrade) error
	GetTrade(ctx context.Context, ownerID string, id uint) (*models.AccumulationTrade, error)
	FindTradeByExit(ctx context.Context, exitTransactionID uint) (*models.AccumulationTrade, error)
	FindTradeByReentry(ctx context.Context, reentryTransactionID uint) (*models.AccumulationTrade, error)
	UpdateTrade(ctx context.Context, t *models.AccumulationTrade) error
	DeleteTrade(ctx context.Context, ownerID string, id uint) error
	// ListTrades returns the owner's trades, newest created first.
	ListTrades(ctx context.Context, ownerID string) ([]models.AccumulationTrade, error)
}

// Store is everything the engine needs from persistence.
type Store interface {
	Catalog
	Ledger
	Strategies
	Peaks
	Alerts
	Trades
	Close() error
}

var (
	_ Store = (*database.Store)(nil)
	_ Store = (*memory.Store)(nil)
)

// Open builds the adapter selected by cfg.Storage.Backend.
func Open(cfg config.Storage, log *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("Using in-memory storage; data is lost on exit")
		return memory.New(), nil
	case config.BackendDatabase:
		db, err := database.NewDatabase(cfg.DSN)
		if err != nil {
			return nil, err
		}
		log.Info("Database connection successful and schema migrated", zap.String("dsn", cfg.DSN))
		return database.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
