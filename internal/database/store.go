package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed persistence adapter.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open, migrated database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for components sharing the connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// first loads a single row, mapping gorm.ErrRecordNotFound to apperr.NotFound.
func (s *Store) first(ctx context.Context, what string, dest any, query string, args ...any) error {
	err := s.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", what, err)
	}
	return nil
}

// remove deletes the rows matching query, reporting NotFound when none matched.
func (s *Store) remove(ctx context.Context, what string, model any, query string, args ...any) error {
	res := s.db.WithContext(ctx).Where(query, args...).Delete(model)
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(what)
	}
	return nil
}

func (s *Store) create(ctx context.Context, what string, value any) error {
	err := s.db.WithContext(ctx).Create(value).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict(what + " already exists")
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", what, err)
	}
	return nil
}

// Catalog

func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	return s.create(ctx, "asset", asset)
}

func (s *Store) GetAsset(ctx context.Context, id uint) (*models.Asset, error) {
	var asset models.Asset
	if err := s.first(ctx, "asset", &asset, "id = ?", id); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *Store) FindAssetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	var asset models.Asset
	if err := s.first(ctx, "asset", &asset, "symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *Store) ListAssets(ctx context.Context) ([]models.Asset, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).Order("symbol asc").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

func (s *Store) CreateExchange(ctx context.Context, exchange *models.Exchange) error {
	exchange.Name = strings.TrimSpace(exchange.Name)
	return s.create(ctx, "exchange", exchange)
}

func (s *Store) GetExchange(ctx context.Context, id uint) (*models.Exchange, error) {
	var exchange models.Exchange
	if err := s.first(ctx, "exchange", &exchange, "id = ?", id); err != nil {
		return nil, err
	}
	return &exchange, nil
}

func (s *Store) FindExchangeByName(ctx context.Context, name string) (*models.Exchange, error) {
	var exchange models.Exchange
	if err := s.first(ctx, "exchange", &exchange, "name = ?", strings.TrimSpace(name)); err != nil {
		return nil, err
	}
	return &exchange, nil
}

func (s *Store) ListExchanges(ctx context.Context) ([]models.Exchange, error) {
	var exchanges []models.Exchange
	if err := s.db.WithContext(ctx).Order("name asc").Find(&exchanges).Error; err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	return exchanges, nil
}

// Ledger

func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return s.create(ctx, "transaction", tx)
}

func (s *Store) GetTransaction(ctx context.Context, ownerID string, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.first(ctx, "transaction", &tx, "owner_id = ? AND id = ?", ownerID, id); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, ownerID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("date desc, id desc").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (s *Store) ListBuys(ctx context.Context, ownerID string, assetID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND asset_id = ? AND type = ?", ownerID, assetID, models.TransactionBuy).
		Order("date desc, id desc").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list buy transactions: %w", err)
	}
	return txs, nil
}

// Strategies

func (s *Store) SaveBuyStrategy(ctx context.Context, st *models.BuyStrategy) error {
	// The (owner, asset) key decides insert vs update, never the primary key.
	st.ID = 0
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"threshold_percent", "active", "updated_at"}),
	}).Create(st).Error
	if err != nil {
		return fmt.Errorf("failed to save buy strategy: %w", err)
	}
	// Reload so the caller sees the preserved creation time.
	saved, err := s.GetBuyStrategy(ctx, st.OwnerID, st.AssetID)
	if err != nil {
		return err
	}
	*st = *saved
	return nil
}

func (s *Store) GetBuyStrategy(ctx context.Context, ownerID string, assetID uint) (*models.BuyStrategy, error) {
	var st models.BuyStrategy
	if err := s.first(ctx, "buy strategy", &st, "owner_id = ? AND asset_id = ?", ownerID, assetID); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) DeleteBuyStrategy(ctx context.Context, ownerID string, assetID uint) error {
	return s.remove(ctx, "buy strategy", &models.BuyStrategy{}, "owner_id = ? AND asset_id = ?", ownerID, assetID)
}

func (s *Store) SaveSellStrategy(ctx context.Context, st *models.SellStrategy) error {
	st.ID = 0
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"threshold_percent", "active", "updated_at"}),
	}).Create(st).Error
	if err != nil {
		return fmt.Errorf("failed to save sell strategy: %w", err)
	}
	saved, err := s.GetSellStrategy(ctx, st.OwnerID, st.AssetID)
	if err != nil {
		return err
	}
	*st = *saved
	return nil
}

func (s *Store) GetSellStrategy(ctx context.Context, ownerID string, assetID uint) (*models.SellStrategy, error) {
	var st models.SellStrategy
	if err := s.first(ctx, "sell strategy", &st, "owner_id = ? AND asset_id = ?", ownerID, assetID); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) DeleteSellStrategy(ctx context.Context, ownerID string, assetID uint) error {
	return s.remove(ctx, "sell strategy", &models.SellStrategy{}, "owner_id = ? AND asset_id = ?", ownerID, assetID)
}

// Peaks

func (s *Store) SavePeak(ctx context.Context, p *models.PricePeak) error {
	p.ID = 0
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}, {Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"peak_price", "peak_timestamp", "last_buy_transaction_id", "active", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to save price peak: %w", err)
	}
	saved, err := s.GetPeak(ctx, p.OwnerID, p.AssetID)
	if err != nil {
		return err
	}
	*p = *saved
	return nil
}

func (s *Store) GetPeak(ctx context.Context, ownerID string, assetID uint) (*models.PricePeak, error) {
	var p models.PricePeak
	if err := s.first(ctx, "price peak", &p, "owner_id = ? AND asset_id = ?", ownerID, assetID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) DeletePeak(ctx context.Context, ownerID string, assetID uint) error {
	return s.remove(ctx, "price peak", &models.PricePeak{}, "owner_id = ? AND asset_id = ?", ownerID, assetID)
}

// Alerts

func (s *Store) CreateAlert(ctx context.Context, a *models.StrategyAlert) error {
	return s.create(ctx, "pending alert", a)
}

func (s *Store) GetAlert(ctx context.Context, ownerID string, id uint) (*models.StrategyAlert, error) {
	var a models.StrategyAlert
	if err := s.first(ctx, "alert", &a, "owner_id = ? AND id = ?", ownerID, id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) AcknowledgeAlert(ctx context.Context, ownerID string, id uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.StrategyAlert{}).
		Where("owner_id = ? AND id = ? AND status = ?", ownerID, id, models.AlertPending).
		Updates(map[string]any{
			"status":          models.AlertAcknowledged,
			"acknowledged_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to acknowledge alert: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// Nothing matched: either the alert is gone or someone else acknowledged it.
	if _, err := s.GetAlert(ctx, ownerID, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) DeleteAlert(ctx context.Context, ownerID string, id uint) error {
	return s.remove(ctx, "alert", &models.StrategyAlert{}, "owner_id = ? AND id = ?", ownerID, id)
}

func (s *Store) ListAlerts(ctx context.Context, ownerID string) ([]models.StrategyAlert, error) {
	var alerts []models.StrategyAlert
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc, id desc").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *Store) HasPendingAlert(ctx context.Context, ownerID string, assetID uint, typ models.StrategyType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.StrategyAlert{}).
		Where("owner_id = ? AND asset_id = ? AND strategy_type = ? AND status = ?",
			ownerID, assetID, typ, models.AlertPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check pending alerts: %w", err)
	}
	return count > 0, nil
}

// Trades

func (s *Store) CreateTrade(ctx context.Context, t *models.AccumulationTrade) error {
	return s.create(ctx, "accumulation trade", t)
}

func (s *Store) GetTrade(ctx context.Context, ownerID string, id uint) (*models.AccumulationTrade, error) {
	var t models.AccumulationTrade
	if err := s.first(ctx, "accumulation trade", &t, "owner_id = ? AND id = ?", ownerID, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) FindTradeByExit(ctx context.Context, exitTransactionID uint) (*models.AccumulationTrade, error) {
	var t models.AccumulationTrade
	if err := s.first(ctx, "accumulation trade", &t, "exit_transaction_id = ?", exitTransactionID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) FindTradeByReentry(ctx context.Context, reentryTransactionID uint) (*models.AccumulationTrade, error) {
	var t models.AccumulationTrade
	if err := s.first(ctx, "accumulation trade", &t, "reentry_transaction_id = ?", reentryTransactionID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) UpdateTrade(ctx context.Context, t *models.AccumulationTrade) error {
	res := s.db.WithContext(ctx).
		Model(&models.AccumulationTrade{}).
		Where("owner_id = ? AND id = ?", t.OwnerID, t.ID).
		Updates(map[string]any{
			"reentry_transaction_id": t.ReentryTransactionID,
			"new_coin_amount":        t.NewCoinAmount,
			"accumulation_delta":     t.AccumulationDelta,
			"status":                 t.Status,
			"reentry_price_usd":      t.ReentryPriceUSD,
			"prediction_notes":       t.PredictionNotes,
			"closed_at":              t.ClosedAt,
		})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("reentry transaction already linked to a trade")
	}
	if res.Error != nil {
		return fmt.Errorf("failed to update accumulation trade: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("accumulation trade")
	}
	return nil
}

func (s *Store) DeleteTrade(ctx context.Context, ownerID string, id uint) error {
	return s.remove(ctx, "accumulation trade", &models.AccumulationTrade{}, "owner_id = ? AND id = ?", ownerID, id)
}

func (s *Store) ListTrades(ctx context.Context, ownerID string) ([]models.AccumulationTrade, error) {
	var trades []models.AccumulationTrade
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc, id desc").
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accumulation trades: %w", err)
	}
	return trades, nil
}
