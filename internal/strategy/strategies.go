package strategy

import (
	"context"
	"strings"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"
	"position-tracker/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Strategies manages the owner's buy and sell thresholds.
type Strategies struct {
	catalog store.Catalog
	store   store.Strategies
	logger  *zap.Logger
}

// NewStrategies creates a Strategies service.
func NewStrategies(catalog store.Catalog, st store.Strategies, logger *zap.Logger) *Strategies {
	return &Strategies{catalog: catalog, store: st, logger: logger.Named("strategies")}
}

func (s *Strategies) validate(ctx context.Context, ownerID string, assetID uint, pct decimal.Decimal) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperr.Validation("ownerId is required")
	}
	if !pct.IsPositive() {
		return apperr.Validation("thresholdPercent must be greater than zero")
	}
	_, err := s.catalog.GetAsset(ctx, assetID)
	return err
}

// UpsertBuy creates or replaces the buy strategy of an asset. The creation
// time of an existing row is kept.
func (s *Strategies) UpsertBuy(ctx context.Context, ownerID string, assetID uint, pct decimal.Decimal, active bool) (*models.BuyStrategy, error) {
	if err := s.validate(ctx, ownerID, assetID, pct); err != nil {
		return nil, err
	}
	st := &models.BuyStrategy{
		OwnerID:          ownerID,
		AssetID:          assetID,
		ThresholdPercent: pct.Round(models.PercentScale),
		Active:           active,
	}
	if err := s.store.SaveBuyStrategy(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info("Buy strategy saved",
		zap.String("owner_id", ownerID),
		zap.Uint("asset_id", assetID),
		zap.Stringer("threshold_percent", st.ThresholdPercent),
		zap.Bool("active", active))
	return st, nil
}

// UpsertSell creates or replaces the sell strategy of an asset.
func (s *Strategies) UpsertSell(ctx context.Context, ownerID string, assetID uint, pct decimal.Decimal, active bool) (*models.SellStrategy, error) {
	if err := s.validate(ctx, ownerID, assetID, pct); err != nil {
		return nil, err
	}
	st := &models.SellStrategy{
		OwnerID:          ownerID,
		AssetID:          assetID,
		ThresholdPercent: pct.Round(models.PercentScale),
		Active:           active,
	}
	if err := s.store.SaveSellStrategy(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info("Sell strategy saved",
		zap.String("owner_id", ownerID),
		zap.Uint("asset_id", assetID),
		zap.Stringer("threshold_percent", st.ThresholdPercent),
		zap.Bool("active", active))
	return st, nil
}

func (s *Strategies) GetBuy(ctx context.Context, ownerID string, assetID uint) (*models.BuyStrategy, error) {
	return s.store.GetBuyStrategy(ctx, ownerID, assetID)
}

func (s *Strategies) GetSell(ctx context.Context, ownerID string, assetID uint) (*models.SellStrategy, error) {
	return s.store.GetSellStrategy(ctx, ownerID, assetID)
}

func (s *Strategies) DeleteBuy(ctx context.Context, ownerID string, assetID uint) error {
	return s.store.DeleteBuyStrategy(ctx, ownerID, assetID)
}

func (s *Strategies) DeleteSell(ctx context.Context, ownerID string, assetID uint) error {
	return s.store.DeleteSellStrategy(ctx, ownerID, assetID)
}
