package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"
	"position-tracker/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// AlertStore is the persistence the generator reads and writes.
type AlertStore interface {
	store.Catalog
	store.Ledger
	store.Strategies
	store.Peaks
	store.Alerts
}

// Generator turns a current price into strategy alerts. At most one PENDING
// alert exists per (owner, asset, strategy type).
type Generator struct {
	store  AlertStore
	logger *zap.Logger
	now    func() time.Time
	locks  *keyedMutex
}

// NewGenerator creates a Generator.
func NewGenerator(st AlertStore, logger *zap.Logger) *Generator {
	return &Generator{
		store:  st,
		logger: logger.Named("alerts"),
		now:    time.Now,
		locks:  newKeyedMutex(),
	}
}

// Generate runs the sell check and then the buy check for one asset and
// returns only the alerts it created.
func (g *Generator) Generate(ctx context.Context, ownerID string, assetID uint, price decimal.Decimal) ([]models.StrategyAlert, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	if !price.IsPositive() {
		return nil, apperr.Validation("currentPriceUsd must be greater than zero")
	}
	asset, err := g.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}

	unlock := g.locks.Lock(lockKey{ownerID, assetID})
	defer unlock()

	log := g.logger.With(
		zap.String("owner_id", ownerID),
		zap.String("asset", asset.Symbol),
		zap.Stringer("price", price))

	created := make([]models.StrategyAlert, 0, 2)
	for _, check := range []func(context.Context, string, *models.Asset, decimal.Decimal, *zap.Logger) (*models.StrategyAlert, error){
		g.sellCheck,
		g.buyCheck,
	} {
		alert, err := check(ctx, ownerID, asset, price, log)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			created = append(created, *alert)
		}
	}
	return created, nil
}

// sellCheck fires when price >= lastBuy × (1 + pct/100).
func (g *Generator) sellCheck(ctx context.Context, ownerID string, asset *models.Asset, price decimal.Decimal, log *zap.Logger) (*models.StrategyAlert, error) {
	st, err := g.store.GetSellStrategy(ctx, ownerID, asset.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, nil
	}

	buys, err := g.store.ListBuys(ctx, ownerID, asset.ID)
	if err != nil {
		return nil, err
	}
	if len(buys) == 0 {
		log.Debug("Sell check skipped, no buy history")
		return nil, nil
	}
	ref := buys[0].UnitPriceUSD

	// Compared scaled by 100 to stay exact.
	if price.Mul(hundred).LessThan(ref.Mul(hundred.Add(st.ThresholdPercent))) {
		return nil, nil
	}

	msg := fmt.Sprintf("%s reached %s USD, %s%% above the last buy price of %s USD. Consider selling.",
		asset.Symbol, price, st.ThresholdPercent, ref)
	return g.fire(ctx, ownerID, asset.ID, models.StrategySell, price, st.ThresholdPercent, ref, msg, log)
}

// buyCheck fires when price <= peak × (1 − pct/100).
func (g *Generator) buyCheck(ctx context.Context, ownerID string, asset *models.Asset, price decimal.Decimal, log *zap.Logger) (*models.StrategyAlert, error) {
	st, err := g.store.GetBuyStrategy(ctx, ownerID, asset.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, nil
	}

	peak, err := g.store.GetPeak(ctx, ownerID, asset.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Debug("Buy check skipped, no price peak")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !peak.Active {
		return nil, nil
	}
	ref := peak.PeakPrice

	if price.Mul(hundred).GreaterThan(ref.Mul(hundred.Sub(st.ThresholdPercent))) {
		return nil, nil
	}

	msg := fmt.Sprintf("%s dropped to %s USD, %s%% below the peak of %s USD. Consider buying.",
		asset.Symbol, price, st.ThresholdPercent, ref)
	return g.fire(ctx, ownerID, asset.ID, models.StrategyBuy, price, st.ThresholdPercent, ref, msg, log)
}

func (g *Generator) fire(ctx context.Context, ownerID string, assetID uint, typ models.StrategyType,
	price, pct, ref decimal.Decimal, msg string, log *zap.Logger) (*models.StrategyAlert, error) {
	pending, err := g.store.HasPendingAlert(ctx, ownerID, assetID, typ)
	if err != nil {
		return nil, err
	}
	if pending {
		log.Debug("Alert already pending", zap.String("strategy_type", string(typ)))
		return nil, nil
	}

	alert := &models.StrategyAlert{
		OwnerID:          ownerID,
		AssetID:          assetID,
		StrategyType:     typ,
		TriggerPrice:     price.Round(models.PriceScale),
		ThresholdPercent: pct,
		ReferencePrice:   ref,
		Message:          msg,
		Status:           models.AlertPending,
	}
	if err := g.store.CreateAlert(ctx, alert); err != nil {
		// Another process won the insert.
		if errors.Is(err, apperr.ErrConflict) {
			log.Debug("Alert already pending", zap.String("strategy_type", string(typ)))
			return nil, nil
		}
		return nil, err
	}

	log.Info("Strategy alert created",
		zap.Uint("alert_id", alert.ID),
		zap.String("strategy_type", string(typ)),
		zap.Stringer("reference_price", ref))
	return alert, nil
}

// Acknowledge marks an alert as seen. Acknowledging twice, or racing another
// acknowledge, returns the stored alert with the first timestamp.
func (g *Generator) Acknowledge(ctx context.Context, ownerID string, id uint) (*models.StrategyAlert, error) {
	alert, err := g.store.GetAlert(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == models.AlertAcknowledged {
		return alert, nil
	}

	changed, err := g.store.AcknowledgeAlert(ctx, ownerID, id, g.now().UTC())
	if err != nil {
		return nil, err
	}
	if changed {
		g.logger.Info("Strategy alert acknowledged", zap.String("owner_id", ownerID), zap.Uint("alert_id", id))
	}
	return g.store.GetAlert(ctx, ownerID, id)
}

// Delete removes an alert in any state.
func (g *Generator) Delete(ctx context.Context, ownerID string, id uint) error {
	return g.store.DeleteAlert(ctx, ownerID, id)
}

// List returns the owner's alerts, newest first.
func (g *Generator) List(ctx context.Context, ownerID string) ([]models.StrategyAlert, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	return g.store.ListAlerts(ctx, ownerID)
}
