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

// PeakUpdate is an owner correction to a stored peak. A zero timestamp keeps
// the stored one; a nil Active keeps the stored flag.
type PeakUpdate struct {
	PeakPrice     decimal.Decimal
	PeakTimestamp time.Time
	Active        *bool
}

// PeakStore is the persistence PeakTracker needs. Buys are read to tell the
// newest BUY apart from a backdated one.
type PeakStore interface {
	store.Peaks
	ListBuys(ctx context.Context, ownerID string, assetID uint) ([]models.Transaction, error)
}

// PeakTracker maintains the highest price seen per (owner, asset) since the
// last buy.
type PeakTracker struct {
	peaks  PeakStore
	logger *zap.Logger
	now    func() time.Time
}

// NewPeakTracker creates a PeakTracker.
func NewPeakTracker(peaks PeakStore, logger *zap.Logger) *PeakTracker {
	return &PeakTracker{peaks: peaks, logger: logger.Named("peaks"), now: time.Now}
}

// Get returns the stored peak whether or not it is active.
func (p *PeakTracker) Get(ctx context.Context, ownerID string, assetID uint) (*models.PricePeak, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	return p.peaks.GetPeak(ctx, ownerID, assetID)
}

// Active returns the active peak, or NotFound when there is none.
func (p *PeakTracker) Active(ctx context.Context, ownerID string, assetID uint) (*models.PricePeak, error) {
	peak, err := p.Get(ctx, ownerID, assetID)
	if err != nil {
		return nil, err
	}
	if !peak.Active {
		return nil, apperr.NotFound("active price peak")
	}
	return peak, nil
}

// Update applies an owner correction to an existing peak.
func (p *PeakTracker) Update(ctx context.Context, ownerID string, assetID uint, upd PeakUpdate) (*models.PricePeak, error) {
	if !upd.PeakPrice.IsPositive() {
		return nil, apperr.Validation("peakPrice must be greater than zero")
	}
	peak, err := p.Get(ctx, ownerID, assetID)
	if err != nil {
		return nil, err
	}

	peak.PeakPrice = upd.PeakPrice.Round(models.PriceScale)
	if !upd.PeakTimestamp.IsZero() {
		peak.PeakTimestamp = upd.PeakTimestamp.UTC()
	}
	if upd.Active != nil {
		peak.Active = *upd.Active
	}
	if err := p.peaks.SavePeak(ctx, peak); err != nil {
		return nil, err
	}

	p.logger.Info("Price peak updated",
		zap.String("owner_id", ownerID),
		zap.Uint("asset_id", assetID),
		zap.Stringer("peak_price", peak.PeakPrice),
		zap.Bool("active", peak.Active))
	return peak, nil
}

// Delete removes the peak.
func (p *PeakTracker) Delete(ctx context.Context, ownerID string, assetID uint) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperr.Validation("ownerId is required")
	}
	return p.peaks.DeletePeak(ctx, ownerID, assetID)
}

// Observe records a market price. The peak is created on first sight and
// raised when price exceeds it; a deactivated peak keeps its flag.
func (p *PeakTracker) Observe(ctx context.Context, ownerID string, assetID uint, price decimal.Decimal, at time.Time) (*models.PricePeak, error) {
	if !price.IsPositive() {
		return nil, apperr.Validation("price must be greater than zero")
	}
	if at.IsZero() {
		at = p.now()
	}

	peak, err := p.Get(ctx, ownerID, assetID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		peak = &models.PricePeak{OwnerID: ownerID, AssetID: assetID, Active: true}
	case err != nil:
		return nil, err
	case !price.GreaterThan(peak.PeakPrice):
		return peak, nil
	}

	peak.PeakPrice = price.Round(models.PriceScale)
	peak.PeakTimestamp = at.UTC()
	if err := p.peaks.SavePeak(ctx, peak); err != nil {
		return nil, err
	}
	p.logger.Debug("Price peak raised",
		zap.String("owner_id", ownerID),
		zap.Uint("asset_id", assetID),
		zap.Stringer("peak_price", peak.PeakPrice))
	return peak, nil
}

// ResetOnBuy restarts the peak at the buy price and links the buy. Only the
// newest BUY for the asset, by (date, id), resets the peak; it is the same
// buy the sell check prices against.
func (p *PeakTracker) ResetOnBuy(ctx context.Context, tx *models.Transaction) error {
	if tx.Type != models.TransactionBuy {
		return nil
	}
	buys, err := p.peaks.ListBuys(ctx, tx.OwnerID, tx.AssetID)
	if err != nil {
		return fmt.Errorf("failed to load buys: %w", err)
	}
	if len(buys) > 0 && buys[0].ID != tx.ID {
		p.logger.Debug("Backdated buy leaves price peak unchanged",
			zap.String("owner_id", tx.OwnerID),
			zap.Uint("asset_id", tx.AssetID),
			zap.Uint("transaction_id", tx.ID),
			zap.Uint("newest_buy_id", buys[0].ID))
		return nil
	}
	id := tx.ID
	peak := &models.PricePeak{
		OwnerID:              tx.OwnerID,
		AssetID:              tx.AssetID,
		PeakPrice:            tx.UnitPriceUSD,
		PeakTimestamp:        tx.Date.UTC(),
		LastBuyTransactionID: &id,
		Active:               true,
	}
	if err := p.peaks.SavePeak(ctx, peak); err != nil {
		return err
	}
	p.logger.Info("Price peak reset after buy",
		zap.String("owner_id", tx.OwnerID),
		zap.Uint("asset_id", tx.AssetID),
		zap.Uint("transaction_id", tx.ID),
		zap.Stringer("peak_price", peak.PeakPrice))
	return nil
}
