// Package accumulation tracks sell-then-rebuy round trips and whether they
// grew the number of coins held.
package accumulation

import (
	"context"
	"errors"
	"strings"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"
	"position-tracker/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TradeStore is the persistence the tracker needs.
type TradeStore interface {
	store.Ledger
	store.Trades
}

// Tracker opens and closes accumulation trades.
type Tracker struct {
	store  TradeStore
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(st TradeStore, logger *zap.Logger) *Tracker {
	return &Tracker{store: st, logger: logger.Named("accumulation"), now: time.Now}
}

// Open starts a trade from an exit SELL. Each SELL backs at most one trade.
func (t *Tracker) Open(ctx context.Context, ownerID string, exitTransactionID uint, notes string) (*models.AccumulationTrade, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	exit, err := t.store.GetTransaction(ctx, ownerID, exitTransactionID)
	if err != nil {
		return nil, err
	}
	if exit.Type != models.TransactionSell {
		return nil, apperr.Validation("Exit transaction must be SELL")
	}

	_, err = t.store.FindTradeByExit(ctx, exit.ID)
	switch {
	case err == nil:
		return nil, apperr.Conflict("accumulation trade already exists for this exit transaction")
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	trade := &models.AccumulationTrade{
		OwnerID:           ownerID,
		AssetID:           exit.AssetID,
		ExitTransactionID: exit.ID,
		OldCoinAmount:     exit.GrossAmount,
		Status:            models.TradeOpen,
		ExitPriceUSD:      exit.UnitPriceUSD,
		PredictionNotes:   notes,
	}
	if err := t.store.CreateTrade(ctx, trade); err != nil {
		return nil, err
	}

	t.logger.Info("Accumulation trade opened",
		zap.String("owner_id", ownerID),
		zap.Uint("trade_id", trade.ID),
		zap.Uint("exit_transaction_id", exit.ID),
		zap.Stringer("old_coin_amount", trade.OldCoinAmount))
	return trade, nil
}

// Close links the reentry BUY to an open trade and records the coin delta.
func (t *Tracker) Close(ctx context.Context, ownerID string, tradeID, reentryTransactionID uint) (*models.AccumulationTrade, error) {
	trade, err := t.Get(ctx, ownerID, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status != models.TradeOpen {
		return nil, apperr.Conflict("trade already closed")
	}

	reentry, err := t.store.GetTransaction(ctx, ownerID, reentryTransactionID)
	if err != nil {
		return nil, err
	}
	if reentry.Type != models.TransactionBuy {
		return nil, apperr.Validation("Reentry transaction must be BUY")
	}
	if reentry.AssetID != trade.AssetID {
		return nil, apperr.Validation("Reentry transaction must be for the same asset as the exit")
	}
	exit, err := t.store.GetTransaction(ctx, ownerID, trade.ExitTransactionID)
	if err != nil {
		return nil, err
	}
	if reentry.Date.Before(exit.Date) {
		return nil, apperr.Validation("Reentry transaction must not be dated before the exit")
	}

	_, err = t.store.FindTradeByReentry(ctx, reentry.ID)
	switch {
	case err == nil:
		return nil, apperr.Conflict("reentry transaction already linked to a trade")
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	closedAt := t.now().UTC()
	id := reentry.ID
	trade.ReentryTransactionID = &id
	trade.NewCoinAmount = decimal.NewNullDecimal(reentry.NetAmount)
	trade.AccumulationDelta = decimal.NewNullDecimal(reentry.NetAmount.Sub(trade.OldCoinAmount))
	trade.ReentryPriceUSD = decimal.NewNullDecimal(reentry.UnitPriceUSD)
	trade.Status = models.TradeClosed
	trade.ClosedAt = &closedAt
	if err := t.store.UpdateTrade(ctx, trade); err != nil {
		return nil, err
	}

	t.logger.Info("Accumulation trade closed",
		zap.String("owner_id", ownerID),
		zap.Uint("trade_id", trade.ID),
		zap.Uint("reentry_transaction_id", reentry.ID),
		zap.Stringer("accumulation_delta", trade.AccumulationDelta.Decimal))
	return trade, nil
}

func (t *Tracker) Get(ctx context.Context, ownerID string, id uint) (*models.AccumulationTrade, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	return t.store.GetTrade(ctx, ownerID, id)
}

// List returns the owner's trades, newest first.
func (t *Tracker) List(ctx context.Context, ownerID string) ([]models.AccumulationTrade, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	return t.store.ListTrades(ctx, ownerID)
}

func (t *Tracker) Delete(ctx context.Context, ownerID string, id uint) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperr.Validation("ownerId is required")
	}
	return t.store.DeleteTrade(ctx, ownerID, id)
}
