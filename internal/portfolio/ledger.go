package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"
	"position-tracker/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BuyObserver is told about every recorded BUY.
type BuyObserver interface {
	ResetOnBuy(ctx context.Context, tx *models.Transaction) error
}

// RecordInput is a transaction as submitted by the owner.
type RecordInput struct {
	OwnerID      string
	AssetID      uint
	ExchangeID   uint
	Type         models.TransactionType
	GrossAmount  decimal.Decimal
	FeeAmount    *decimal.Decimal
	FeeCurrency  *string
	UnitPriceUSD decimal.Decimal
	Date         time.Time
	Notes        string
}

// Ledger is the write path of the transaction ledger.
type Ledger struct {
	catalog  store.Catalog
	ledger   store.Ledger
	observer BuyObserver
	logger   *zap.Logger
	now      func() time.Time

	// mu serialises balance checks with the insert that depends on them.
	mu sync.Mutex
}

// NewLedger creates a Ledger. observer may be nil.
func NewLedger(catalog store.Catalog, ledger store.Ledger, observer BuyObserver, logger *zap.Logger) *Ledger {
	return &Ledger{
		catalog:  catalog,
		ledger:   ledger,
		observer: observer,
		logger:   logger.Named("ledger"),
		now:      time.Now,
	}
}

// Record validates a transaction, derives its persisted amounts and appends it.
// A SELL carries its realized profit under weighted-average costing and may
// not exceed the position balance.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (*models.Transaction, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	if in.Type != models.TransactionBuy && in.Type != models.TransactionSell {
		return nil, apperr.Validationf("unsupported transaction type %q", in.Type)
	}

	asset, err := l.catalog.GetAsset(ctx, in.AssetID)
	if err != nil {
		return nil, err
	}
	if _, err := l.catalog.GetExchange(ctx, in.ExchangeID); err != nil {
		return nil, err
	}

	fees, err := ComputeFees(FeeInput{
		AssetSymbol:  asset.Symbol,
		GrossAmount:  in.GrossAmount,
		FeeAmount:    in.FeeAmount,
		FeeCurrency:  in.FeeCurrency,
		UnitPriceUSD: in.UnitPriceUSD,
	})
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = l.now()
	}

	tx := &models.Transaction{
		OwnerID:       in.OwnerID,
		AssetID:       in.AssetID,
		ExchangeID:    in.ExchangeID,
		Type:          in.Type,
		GrossAmount:   in.GrossAmount,
		FeeAmount:     decimal.NewNullDecimal(fees.FeeAmount),
		FeeCurrency:   fees.FeeCurrency,
		NetAmount:     fees.NetAmount,
		UnitPriceUSD:  in.UnitPriceUSD,
		TotalSpentUSD: fees.TotalSpentUSD,
		Date:          date.UTC(),
		Notes:         in.Notes,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.Type == models.TransactionSell {
		realized, err := l.realizedFor(ctx, tx)
		if err != nil {
			return nil, err
		}
		tx.RealizedPnL = decimal.NewNullDecimal(realized)
	}

	if err := l.ledger.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	log := l.logger.With(
		zap.String("owner_id", tx.OwnerID),
		zap.Uint("transaction_id", tx.ID),
		zap.String("asset", asset.Symbol),
		zap.String("type", string(tx.Type)),
	)
	log.Info("Transaction recorded",
		zap.Stringer("net_amount", tx.NetAmount),
		zap.Stringer("total_spent_usd", tx.TotalSpentUSD))

	if tx.Type == models.TransactionBuy && l.observer != nil {
		// The ledger row is authoritative; a stale peak only delays a buy alert.
		if err := l.observer.ResetOnBuy(ctx, tx); err != nil {
			log.Warn("Failed to reset price peak after buy", zap.Error(err))
		}
	}
	return tx, nil
}

// realizedFor prices a SELL against the position's average cost on the
// sell date: realized = proceeds − invested × net / balance, where balance
// and invested cover only rows dated no later than the sell. The sell must
// also leave every later SELL of the position covered.
func (l *Ledger) realizedFor(ctx context.Context, sell *models.Transaction) (decimal.Decimal, error) {
	txs, err := l.ledger.ListTransactions(ctx, sell.OwnerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load position history: %w", err)
	}

	position := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.AssetID == sell.AssetID && tx.ExchangeID == sell.ExchangeID {
			position = append(position, tx)
		}
	}
	sort.Slice(position, func(i, j int) bool { return position[j].After(&position[i]) })

	// The sell has no id yet and sorts after every row sharing its date.
	cut := sort.Search(len(position), func(i int) bool { return position[i].Date.After(sell.Date) })

	var balance, invested decimal.Decimal
	for _, agg := range Aggregate(position[:cut], Names{}) {
		balance = agg.CurrentBalance
		invested = agg.TotalInvestedUSD
	}

	if sell.NetAmount.GreaterThan(balance) {
		return decimal.Zero, apperr.Validationf("insufficient balance: holding %s on %s, selling %s",
			balance, sell.Date.Format(time.DateOnly), sell.NetAmount)
	}

	running := balance.Sub(sell.NetAmount)
	for _, tx := range position[cut:] {
		running = running.Add(signedAmount(&tx))
		if running.IsNegative() {
			return decimal.Zero, apperr.Validationf("insufficient balance: selling %s on %s leaves the sell of %s uncovered",
				sell.NetAmount, sell.Date.Format(time.DateOnly), tx.Date.Format(time.DateOnly))
		}
	}

	costRemoved := invested.Mul(sell.NetAmount).DivRound(balance, models.PriceScale)
	return sell.TotalSpentUSD.Sub(costRemoved), nil
}

func signedAmount(tx *models.Transaction) decimal.Decimal {
	if tx.Type == models.TransactionSell {
		return tx.NetAmount.Neg()
	}
	return tx.NetAmount
}

// List returns the owner's transactions, newest first.
func (l *Ledger) List(ctx context.Context, ownerID string) ([]models.Transaction, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	return l.ledger.ListTransactions(ctx, ownerID)
}

// Get returns one of the owner's transactions.
func (l *Ledger) Get(ctx context.Context, ownerID string, id uint) (*models.Transaction, error) {
	return l.ledger.GetTransaction(ctx, ownerID, id)
}
