package portfolio

import (
	"context"
	"fmt"
	"strings"

	"position-tracker/internal/apperr"
	"position-tracker/internal/models"
	"position-tracker/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AssetPerformance is the valuation of one position.
type AssetPerformance struct {
	OwnerID string `json:"owner_id"`
	PositionKey
	CurrentBalance       decimal.Decimal `json:"current_balance"`
	TotalInvestedUSD     decimal.Decimal `json:"total_invested_usd"`
	AvgBuyPrice          decimal.Decimal `json:"avg_buy_price"`
	CurrentUnitPrice     decimal.Decimal `json:"current_unit_price"`
	CurrentValueUSD      decimal.Decimal `json:"current_value_usd"`
	UnrealizedPnLUSD     decimal.Decimal `json:"unrealized_pnl_usd"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
	RealizedPnLUSD       decimal.Decimal `json:"realized_pnl_usd"`
	TotalPnLUSD          decimal.Decimal `json:"total_pnl_usd"`
}

// Summary is the whole portfolio rolled up.
type Summary struct {
	OwnerID                   string             `json:"owner_id"`
	TotalInvestedUSD          decimal.Decimal    `json:"total_invested_usd"`
	TotalCurrentValueUSD      decimal.Decimal    `json:"total_current_value_usd"`
	TotalUnrealizedPnLUSD     decimal.Decimal    `json:"total_unrealized_pnl_usd"`
	TotalRealizedPnLUSD       decimal.Decimal    `json:"total_realized_pnl_usd"`
	TotalPnLUSD               decimal.Decimal    `json:"total_pnl_usd"`
	TotalUnrealizedPnLPercent decimal.Decimal    `json:"total_unrealized_pnl_percent"`
	Assets                    []AssetPerformance `json:"assets"`
}

// Valuation joins position aggregates with the latest observed prices.
type Valuation struct {
	catalog store.Catalog
	ledger  store.Ledger
	logger  *zap.Logger
}

// NewValuation creates a Valuation.
func NewValuation(catalog store.Catalog, ledger store.Ledger, logger *zap.Logger) *Valuation {
	return &Valuation{catalog: catalog, ledger: ledger, logger: logger.Named("valuation")}
}

// GetPerformance values every position of the owner. When a position has no
// observed trade price the average buy price is used, valuing it at break-even.
func (v *Valuation) GetPerformance(ctx context.Context, ownerID string) ([]AssetPerformance, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}

	txs, err := v.ledger.ListTransactions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	names, err := v.names(ctx)
	if err != nil {
		return nil, err
	}

	aggregates := Aggregate(txs, names)
	latest := LatestPrices(txs, names)
	realized := RealizedProfits(txs, names)

	rows := make([]AssetPerformance, 0, len(aggregates))
	for _, agg := range aggregates {
		price, ok := latest[agg.PositionKey]
		if !ok {
			price = agg.AvgBuyPrice
		}
		value := agg.CurrentBalance.Mul(price).Round(models.PriceScale)
		unrealized := value.Sub(agg.TotalInvestedUSD)
		realizedUSD := realized[agg.PositionKey]

		rows = append(rows, AssetPerformance{
			OwnerID:              ownerID,
			PositionKey:          agg.PositionKey,
			CurrentBalance:       agg.CurrentBalance,
			TotalInvestedUSD:     agg.TotalInvestedUSD,
			AvgBuyPrice:          agg.AvgBuyPrice,
			CurrentUnitPrice:     price,
			CurrentValueUSD:      value,
			UnrealizedPnLUSD:     unrealized,
			UnrealizedPnLPercent: percentOf(unrealized, agg.TotalInvestedUSD),
			RealizedPnLUSD:       realizedUSD,
			TotalPnLUSD:          unrealized.Add(realizedUSD),
		})
	}

	v.logger.Debug("Computed performance", zap.String("owner_id", ownerID), zap.Int("positions", len(rows)))
	return rows, nil
}

// GetSummary sums the performance rows. The percentage is recomputed from
// the summed totals rather than averaged across rows.
func (v *Valuation) GetSummary(ctx context.Context, ownerID string) (*Summary, error) {
	rows, err := v.GetPerformance(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	s := &Summary{OwnerID: ownerID, Assets: rows}
	for _, r := range rows {
		s.TotalInvestedUSD = s.TotalInvestedUSD.Add(r.TotalInvestedUSD)
		s.TotalCurrentValueUSD = s.TotalCurrentValueUSD.Add(r.CurrentValueUSD)
		s.TotalUnrealizedPnLUSD = s.TotalUnrealizedPnLUSD.Add(r.UnrealizedPnLUSD)
		s.TotalRealizedPnLUSD = s.TotalRealizedPnLUSD.Add(r.RealizedPnLUSD)
		s.TotalPnLUSD = s.TotalPnLUSD.Add(r.TotalPnLUSD)
	}
	s.TotalUnrealizedPnLPercent = percentOf(s.TotalUnrealizedPnLUSD, s.TotalInvestedUSD)
	return s, nil
}

func (v *Valuation) names(ctx context.Context) (Names, error) {
	assets, err := v.catalog.ListAssets(ctx)
	if err != nil {
		return Names{}, fmt.Errorf("failed to load assets: %w", err)
	}
	exchanges, err := v.catalog.ListExchanges(ctx)
	if err != nil {
		return Names{}, fmt.Errorf("failed to load exchanges: %w", err)
	}
	return NewNames(assets, exchanges), nil
}

// percentOf returns part/whole×100 rounded half-up to 8 places, or 0 when
// whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, models.PerformanceRate)
}
