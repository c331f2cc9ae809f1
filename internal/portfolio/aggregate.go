package portfolio

import (
	"fmt"
	"sort"

	"position-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// PositionKey identifies one position: an asset held on one exchange.
type PositionKey struct {
	AssetSymbol  string `json:"asset_symbol"`
	ExchangeName string `json:"exchange_name"`
}

// PositionAggregate is the ledger folded down to one position.
type PositionAggregate struct {
	PositionKey
	AssetID          uint            `json:"asset_id"`
	ExchangeID       uint            `json:"exchange_id"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	TotalInvestedUSD decimal.Decimal `json:"total_invested_usd"`
	AvgBuyPrice      decimal.Decimal `json:"avg_buy_price"`
}

// Names resolves asset and exchange ids to display keys.
type Names struct {
	Assets    map[uint]string
	Exchanges map[uint]string
}

// NewNames indexes the catalog rows by id.
func NewNames(assets []models.Asset, exchanges []models.Exchange) Names {
	n := Names{
		Assets:    make(map[uint]string, len(assets)),
		Exchanges: make(map[uint]string, len(exchanges)),
	}
	for _, a := range assets {
		n.Assets[a.ID] = a.Symbol
	}
	for _, e := range exchanges {
		n.Exchanges[e.ID] = e.Name
	}
	return n
}

// KeyOf returns the position key of a transaction.
func (n Names) KeyOf(tx *models.Transaction) PositionKey {
	symbol, ok := n.Assets[tx.AssetID]
	if !ok {
		symbol = fmt.Sprintf("asset-%d", tx.AssetID)
	}
	exchange, ok := n.Exchanges[tx.ExchangeID]
	if !ok {
		exchange = fmt.Sprintf("exchange-%d", tx.ExchangeID)
	}
	return PositionKey{AssetSymbol: symbol, ExchangeName: exchange}
}

// Aggregate folds transactions into per-position balance and cost basis:
//
//	balance  = Σ buy.net − Σ sell.net
//	invested = Σ buy.total − Σ (sell.total − sell.realizedPnl)
//	avgPrice = invested / balance, or 0 for an empty position
//
// Rows are sorted by asset symbol, then exchange name.
func Aggregate(txs []models.Transaction, names Names) []PositionAggregate {
	byKey := make(map[PositionKey]*PositionAggregate)
	for i := range txs {
		tx := &txs[i]
		key := names.KeyOf(tx)
		agg, ok := byKey[key]
		if !ok {
			agg = &PositionAggregate{PositionKey: key, AssetID: tx.AssetID, ExchangeID: tx.ExchangeID}
			byKey[key] = agg
		}
		switch tx.Type {
		case models.TransactionBuy:
			agg.CurrentBalance = agg.CurrentBalance.Add(tx.NetAmount)
			agg.TotalInvestedUSD = agg.TotalInvestedUSD.Add(tx.TotalSpentUSD)
		case models.TransactionSell:
			agg.CurrentBalance = agg.CurrentBalance.Sub(tx.NetAmount)
			costRemoved := tx.TotalSpentUSD.Sub(realizedOf(tx))
			agg.TotalInvestedUSD = agg.TotalInvestedUSD.Sub(costRemoved)
		}
	}

	out := make([]PositionAggregate, 0, len(byKey))
	for _, agg := range byKey {
		if !agg.CurrentBalance.IsZero() {
			agg.AvgBuyPrice = agg.TotalInvestedUSD.DivRound(agg.CurrentBalance, models.PriceScale)
		}
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetSymbol != out[j].AssetSymbol {
			return out[i].AssetSymbol < out[j].AssetSymbol
		}
		return out[i].ExchangeName < out[j].ExchangeName
	})
	return out
}

// RealizedProfits sums realizedPnl over SELL rows per position.
func RealizedProfits(txs []models.Transaction, names Names) map[PositionKey]decimal.Decimal {
	out := make(map[PositionKey]decimal.Decimal)
	for i := range txs {
		tx := &txs[i]
		if tx.Type != models.TransactionSell {
			continue
		}
		key := names.KeyOf(tx)
		out[key] = out[key].Add(realizedOf(tx))
	}
	return out
}

// LatestPrices returns, per position, the unit price of the newest
// transaction of any type, ordered by date and then id.
func LatestPrices(txs []models.Transaction, names Names) map[PositionKey]decimal.Decimal {
	newest := make(map[PositionKey]*models.Transaction)
	for i := range txs {
		tx := &txs[i]
		key := names.KeyOf(tx)
		if cur, ok := newest[key]; !ok || tx.After(cur) {
			newest[key] = tx
		}
	}
	out := make(map[PositionKey]decimal.Decimal, len(newest))
	for key, tx := range newest {
		out[key] = tx.UnitPriceUSD
	}
	return out
}

func realizedOf(tx *models.Transaction) decimal.Decimal {
	if tx.RealizedPnL.Valid {
		return tx.RealizedPnL.Decimal
	}
	return decimal.Zero
}
