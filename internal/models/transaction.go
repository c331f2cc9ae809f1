package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the side of a ledger entry.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Decimal scales used when values are persisted.
const (
	QuantityScale   int32 = 18
	PriceScale      int32 = 8
	PercentScale    int32 = 2
	PerformanceRate int32 = 8
)

// Transaction is an immutable ledger entry. NetAmount, TotalSpentUSD and
// RealizedPnL are derived once when the row is recorded.
type Transaction struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	OwnerID       string              `gorm:"type:varchar(64);index:idx_tx_owner_asset;not null" json:"owner_id"`
	AssetID       uint                `gorm:"index:idx_tx_owner_asset;not null" json:"asset_id"`
	ExchangeID    uint                `gorm:"not null" json:"exchange_id"`
	Type          TransactionType     `gorm:"type:varchar(4);not null" json:"type"`
	GrossAmount   decimal.Decimal     `gorm:"type:text;not null" json:"gross_amount"`
	FeeAmount     decimal.NullDecimal `gorm:"type:text" json:"fee_amount"`
	FeeCurrency   *string             `gorm:"type:varchar(20)" json:"fee_currency,omitempty"`
	NetAmount     decimal.Decimal     `gorm:"type:text;not null" json:"net_amount"`
	UnitPriceUSD  decimal.Decimal     `gorm:"column:unit_price_usd;type:text;not null" json:"unit_price_usd"`
	TotalSpentUSD decimal.Decimal     `gorm:"column:total_spent_usd;type:text;not null" json:"total_spent_usd"`
	RealizedPnL   decimal.NullDecimal `gorm:"column:realized_pnl;type:text" json:"realized_pnl"`
	Date          time.Time           `gorm:"index;not null" json:"date"`
	Notes         string              `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// After reports whether t sorts after o in ledger order (date, then id).
func (t *Transaction) After(o *Transaction) bool {
	if !t.Date.Equal(o.Date) {
		return t.Date.After(o.Date)
	}
	return t.ID > o.ID
}
