package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the state of an AccumulationTrade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// AccumulationTrade pairs a SELL (exit) with a later BUY (reentry) to measure
// whether the round trip increased the coin count.
type AccumulationTrade struct {
	ID                   uint                `gorm:"primaryKey" json:"id"`
	OwnerID              string              `gorm:"type:varchar(64);index;not null" json:"owner_id"`
	AssetID              uint                `gorm:"not null" json:"asset_id"`
	ExitTransactionID    uint                `gorm:"uniqueIndex;not null" json:"exit_transaction_id"`
	ReentryTransactionID *uint               `gorm:"uniqueIndex" json:"reentry_transaction_id,omitempty"`
	OldCoinAmount        decimal.Decimal     `gorm:"type:text;not null" json:"old_coin_amount"`
	NewCoinAmount        decimal.NullDecimal `gorm:"type:text" json:"new_coin_amount"`
	AccumulationDelta    decimal.NullDecimal `gorm:"type:text" json:"accumulation_delta"`
	Status               TradeStatus         `gorm:"type:varchar(8);not null" json:"status"`
	ExitPriceUSD         decimal.Decimal     `gorm:"column:exit_price_usd;type:text;not null" json:"exit_price_usd"`
	ReentryPriceUSD      decimal.NullDecimal `gorm:"column:reentry_price_usd;type:text" json:"reentry_price_usd"`
	PredictionNotes      string              `gorm:"type:text" json:"prediction_notes,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	ClosedAt             *time.Time          `json:"closed_at,omitempty"`
}
