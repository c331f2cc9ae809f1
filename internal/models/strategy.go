package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyType names which check produced an alert.
type StrategyType string

const (
	StrategyBuy  StrategyType = "BUY"
	StrategySell StrategyType = "SELL"
)

// BuyStrategy fires a BUY alert once the price falls ThresholdPercent below
// the active price peak.
type BuyStrategy struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OwnerID          string          `gorm:"type:varchar(64);uniqueIndex:idx_buy_strategy_owner_asset;not null" json:"owner_id"`
	AssetID          uint            `gorm:"uniqueIndex:idx_buy_strategy_owner_asset;not null" json:"asset_id"`
	ThresholdPercent decimal.Decimal `gorm:"type:text;not null" json:"threshold_percent"`
	Active           bool            `gorm:"not null" json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// SellStrategy fires a SELL alert once the price rises ThresholdPercent above
// the most recent buy price.
type SellStrategy struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OwnerID          string          `gorm:"type:varchar(64);uniqueIndex:idx_sell_strategy_owner_asset;not null" json:"owner_id"`
	AssetID          uint            `gorm:"uniqueIndex:idx_sell_strategy_owner_asset;not null" json:"asset_id"`
	ThresholdPercent decimal.Decimal `gorm:"type:text;not null" json:"threshold_percent"`
	Active           bool            `gorm:"not null" json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PricePeak is the highest price seen for an asset since its last buy.
type PricePeak struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	OwnerID              string          `gorm:"type:varchar(64);uniqueIndex:idx_peak_owner_asset;not null" json:"owner_id"`
	AssetID              uint            `gorm:"uniqueIndex:idx_peak_owner_asset;not null" json:"asset_id"`
	PeakPrice            decimal.Decimal `gorm:"type:text;not null" json:"peak_price"`
	PeakTimestamp        time.Time       `gorm:"not null" json:"peak_timestamp"`
	LastBuyTransactionID *uint           `json:"last_buy_transaction_id,omitempty"`
	Active               bool            `gorm:"not null" json:"active"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
