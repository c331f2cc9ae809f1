package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertStatus is the lifecycle state of a StrategyAlert.
// PENDING moves to ACKNOWLEDGED once; deletion removes the row.
type AlertStatus string

const (
	AlertPending      AlertStatus = "PENDING"
	AlertAcknowledged AlertStatus = "ACKNOWLEDGED"
)

// StrategyAlert records one threshold crossing.
type StrategyAlert struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OwnerID          string          `gorm:"type:varchar(64);index:idx_alert_owner_asset;not null" json:"owner_id"`
	AssetID          uint            `gorm:"index:idx_alert_owner_asset;not null" json:"asset_id"`
	StrategyType     StrategyType    `gorm:"type:varchar(4);not null" json:"strategy_type"`
	TriggerPrice     decimal.Decimal `gorm:"type:text;not null" json:"trigger_price"`
	ThresholdPercent decimal.Decimal `gorm:"type:text;not null" json:"threshold_percent"`
	ReferencePrice   decimal.Decimal `gorm:"type:text;not null" json:"reference_price"`
	Message          string          `gorm:"type:text" json:"message"`
	Status           AlertStatus     `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	AcknowledgedAt   *time.Time      `json:"acknowledged_at,omitempty"`
	ExecutedAt       *time.Time      `json:"executed_at,omitempty"`
}
