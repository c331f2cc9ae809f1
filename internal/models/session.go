package models

import "time"

// SessionToken is an opaque bearer token bound to one owner.
type SessionToken struct {
	Token     string     `gorm:"primaryKey;type:varchar(64)" json:"token"`
	OwnerID   string     `gorm:"type:varchar(64);index;not null" json:"owner_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
