// Package session issues opaque bearer tokens that resolve to an owner id.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"position-tracker/internal/apperr"
	"position-tracker/internal/config"
	"position-tracker/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidToken is returned for unknown, revoked and expired tokens.
var ErrInvalidToken = errors.New("invalid or expired session token")

// Store is the token capability set.
type Store interface {
	// Issue creates a new token for ownerID.
	Issue(ctx context.Context, ownerID string) (*models.SessionToken, error)
	// Rotate revokes token and issues a replacement for the same owner.
	Rotate(ctx context.Context, token string) (*models.SessionToken, error)
	// Validate returns the owner bound to a live token.
	Validate(ctx context.Context, token string) (string, error)
	// Revoke invalidates token. Revoking an unknown token is an error.
	Revoke(ctx context.Context, token string) error
}

// Open builds the token store for the configured backend. db is required for
// the database backend and ignored otherwise.
func Open(backend config.Backend, db *gorm.DB, ttl time.Duration, logger *zap.Logger) (Store, error) {
	switch backend {
	case config.BackendMemory:
		logger.Warn("Using in-memory session tokens; sessions are lost on exit")
		return NewMemoryStore(ttl), nil
	case config.BackendDatabase:
		if db == nil {
			return nil, errors.New("session store requires a database handle")
		}
		return NewGormStore(db, ttl), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func newToken(ownerID string, ttl time.Duration, now time.Time) (*models.SessionToken, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.Validation("ownerId is required")
	}
	return &models.SessionToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		OwnerID:   ownerID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

func live(t *models.SessionToken, now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
