package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"position-tracker/internal/models"

	"gorm.io/gorm"
)

// GormStore persists tokens in the session_tokens table.
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{db: db, ttl: ttl, now: time.Now}
}

func (s *GormStore) Issue(ctx context.Context, ownerID string) (*models.SessionToken, error) {
	return s.issue(s.db.WithContext(ctx), ownerID)
}

func (s *GormStore) issue(tx *gorm.DB, ownerID string) (*models.SessionToken, error) {
	t, err := newToken(ownerID, s.ttl, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return t, nil
}

func (s *GormStore) Rotate(ctx context.Context, token string) (*models.SessionToken, error) {
	var next *models.SessionToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := s.load(tx, token)
		if err != nil {
			return err
		}
		if !live(old, s.now()) {
			return ErrInvalidToken
		}
		if err := s.revoke(tx, token); err != nil {
			return err
		}
		next, err = s.issue(tx, old.OwnerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *GormStore) Validate(ctx context.Context, token string) (string, error) {
	t, err := s.load(s.db.WithContext(ctx), token)
	if err != nil {
		return "", err
	}
	if !live(t, s.now()) {
		return "", ErrInvalidToken
	}
	return t.OwnerID, nil
}

func (s *GormStore) Revoke(ctx context.Context, token string) error {
	return s.revoke(s.db.WithContext(ctx), token)
}

func (s *GormStore) load(tx *gorm.DB, token string) (*models.SessionToken, error) {
	var t models.SessionToken
	err := tx.Where("token = ?", token).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session token: %w", err)
	}
	return &t, nil
}

func (s *GormStore) revoke(tx *gorm.DB, token string) error {
	res := tx.Model(&models.SessionToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", s.now().UTC())
	if res.Error != nil {
		return fmt.Errorf("failed to revoke session token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}
