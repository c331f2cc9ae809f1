package session

import (
	"context"
	"sync"
	"time"

	"position-tracker/internal/models"
)

// MemoryStore keeps tokens in process memory; they vanish on restart.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]models.SessionToken
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, tokens: make(map[string]models.SessionToken), now: time.Now}
}

func (s *MemoryStore) Issue(_ context.Context, ownerID string) (*models.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(ownerID)
}

func (s *MemoryStore) issueLocked(ownerID string) (*models.SessionToken, error) {
	t, err := newToken(ownerID, s.ttl, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.tokens[t.Token] = *t
	return t, nil
}

func (s *MemoryStore) Rotate(_ context.Context, token string) (*models.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tokens[token]
	if !ok || !live(&old, s.now()) {
		return nil, ErrInvalidToken
	}
	s.revokeLocked(old)
	return s.issueLocked(old.OwnerID)
}

func (s *MemoryStore) Validate(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || !live(&t, s.now()) {
		return "", ErrInvalidToken
	}
	return t.OwnerID, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || t.RevokedAt != nil {
		return ErrInvalidToken
	}
	s.revokeLocked(t)
	return nil
}

func (s *MemoryStore) revokeLocked(t models.SessionToken) {
	now := s.now().UTC()
	t.RevokedAt = &now
	s.tokens[t.Token] = t
}
