package session

import (
	"context"
	"sync"
	"time"

	"loadhub-core-svc/src/internal/models"
)

// Store persists refresh sessions. Revocations are conditional on the record
// still being active, so a credential can be redeemed at most once.
type Store interface {
	Insert(ctx context.Context, s *Session) error
	// RevokeActive revokes the active, unexpired record with tokenHash and
	// returns it. Returns models.ErrZeroMatched when no such record exists.
	RevokeActive(ctx context.Context, tokenHash, reason string, now time.Time) (*Session, error)
	// RevokeAllForUser revokes every active record of the user.
	RevokeAllForUser(ctx context.Context, userID, reason string, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]*Session, error)
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Insert(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return models.ErrDatabaseInsert
	}
	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) RevokeActive(_ context.Context, tokenHash, reason string, now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash && s.IsActive(now) {
			revoke(s, reason, now)
			return s.clone(), nil
		}
	}
	return nil, models.ErrZeroMatched
}

func (m *MemoryStore) RevokeAllForUser(_ context.Context, userID, reason string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, s := range m.sessions {
		if s.UserID == userID && !s.IsRevoked {
			revoke(s, reason, now)
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := []*Session{}
	for _, s := range m.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s.clone())
		}
	}
	return sessions, nil
}

func revoke(s *Session, reason string, now time.Time) {
	t := now
	s.IsRevoked = true
	s.RevokedAt = &t
	s.RevokeReason = reason
}
