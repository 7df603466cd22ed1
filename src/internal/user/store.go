package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"loadhub-core-svc/src/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetAllUsers(ctx context.Context, req *GetAllUsersRequest) ([]*User, int64, error)
	UpdateStatus(ctx context.Context, id, status string, now time.Time) error
	TouchLogin(ctx context.Context, id string, now time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt, now time.Time) error
	// ConsumeResetToken swaps the password of the user holding an unexpired
	// reset token and clears the token. Returns ErrZeroMatched when none does.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error)
}

type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (s *MemoryStore) Insert(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email || (u.Phone != "" && existing.Phone == u.Phone) {
			return models.ErrDuplicateUser
		}
	}
	s.users[u.ID] = u.clone()
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return u.clone(), nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return u.clone(), nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *MemoryStore) GetAllUsers(_ context.Context, req *GetAllUsersRequest) ([]*User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(req.Search)
	var matched []*User
	for _, u := range s.users {
		if req.Role != "" && u.Role != req.Role {
			continue
		}
		if req.Status != "" && u.Status != req.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start, err := models.PageSkip(req.Page, req.Limit)
	if err != nil {
		return nil, 0, err
	}
	if start > total {
		start = total
	}
	end := total
	if req.Limit > 0 && start+int64(req.Limit) < total {
		end = start + int64(req.Limit)
	}

	users := make([]*User, 0, end-start)
	for _, u := range matched[start:end] {
		users = append(users, u.clone())
	}
	return users, total, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id, status string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.Status = status
	u.UpdatedAt = now
	return nil
}

func (s *MemoryStore) TouchLogin(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.LastLoginAt = &now
	return nil
}

func (s *MemoryStore) SetResetToken(_ context.Context, id, tokenHash string, expiresAt, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	u.ResetTokenHash = tokenHash
	u.ResetExpiresAt = &expiresAt
	u.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ResetTokenHash != tokenHash || u.ResetExpiresAt == nil || !u.ResetExpiresAt.After(now) {
			continue
		}
		u.PasswordHash = passwordHash
		u.ResetTokenHash = ""
		u.ResetExpiresAt = nil
		u.UpdatedAt = now
		return u.clone(), nil
	}
	return nil, models.ErrZeroMatched
}
