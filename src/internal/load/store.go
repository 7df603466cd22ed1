package load

import (
	"context"
	"sort"
	"sync"
	"time"

	"loadhub-core-svc/src/internal/models"
)

// Store is the Entity Store contract for loads. Every mutation is a single-document
// (or per-document, for bulk) conditional update; there is no unconditional write path.
type Store interface {
	Insert(ctx context.Context, l *Load) (*Load, error)
	Get(ctx context.Context, id string) (*Load, error)
	ConditionalUpdate(ctx context.Context, id string, cond Condition, mut Mutation) (*Load, error)
	BulkConditionalUpdate(ctx context.Context, cond Condition, mut Mutation) (int64, error)
	Count(ctx context.Context, cond Condition) (int64, error)
	Find(ctx context.Context, cond Condition, page Page) ([]*Load, int64, error)
}

// MemoryStore linearizes every operation behind one mutex, which gives the same
// per-document atomicity the Mongo store gets from findOneAndUpdate.
type MemoryStore struct {
	mu    sync.Mutex
	loads map[string]*Load
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loads: make(map[string]*Load),
		now:   time.Now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, l *Load) (*Load, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.loads[l.ID]; exists {
		return nil, models.ErrDatabaseInsert
	}
	s.loads[l.ID] = l.clone()
	return l.clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Load, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.loads[id]
	if !ok {
		return nil, models.ErrLoadNotFound
	}
	return l.clone(), nil
}

func (s *MemoryStore) ConditionalUpdate(_ context.Context, id string, cond Condition, mut Mutation) (*Load, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cond.ID = id
	l, ok := s.loads[id]
	if !ok || !cond.Matches(l) {
		return nil, models.ErrZeroMatched
	}
	mut.apply(l, s.now())
	return l.clone(), nil
}

func (s *MemoryStore) BulkConditionalUpdate(_ context.Context, cond Condition, mut Mutation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var matched int64
	for _, l := range s.loads {
		if cond.Matches(l) {
			mut.apply(l, now)
			matched++
		}
	}
	return matched, nil
}

func (s *MemoryStore) Count(_ context.Context, cond Condition) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, l := range s.loads {
		if cond.Matches(l) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Find(_ context.Context, cond Condition, page Page) ([]*Load, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*Load
	for _, l := range s.loads {
		if cond.Matches(l) {
			matched = append(matched, l)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := page.Skip
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if page.Limit > 0 && start+page.Limit < total {
		end = start + page.Limit
	}

	result := make([]*Load, 0, end-start)
	for _, l := range matched[start:end] {
		result = append(result, l.clone())
	}
	return result, total, nil
}
