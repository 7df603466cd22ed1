package fleet

import (
	"context"
	"sync"
	"time"

	"loadhub-core-svc/src/internal/models"
)

// Store holds owner and driver profiles and vehicles. ClaimDriver and
// ReleaseDriver are conditional writes on the driver profile.
type Store interface {
	InsertOwner(ctx context.Context, p *OwnerProfile) error
	InsertDriver(ctx context.Context, p *DriverProfile) error
	InsertVehicle(ctx context.Context, v *Vehicle) error
	GetOwnerByUser(ctx context.Context, userID string) (*OwnerProfile, error)
	GetDriverByUser(ctx context.Context, userID string) (*DriverProfile, error)
	GetVehicleForDriver(ctx context.Context, driverUserID string) (*Vehicle, error)
	ListVehiclesByOwner(ctx context.Context, ownerUserID string) ([]*Vehicle, error)
	SetAvailability(ctx context.Context, userID string, available bool) error
	// ClaimDriver binds an available, unclaimed driver to loadID.
	// Returns models.ErrDriverBusy when the driver is claimed or unavailable.
	ClaimDriver(ctx context.Context, userID, loadID string) error
	// ReleaseDriver clears the claim only if it still points at loadID.
	// completed also increments the trip counter in the same write.
	ReleaseDriver(ctx context.Context, userID, loadID string, completed bool) error
}

type MemoryStore struct {
	mu       sync.Mutex
	owners   map[string]*OwnerProfile
	drivers  map[string]*DriverProfile
	vehicles map[string]*Vehicle
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		owners:   make(map[string]*OwnerProfile),
		drivers:  make(map[string]*DriverProfile),
		vehicles: make(map[string]*Vehicle),
		now:      time.Now,
	}
}

func (s *MemoryStore) InsertOwner(_ context.Context, p *OwnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.owners[p.UserID]; exists {
		return models.ErrDatabaseInsert
	}
	c := *p
	s.owners[p.UserID] = &c
	return nil
}

func (s *MemoryStore) InsertDriver(_ context.Context, p *DriverProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.drivers[p.UserID]; exists {
		return models.ErrDatabaseInsert
	}
	s.drivers[p.UserID] = p.clone()
	return nil
}

func (s *MemoryStore) InsertVehicle(_ context.Context, v *Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vehicles[v.ID]; exists {
		return models.ErrDatabaseInsert
	}
	s.vehicles[v.ID] = v.clone()
	return nil
}

func (s *MemoryStore) GetOwnerByUser(_ context.Context, userID string) (*OwnerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.owners[userID]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) GetDriverByUser(_ context.Context, userID string) (*DriverProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.drivers[userID]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	return p.clone(), nil
}

func (s *MemoryStore) GetVehicleForDriver(_ context.Context, driverUserID string) (*Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vehicles {
		if v.DriverID != nil && *v.DriverID == driverUserID {
			return v.clone(), nil
		}
	}
	return nil, models.ErrVehicleNotFound
}

func (s *MemoryStore) ListVehiclesByOwner(_ context.Context, ownerUserID string) ([]*Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vehicles := []*Vehicle{}
	for _, v := range s.vehicles {
		if v.OwnerID == ownerUserID {
			vehicles = append(vehicles, v.clone())
		}
	}
	return vehicles, nil
}

func (s *MemoryStore) SetAvailability(_ context.Context, userID string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.drivers[userID]
	if !ok {
		return models.ErrProfileNotFound
	}
	p.IsAvailable = available
	p.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) ClaimDriver(_ context.Context, userID, loadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.drivers[userID]
	if !ok {
		return models.ErrProfileNotFound
	}
	if !p.IsAvailable || p.IsClaimed() {
		return models.ErrDriverBusy
	}
	id := loadID
	p.ActiveLoadID = &id
	p.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) ReleaseDriver(_ context.Context, userID, loadID string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.drivers[userID]
	if !ok || p.ActiveLoadID == nil || *p.ActiveLoadID != loadID {
		return nil
	}
	p.ActiveLoadID = nil
	if completed {
		p.TotalTrips++
	}
	p.UpdatedAt = s.now()
	return nil
}
