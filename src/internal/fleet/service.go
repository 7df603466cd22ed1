package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"loadhub-core-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Service interface {
	CreateOwnerProfile(ctx context.Context, userID, companyName string) (*OwnerProfile, error)
	CreateDriverProfile(ctx context.Context, userID, licenseNumber string) (*DriverProfile, error)
	GetDriverProfile(ctx context.Context, userID string) (*DriverProfile, error)
	SetAvailability(ctx context.Context, userID string, available bool) (*DriverProfile, error)
	RegisterVehicle(ctx context.Context, ownerUserID string, req *VehicleRequest) (*Vehicle, error)
	ListVehicles(ctx context.Context, ownerUserID string) ([]*Vehicle, error)
}

type fleetService struct {
	store Store
	now   func() time.Time
}

func NewFleetService(store Store) Service {
	return &fleetService{
		store: store,
		now:   time.Now,
	}
}

func (s *fleetService) CreateOwnerProfile(ctx context.Context, userID, companyName string) (*OwnerProfile, error) {
	if userID == "" {
		return nil, models.ErrInvalidParams
	}
	p := &OwnerProfile{
		ID:          primitive.NewObjectID().Hex(),
		UserID:      userID,
		CompanyName: strings.TrimSpace(companyName),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertOwner(ctx, p); err != nil {
		return nil, err
	}
	logrus.WithField("user_id", userID).Info("Owner profile created")
	return p, nil
}

func (s *fleetService) CreateDriverProfile(ctx context.Context, userID, licenseNumber string) (*DriverProfile, error) {
	if userID == "" {
		return nil, models.ErrInvalidParams
	}
	now := s.now().UTC()
	p := &DriverProfile{
		ID:            primitive.NewObjectID().Hex(),
		UserID:        userID,
		LicenseNumber: strings.TrimSpace(licenseNumber),
		IsAvailable:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertDriver(ctx, p); err != nil {
		return nil, err
	}
	logrus.WithField("user_id", userID).Info("Driver profile created")
	return p, nil
}

func (s *fleetService) GetDriverProfile(ctx context.Context, userID string) (*DriverProfile, error) {
	return s.store.GetDriverByUser(ctx, userID)
}

func (s *fleetService) SetAvailability(ctx context.Context, userID string, available bool) (*DriverProfile, error) {
	if err := s.store.SetAvailability(ctx, userID, available); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"available": available,
	}).Info("Driver availability updated")
	return s.store.GetDriverByUser(ctx, userID)
}

func (s *fleetService) RegisterVehicle(ctx context.Context, ownerUserID string, req *VehicleRequest) (*Vehicle, error) {
	if req == nil || ownerUserID == "" {
		return nil, models.ErrInvalidParams
	}
	number := strings.ToUpper(strings.TrimSpace(req.Number))
	if number == "" {
		return nil, fmt.Errorf("%w: vehicle number is required", models.ErrValidation)
	}
	if req.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", models.ErrValidation)
	}

	if _, err := s.store.GetOwnerByUser(ctx, ownerUserID); err != nil {
		return nil, ownerRequired(err)
	}

	vehicleType := strings.TrimSpace(req.Type)
	if vehicleType == "" {
		vehicleType = "Truck"
	}

	v := &Vehicle{
		ID:        primitive.NewObjectID().Hex(),
		Number:    number,
		Type:      vehicleType,
		Capacity:  req.Capacity,
		Status:    VehicleActive,
		OwnerID:   ownerUserID,
		CreatedAt: s.now().UTC(),
	}
	if driverID := strings.TrimSpace(req.DriverID); driverID != "" {
		if _, err := s.store.GetDriverByUser(ctx, driverID); err != nil {
			return nil, err
		}
		v.DriverID = &driverID
	}

	if err := s.store.InsertVehicle(ctx, v); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"vehicle_id": v.ID,
		"owner_id":   ownerUserID,
		"capacity":   v.Capacity,
	}).Info("Vehicle registered")
	return v, nil
}

func (s *fleetService) ListVehicles(ctx context.Context, ownerUserID string) ([]*Vehicle, error) {
	return s.store.ListVehiclesByOwner(ctx, ownerUserID)
}

// ownerRequired turns a missing owner profile into a permission failure.
func ownerRequired(err error) error {
	if errors.Is(err, models.ErrProfileNotFound) {
		return models.ErrNotOwnerRole
	}
	return err
}
