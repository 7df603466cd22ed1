package assignment

import (
	"context"
	"errors"

	"loadhub-core-svc/src/internal/fleet"
	"loadhub-core-svc/src/internal/load"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/scoring"

	"github.com/sirupsen/logrus"
)

// Coordinator validates owner and driver eligibility before delegating to the
// load state machine. Eligibility reads are advisory; exclusivity comes from the
// conditional writes on the load and on the driver profile.
type Coordinator interface {
	Accept(ctx context.Context, loadID, ownerID string) (*load.Load, error)
	AssignDriver(ctx context.Context, loadID, ownerID, driverID string) (*load.Load, error)
	UpdateStatus(ctx context.Context, loadID, driverID string, status load.Status, expectedVersion *int64) (*load.Load, error)
}

type coordinator struct {
	loads  load.Service
	fleet  fleet.Store
	scorer scoring.Scorer
}

func NewCoordinator(loads load.Service, fleetStore fleet.Store, scorer scoring.Scorer) Coordinator {
	return &coordinator{
		loads:  loads,
		fleet:  fleetStore,
		scorer: scoring.WithFallback(scorer),
	}
}

func (c *coordinator) Accept(ctx context.Context, loadID, ownerID string) (*load.Load, error) {
	if loadID == "" || ownerID == "" {
		return nil, models.ErrInvalidParams
	}

	if _, err := c.fleet.GetOwnerByUser(ctx, ownerID); err != nil {
		if errors.Is(err, models.ErrProfileNotFound) {
			return nil, models.ErrNotOwnerRole
		}
		return nil, err
	}

	current, err := c.loads.Get(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if current.Status != load.StatusOpen {
		return nil, models.ErrLoadConflict
	}

	assessment, _ := c.scorer.Score(ctx, scoring.Signal{
		LoadID:       current.ID,
		OwnerID:      ownerID,
		CustomerID:   current.CustomerID,
		Amount:       current.Price,
		Weight:       current.Weight,
		TripDistance: current.Distance,
	})

	logrus.WithFields(logrus.Fields{
		"load_id":    loadID,
		"owner_id":   ownerID,
		"risk_level": assessment.RiskLevel,
		"risk_score": assessment.RiskScore,
	}).Debug("Load acceptance scored")

	return c.loads.Accept(ctx, loadID, ownerID, assessment.Meta())
}

func (c *coordinator) AssignDriver(ctx context.Context, loadID, ownerID, driverID string) (*load.Load, error) {
	if loadID == "" || ownerID == "" || driverID == "" {
		return nil, models.ErrInvalidParams
	}

	current, err := c.loads.Get(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if !current.IsOwnedBy(ownerID) {
		return nil, models.ErrNotLoadOwner
	}
	if current.Status != load.StatusAcceptedByOwner {
		return nil, models.ErrLoadConflict
	}

	if err := c.checkDriver(ctx, current, driverID); err != nil {
		return nil, err
	}

	if err := c.fleet.ClaimDriver(ctx, driverID, loadID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"load_id":   loadID,
			"driver_id": driverID,
		}).Info("Driver claim rejected")
		return nil, err
	}

	assigned, err := c.loads.AssignDriver(ctx, loadID, ownerID, driverID)
	if err != nil {
		c.release(ctx, driverID, loadID, false)
		return nil, err
	}
	return assigned, nil
}

func (c *coordinator) checkDriver(ctx context.Context, l *load.Load, driverID string) error {
	driver, err := c.fleet.GetDriverByUser(ctx, driverID)
	if err != nil {
		return err
	}
	if !driver.IsAvailable {
		return models.ErrDriverUnavailable
	}

	active, err := c.loads.CountActiveForDriver(ctx, driverID)
	if err != nil {
		return err
	}
	if active > 0 || driver.IsClaimed() {
		return models.ErrDriverBusy
	}

	vehicle, err := c.fleet.GetVehicleForDriver(ctx, driverID)
	switch {
	case errors.Is(err, models.ErrVehicleNotFound):
		return nil
	case err != nil:
		return err
	case !vehicle.CanCarry(l.Weight):
		logrus.WithFields(logrus.Fields{
			"load_id":    l.ID,
			"driver_id":  driverID,
			"weight":     l.Weight,
			"capacity":   vehicle.Capacity,
			"vehicle_id": vehicle.ID,
		}).Info("Vehicle capacity below load weight")
		return models.ErrInsufficientVolume
	}
	return nil
}

func (c *coordinator) UpdateStatus(ctx context.Context, loadID, driverID string, status load.Status, expectedVersion *int64) (*load.Load, error) {
	updated, err := c.loads.UpdateStatus(ctx, loadID, driverID, status, expectedVersion)
	if err != nil {
		return nil, err
	}
	if updated.Status == load.StatusCompleted {
		c.release(ctx, driverID, loadID, true)
	}
	return updated, nil
}

// release clears the driver claim. A failure leaves the driver marked busy,
// which is logged for manual repair rather than surfaced to the caller.
func (c *coordinator) release(ctx context.Context, driverID, loadID string, completed bool) {
	if err := c.fleet.ReleaseDriver(ctx, driverID, loadID, completed); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"load_id":   loadID,
			"driver_id": driverID,
			"completed": completed,
		}).Error("Failed to release driver claim")
	}
}
