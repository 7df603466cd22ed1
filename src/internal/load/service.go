package load

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/events"
	"loadhub-core-svc/src/internal/metrics"
	"loadhub-core-svc/src/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultAcceptanceTimeout = 30 * time.Minute

// Service is the load state machine. Each transition is one conditional write;
// a write that matches nothing is reported as ErrConflict (or ErrNotFound) and is
// never retried here.
type Service interface {
	Create(ctx context.Context, customerID string, req *CreateRequest) (*Load, error)
	Get(ctx context.Context, loadID string) (*Load, error)
	ListOpen(ctx context.Context, req *ListRequest) (*ListResponse, error)
	ListForCustomer(ctx context.Context, customerID string, req *ListRequest) (*ListResponse, error)
	ListForOwner(ctx context.Context, ownerID string, req *ListRequest) (*ListResponse, error)
	ListForDriver(ctx context.Context, driverID string, req *ListRequest) (*ListResponse, error)
	Accept(ctx context.Context, loadID, ownerID string, meta map[string]any) (*Load, error)
	AssignDriver(ctx context.Context, loadID, ownerID, driverID string) (*Load, error)
	UpdateStatus(ctx context.Context, loadID, driverID string, newStatus Status, expectedVersion *int64) (*Load, error)
	Cancel(ctx context.Context, loadID, customerID string) (*Load, error)
	SoftDelete(ctx context.Context, loadID, customerID string) (*Load, error)
	ExpireStale(ctx context.Context) (int64, error)
	CountActiveForDriver(ctx context.Context, driverID string) (int64, error)
	Stats(ctx context.Context) (*models.LoadStats, error)
}

type Option func(*loadService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *loadService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *loadService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *loadService) {
		if m != nil {
			s.metrics = m
		}
	}
}

type loadService struct {
	store             Store
	cfg               *config.Configuration
	acceptanceTimeout time.Duration
	now               func() time.Time
	publisher         events.Publisher
	metrics           metrics.Recorder
}

func NewLoadService(store Store, cfg *config.Configuration, opts ...Option) Service {
	timeout := defaultAcceptanceTimeout
	if cfg.Lifecycle.AcceptanceTimeoutMinutes > 0 {
		timeout = time.Duration(cfg.Lifecycle.AcceptanceTimeoutMinutes) * time.Minute
	}

	s := &loadService{
		store:             store,
		cfg:               cfg,
		acceptanceTimeout: timeout,
		now:               time.Now,
		publisher:         events.Nop(),
		metrics:           metrics.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *loadService) Create(ctx context.Context, customerID string, req *CreateRequest) (*Load, error) {
	if err := validateCreate(customerID, req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	vehicleType := strings.TrimSpace(req.VehicleType)
	if vehicleType == "" {
		vehicleType = "Truck"
	}

	l := &Load{
		ID:          primitive.NewObjectID().Hex(),
		CustomerID:  customerID,
		Status:      StatusOpen,
		Source:      strings.TrimSpace(req.Source),
		Destination: strings.TrimSpace(req.Destination),
		GoodsType:   strings.TrimSpace(req.GoodsType),
		VehicleType: vehicleType,
		Description: strings.TrimSpace(req.Description),
		Weight:      req.Weight,
		Price:       req.Price,
		Distance:    req.Distance,
		PickupLat:   req.PickupLat,
		PickupLng:   req.PickupLng,
		DropLat:     req.DropLat,
		DropLng:     req.DropLng,
		Version:     0,
		AuditTrail: []AuditEntry{{
			Action:    ActionCreated,
			ToStatus:  StatusOpen,
			ActorID:   customerID,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.store.Insert(ctx, l)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"load_id":     created.ID,
		"customer_id": customerID,
	}).Info("Load created")

	s.emit(ctx, models.EventLoadCreated, created, customerID, "", nil)
	return created, nil
}

func validateCreate(customerID string, req *CreateRequest) error {
	if req == nil || customerID == "" {
		return models.ErrInvalidParams
	}
	var problems []string
	if strings.TrimSpace(req.Source) == "" {
		problems = append(problems, "source is required")
	}
	if strings.TrimSpace(req.Destination) == "" {
		problems = append(problems, "destination is required")
	}
	if strings.TrimSpace(req.GoodsType) == "" {
		problems = append(problems, "goodsType is required")
	}
	if req.Weight <= 0 {
		problems = append(problems, "weight must be positive")
	}
	if req.Price <= 0 {
		problems = append(problems, "price must be positive")
	}
	if req.Distance < 0 {
		problems = append(problems, "distance must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(problems, ", "))
	}
	return nil
}

func (s *loadService) Get(ctx context.Context, loadID string) (*Load, error) {
	if loadID == "" {
		return nil, models.ErrInvalidParams
	}
	l, err := s.store.Get(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted {
		return nil, models.ErrLoadNotFound
	}
	return l, nil
}

func (s *loadService) ListOpen(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	return s.list(ctx, Condition{Statuses: []Status{StatusOpen}}, req)
}

func (s *loadService) ListForCustomer(ctx context.Context, customerID string, req *ListRequest) (*ListResponse, error) {
	return s.list(ctx, Condition{CustomerID: customerID}, req)
}

func (s *loadService) ListForOwner(ctx context.Context, ownerID string, req *ListRequest) (*ListResponse, error) {
	return s.list(ctx, Condition{OwnerID: ownerID}, req)
}

func (s *loadService) ListForDriver(ctx context.Context, driverID string, req *ListRequest) (*ListResponse, error) {
	return s.list(ctx, Condition{DriverID: driverID}, req)
}

func (s *loadService) list(ctx context.Context, cond Condition, req *ListRequest) (*ListResponse, error) {
	if req == nil {
		req = &ListRequest{}
	}
	// Validate and set defaults
	if req.Limit <= 0 {
		req.Limit = s.cfg.Search.MinQueryLimit
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if s.cfg.Search.MaxQueryLimit > 0 && req.Limit > s.cfg.Search.MaxQueryLimit {
		req.Limit = s.cfg.Search.MaxQueryLimit
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	skip, err := models.PageSkip(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}

	loads, totalCount, err := s.store.Find(ctx, cond, Page{
		Skip:  skip,
		Limit: int64(req.Limit),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to list loads")
		return nil, err
	}
	if loads == nil {
		loads = []*Load{}
	}

	return &ListResponse{
		Loads:      loads,
		TotalCount: totalCount,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: int(math.Ceil(float64(totalCount) / float64(req.Limit))),
	}, nil
}

func (s *loadService) Accept(ctx context.Context, loadID, ownerID string, meta map[string]any) (*Load, error) {
	if loadID == "" || ownerID == "" {
		return nil, models.ErrInvalidParams
	}

	now := s.now().UTC()
	updated, err := s.store.ConditionalUpdate(ctx, loadID,
		Condition{Statuses: []Status{StatusOpen}},
		Mutation{
			Status:     StatusAcceptedByOwner,
			OwnerID:    &ownerID,
			AcceptedAt: &now,
			Audit: AuditEntry{
				Action:     ActionAccepted,
				FromStatus: StatusOpen,
				ToStatus:   StatusAcceptedByOwner,
				ActorID:    ownerID,
				Timestamp:  now,
				Meta:       meta,
			},
		})
	if err != nil {
		return nil, s.resolveMiss(ctx, "accept", loadID, err, nil)
	}

	s.succeeded(ctx, ActionAccepted, models.EventLoadAccepted, updated, ownerID, StatusOpen)
	return updated, nil
}

func (s *loadService) AssignDriver(ctx context.Context, loadID, ownerID, driverID string) (*Load, error) {
	if loadID == "" || ownerID == "" || driverID == "" {
		return nil, models.ErrInvalidParams
	}

	now := s.now().UTC()
	updated, err := s.store.ConditionalUpdate(ctx, loadID,
		Condition{
			Statuses:    []Status{StatusAcceptedByOwner},
			OwnerID:     ownerID,
			DriverUnset: true,
		},
		Mutation{
			Status:     StatusAssignedToDriver,
			DriverID:   &driverID,
			AssignedAt: &now,
			Audit: AuditEntry{
				Action:     ActionAssigned,
				FromStatus: StatusAcceptedByOwner,
				ToStatus:   StatusAssignedToDriver,
				ActorID:    ownerID,
				Timestamp:  now,
				Meta:       map[string]any{"driverId": driverID},
			},
		})
	if err != nil {
		return nil, s.resolveMiss(ctx, "assign_driver", loadID, err, func(l *Load) error {
			if l.OwnerID != nil && !l.IsOwnedBy(ownerID) {
				return models.ErrNotLoadOwner
			}
			return nil
		})
	}

	s.succeeded(ctx, ActionAssigned, models.EventLoadAssigned, updated, ownerID, StatusAcceptedByOwner)
	return updated, nil
}

func (s *loadService) UpdateStatus(ctx context.Context, loadID, driverID string, newStatus Status, expectedVersion *int64) (*Load, error) {
	if loadID == "" || driverID == "" {
		return nil, models.ErrInvalidParams
	}
	if !IsDriverStatus(newStatus) {
		return nil, models.ErrIllegalTransition
	}

	current, err := s.Get(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if !current.IsAssignedTo(driverID) {
		return nil, models.ErrNotAssignedDriver
	}
	if !CanTransition(current.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrIllegalTransition, current.Status, newStatus)
	}

	version := current.Version
	if expectedVersion != nil {
		if *expectedVersion != current.Version {
			s.metrics.RecordConflict("update_status")
			return nil, models.ErrLoadConflict
		}
		version = *expectedVersion
	}

	now := s.now().UTC()
	mut := Mutation{
		Status: newStatus,
		Audit: AuditEntry{
			Action:     ActionStatusUpdate,
			FromStatus: current.Status,
			ToStatus:   newStatus,
			ActorID:    driverID,
			Timestamp:  now,
		},
	}
	if newStatus == StatusCompleted {
		mut.CompletedAt = &now
	}

	updated, err := s.store.ConditionalUpdate(ctx, loadID,
		Condition{
			Statuses: []Status{current.Status},
			DriverID: driverID,
			Version:  &version,
		}, mut)
	if err != nil {
		return nil, s.resolveMiss(ctx, "update_status", loadID, err, nil)
	}

	s.succeeded(ctx, ActionStatusUpdate, models.EventLoadStatusChanged, updated, driverID, current.Status)
	return updated, nil
}

func (s *loadService) Cancel(ctx context.Context, loadID, customerID string) (*Load, error) {
	if loadID == "" || customerID == "" {
		return nil, models.ErrInvalidParams
	}

	now := s.now().UTC()
	updated, err := s.store.ConditionalUpdate(ctx, loadID,
		Condition{
			Statuses:   []Status{StatusOpen},
			CustomerID: customerID,
		},
		Mutation{
			Status:      StatusCancelled,
			CancelledAt: &now,
			Audit: AuditEntry{
				Action:     ActionCancelled,
				FromStatus: StatusOpen,
				ToStatus:   StatusCancelled,
				ActorID:    customerID,
				Timestamp:  now,
			},
		})
	if err != nil {
		return nil, s.resolveMiss(ctx, "cancel", loadID, err, customerCheck(customerID))
	}

	s.succeeded(ctx, ActionCancelled, models.EventLoadCancelled, updated, customerID, StatusOpen)
	return updated, nil
}

func (s *loadService) SoftDelete(ctx context.Context, loadID, customerID string) (*Load, error) {
	if loadID == "" || customerID == "" {
		return nil, models.ErrInvalidParams
	}

	now := s.now().UTC()
	updated, err := s.store.ConditionalUpdate(ctx, loadID,
		Condition{
			Statuses:   []Status{StatusOpen, StatusCancelled},
			CustomerID: customerID,
		},
		Mutation{
			Delete: true,
			Audit: AuditEntry{
				Action:    ActionDeleted,
				ActorID:   customerID,
				Timestamp: now,
			},
		})
	if err != nil {
		return nil, s.resolveMiss(ctx, "soft_delete", loadID, err, customerCheck(customerID))
	}

	s.metrics.RecordTransition(ActionDeleted)
	logrus.WithFields(logrus.Fields{
		"load_id":     loadID,
		"customer_id": customerID,
		"version":     updated.Version,
	}).Info("Load soft-deleted")
	return updated, nil
}

// ExpireStale reverts every load that has sat in ACCEPTED_BY_OWNER past the
// acceptance timeout. The status predicate is re-evaluated per document at write
// time, so a load that was assigned after any earlier read is left untouched.
func (s *loadService) ExpireStale(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.acceptanceTimeout)

	count, err := s.store.BulkConditionalUpdate(ctx,
		Condition{
			Statuses:       []Status{StatusAcceptedByOwner},
			DriverUnset:    true,
			AcceptedBefore: &cutoff,
		},
		Mutation{
			Status:          StatusOpen,
			ClearOwner:      true,
			ClearAcceptedAt: true,
			Audit: AuditEntry{
				Action:     ActionExpired,
				FromStatus: StatusAcceptedByOwner,
				ToStatus:   StatusOpen,
				ActorID:    SystemActor,
				Timestamp:  now,
				Meta:       map[string]any{"timeoutMinutes": int64(s.acceptanceTimeout / time.Minute)},
			},
		})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.metrics.RecordExpired(count)
		msg := events.NewMessage(models.EventLoadExpired)
		msg.ActorID = SystemActor
		msg.FromStatus = string(StatusAcceptedByOwner)
		msg.ToStatus = string(StatusOpen)
		msg.Metadata = map[string]string{"count": fmt.Sprintf("%d", count)}
		events.Emit(ctx, s.publisher, msg)
	}
	return count, nil
}

func (s *loadService) CountActiveForDriver(ctx context.Context, driverID string) (int64, error) {
	return s.store.Count(ctx, Condition{
		DriverID: driverID,
		Statuses: ActiveDriverStatuses,
	})
}

func (s *loadService) Stats(ctx context.Context) (*models.LoadStats, error) {
	now := s.now().UTC()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats := &models.LoadStats{GeneratedAt: now}
	counters := []struct {
		target *int64
		cond   Condition
	}{
		{&stats.Total, Condition{}},
		{&stats.Open, Condition{Statuses: []Status{StatusOpen}}},
		{&stats.AcceptedByOwner, Condition{Statuses: []Status{StatusAcceptedByOwner}}},
		{&stats.AssignedToDriver, Condition{Statuses: []Status{StatusAssignedToDriver}}},
		{&stats.InTransit, Condition{Statuses: []Status{StatusInTransit}}},
		{&stats.Completed, Condition{Statuses: []Status{StatusCompleted}}},
		{&stats.Cancelled, Condition{Statuses: []Status{StatusCancelled}}},
		{&stats.NewThisMonth, Condition{CreatedAfter: &startOfMonth}},
	}
	for _, c := range counters {
		count, err := s.store.Count(ctx, c.cond)
		if err != nil {
			return nil, err
		}
		*c.target = count
	}
	return stats, nil
}

// resolveMiss classifies a conditional write that matched nothing. The read is
// informational only; the write already decided the outcome.
func (s *loadService) resolveMiss(ctx context.Context, operation, loadID string, err error, check func(*Load) error) error {
	if !errors.Is(err, models.ErrZeroMatched) {
		return err
	}

	current, getErr := s.store.Get(ctx, loadID)
	if getErr != nil {
		if errors.Is(getErr, models.ErrNotFound) {
			return models.ErrLoadNotFound
		}
		return getErr
	}
	if current.IsDeleted {
		return models.ErrLoadNotFound
	}
	if check != nil {
		if checkErr := check(current); checkErr != nil {
			return checkErr
		}
	}

	s.metrics.RecordConflict(operation)
	logrus.WithFields(logrus.Fields{
		"load_id":   loadID,
		"operation": operation,
		"status":    current.Status,
		"version":   current.Version,
	}).Info("Conditional load update lost the race")
	return models.ErrLoadConflict
}

func customerCheck(customerID string) func(*Load) error {
	return func(l *Load) error {
		if l.CustomerID != customerID {
			return models.ErrForbidden
		}
		return nil
	}
}

func (s *loadService) succeeded(ctx context.Context, action, event string, l *Load, actorID string, from Status) {
	s.metrics.RecordTransition(action)

	logrus.WithFields(logrus.Fields{
		"load_id":     l.ID,
		"actor_id":    actorID,
		"from_status": from,
		"to_status":   l.Status,
		"version":     l.Version,
	}).Info("Load transition committed")

	s.emit(ctx, event, l, actorID, from, nil)
}

func (s *loadService) emit(ctx context.Context, event string, l *Load, actorID string, from Status, meta map[string]string) {
	msg := events.NewMessage(event)
	msg.LoadID = l.ID
	msg.UserID = l.CustomerID
	msg.ActorID = actorID
	msg.FromStatus = string(from)
	msg.ToStatus = string(l.Status)
	msg.Version = l.Version
	msg.Metadata = meta
	events.Emit(ctx, s.publisher, msg)
}
