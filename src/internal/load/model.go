package load

import (
	"time"
)

type Status string

const (
	StatusOpen             Status = "OPEN"
	StatusAcceptedByOwner  Status = "ACCEPTED_BY_OWNER"
	StatusAssignedToDriver Status = "ASSIGNED_TO_DRIVER"
	StatusInTransit        Status = "IN_TRANSIT"
	StatusCompleted        Status = "COMPLETED"
	StatusCancelled        Status = "CANCELLED"
)

// Audit actions
const (
	ActionCreated      = "CREATED"
	ActionAccepted     = "ACCEPTED"
	ActionAssigned     = "DRIVER_ASSIGNED"
	ActionStatusUpdate = "STATUS_UPDATED"
	ActionCancelled    = "CANCELLED"
	ActionExpired      = "ACCEPTANCE_EXPIRED"
	ActionDeleted      = "DELETED"
)

// SystemActor attributes audit entries written by background jobs.
const SystemActor = "system"

// ActiveDriverStatuses are the statuses that occupy a driver.
var ActiveDriverStatuses = []Status{StatusAssignedToDriver, StatusInTransit}

type AuditEntry struct {
	Action     string         `json:"action" bson:"action"`
	FromStatus Status         `json:"fromStatus,omitempty" bson:"from_status,omitempty"`
	ToStatus   Status         `json:"toStatus,omitempty" bson:"to_status,omitempty"`
	ActorID    string         `json:"actorId" bson:"actor_id"`
	Timestamp  time.Time      `json:"timestamp" bson:"timestamp"`
	Meta       map[string]any `json:"meta,omitempty" bson:"meta,omitempty"`
}

type Load struct {
	ID          string       `json:"id" bson:"_id"`
	CustomerID  string       `json:"customerId" bson:"customer_id"`
	OwnerID     *string      `json:"ownerId,omitempty" bson:"owner_id,omitempty"`
	DriverID    *string      `json:"driverId,omitempty" bson:"driver_id,omitempty"`
	Status      Status       `json:"status" bson:"status"`
	Source      string       `json:"source" bson:"source"`
	Destination string       `json:"destination" bson:"destination"`
	GoodsType   string       `json:"goodsType" bson:"goods_type"`
	VehicleType string       `json:"vehicleType" bson:"vehicle_type"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Weight      float64      `json:"weight" bson:"weight"`
	Price       float64      `json:"price" bson:"price"`
	Distance    float64      `json:"distance,omitempty" bson:"distance,omitempty"`
	PickupLat   *float64     `json:"pickupLat,omitempty" bson:"pickup_lat,omitempty"`
	PickupLng   *float64     `json:"pickupLng,omitempty" bson:"pickup_lng,omitempty"`
	DropLat     *float64     `json:"dropLat,omitempty" bson:"drop_lat,omitempty"`
	DropLng     *float64     `json:"dropLng,omitempty" bson:"drop_lng,omitempty"`
	AcceptedAt  *time.Time   `json:"acceptedAt,omitempty" bson:"accepted_at,omitempty"`
	AssignedAt  *time.Time   `json:"assignedAt,omitempty" bson:"assigned_at,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	CancelledAt *time.Time   `json:"cancelledAt,omitempty" bson:"cancelled_at,omitempty"`
	IsDeleted   bool         `json:"isDeleted" bson:"is_deleted"`
	DeletedAt   *time.Time   `json:"deletedAt,omitempty" bson:"deleted_at,omitempty"`
	Version     int64        `json:"version" bson:"version"`
	AuditTrail  []AuditEntry `json:"auditTrail" bson:"audit_trail"`
	CreatedAt   time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" bson:"updated_at"`
}

// CreateRequest is the customer's shipment offer.
type CreateRequest struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	GoodsType   string   `json:"goodsType"`
	VehicleType string   `json:"vehicleType"`
	Description string   `json:"description"`
	Weight      float64  `json:"weight"`
	Price       float64  `json:"price"`
	Distance    float64  `json:"distance"`
	PickupLat   *float64 `json:"pickupLat"`
	PickupLng   *float64 `json:"pickupLng"`
	DropLat     *float64 `json:"dropLat"`
	DropLng     *float64 `json:"dropLng"`
}

type ListRequest struct {
	Page  int `json:"page" form:"page"`
	Limit int `json:"limit" form:"limit"`
}

type ListResponse struct {
	Loads      []*Load `json:"loads"`
	TotalCount int64   `json:"totalCount"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// Page bounds a store query.
type Page struct {
	Skip  int64
	Limit int64
}

var validTransitions = map[Status][]Status{
	StatusOpen:             {StatusAcceptedByOwner, StatusCancelled},
	StatusAcceptedByOwner:  {StatusAssignedToDriver},
	StatusAssignedToDriver: {StatusInTransit},
	StatusInTransit:        {StatusCompleted},
	StatusCompleted:        {},
	StatusCancelled:        {},
}

// CanTransition reports whether a caller-driven transition is legal.
// The ACCEPTED_BY_OWNER -> OPEN reclamation is reserved for ExpireStale.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsDriverStatus reports whether a driver may request the status.
func IsDriverStatus(s Status) bool {
	return s == StatusInTransit || s == StatusCompleted
}

func IsValidStatus(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

func (l *Load) IsOwnedBy(ownerID string) bool {
	return l.OwnerID != nil && *l.OwnerID == ownerID
}

func (l *Load) IsAssignedTo(driverID string) bool {
	return l.DriverID != nil && *l.DriverID == driverID
}

func (l *Load) clone() *Load {
	c := *l
	c.OwnerID = clonePtr(l.OwnerID)
	c.DriverID = clonePtr(l.DriverID)
	c.PickupLat = clonePtr(l.PickupLat)
	c.PickupLng = clonePtr(l.PickupLng)
	c.DropLat = clonePtr(l.DropLat)
	c.DropLng = clonePtr(l.DropLng)
	c.AcceptedAt = clonePtr(l.AcceptedAt)
	c.AssignedAt = clonePtr(l.AssignedAt)
	c.CompletedAt = clonePtr(l.CompletedAt)
	c.CancelledAt = clonePtr(l.CancelledAt)
	c.DeletedAt = clonePtr(l.DeletedAt)
	c.AuditTrail = make([]AuditEntry, len(l.AuditTrail))
	copy(c.AuditTrail, l.AuditTrail)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
