package load

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Condition is the predicate a stored load must satisfy at write time.
// Zero-valued fields are not constrained. Soft-deleted loads never match
// unless IncludeDeleted is set.
type Condition struct {
	ID             string
	Statuses       []Status
	CustomerID     string
	OwnerID        string
	DriverID       string
	DriverUnset    bool
	Version        *int64
	AcceptedBefore *time.Time
	CreatedAfter   *time.Time
	IncludeDeleted bool
}

// Mutation is applied atomically together with a version bump and one audit entry.
type Mutation struct {
	Status          Status
	OwnerID         *string
	ClearOwner      bool
	DriverID        *string
	AcceptedAt      *time.Time
	ClearAcceptedAt bool
	AssignedAt      *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	Delete          bool
	Audit           AuditEntry
}

func (c Condition) Matches(l *Load) bool {
	if c.ID != "" && l.ID != c.ID {
		return false
	}
	if !c.IncludeDeleted && l.IsDeleted {
		return false
	}
	if len(c.Statuses) > 0 && !containsStatus(c.Statuses, l.Status) {
		return false
	}
	if c.CustomerID != "" && l.CustomerID != c.CustomerID {
		return false
	}
	if c.OwnerID != "" && !l.IsOwnedBy(c.OwnerID) {
		return false
	}
	if c.DriverID != "" && !l.IsAssignedTo(c.DriverID) {
		return false
	}
	if c.DriverUnset && l.DriverID != nil {
		return false
	}
	if c.Version != nil && l.Version != *c.Version {
		return false
	}
	if c.AcceptedBefore != nil && (l.AcceptedAt == nil || !l.AcceptedAt.Before(*c.AcceptedBefore)) {
		return false
	}
	if c.CreatedAfter != nil && l.CreatedAt.Before(*c.CreatedAfter) {
		return false
	}
	return true
}

func (c Condition) filter() bson.M {
	f := bson.M{}
	if c.ID != "" {
		f["_id"] = c.ID
	}
	if !c.IncludeDeleted {
		f["is_deleted"] = bson.M{"$ne": true}
	}
	switch len(c.Statuses) {
	case 0:
	case 1:
		f["status"] = c.Statuses[0]
	default:
		f["status"] = bson.M{"$in": c.Statuses}
	}
	if c.CustomerID != "" {
		f["customer_id"] = c.CustomerID
	}
	if c.OwnerID != "" {
		f["owner_id"] = c.OwnerID
	}
	if c.DriverID != "" {
		f["driver_id"] = c.DriverID
	} else if c.DriverUnset {
		f["driver_id"] = bson.M{"$exists": false}
	}
	if c.Version != nil {
		f["version"] = *c.Version
	}
	if c.AcceptedBefore != nil {
		f["accepted_at"] = bson.M{"$lt": *c.AcceptedBefore}
	}
	if c.CreatedAfter != nil {
		f["created_at"] = bson.M{"$gte": *c.CreatedAfter}
	}
	return f
}

func (m Mutation) apply(l *Load, now time.Time) {
	if m.Status != "" {
		l.Status = m.Status
	}
	if m.OwnerID != nil {
		l.OwnerID = clonePtr(m.OwnerID)
	}
	if m.ClearOwner {
		l.OwnerID = nil
	}
	if m.DriverID != nil {
		l.DriverID = clonePtr(m.DriverID)
	}
	if m.AcceptedAt != nil {
		l.AcceptedAt = clonePtr(m.AcceptedAt)
	}
	if m.ClearAcceptedAt {
		l.AcceptedAt = nil
	}
	if m.AssignedAt != nil {
		l.AssignedAt = clonePtr(m.AssignedAt)
	}
	if m.CompletedAt != nil {
		l.CompletedAt = clonePtr(m.CompletedAt)
	}
	if m.CancelledAt != nil {
		l.CancelledAt = clonePtr(m.CancelledAt)
	}
	if m.Delete {
		l.IsDeleted = true
		l.DeletedAt = &now
	}
	l.Version++
	l.UpdatedAt = now
	l.AuditTrail = append(l.AuditTrail, m.Audit)
}

func (m Mutation) update(now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	unset := bson.M{}

	if m.Status != "" {
		set["status"] = m.Status
	}
	if m.OwnerID != nil {
		set["owner_id"] = *m.OwnerID
	}
	if m.ClearOwner {
		unset["owner_id"] = ""
	}
	if m.DriverID != nil {
		set["driver_id"] = *m.DriverID
	}
	if m.AcceptedAt != nil {
		set["accepted_at"] = *m.AcceptedAt
	}
	if m.ClearAcceptedAt {
		unset["accepted_at"] = ""
	}
	if m.AssignedAt != nil {
		set["assigned_at"] = *m.AssignedAt
	}
	if m.CompletedAt != nil {
		set["completed_at"] = *m.CompletedAt
	}
	if m.CancelledAt != nil {
		set["cancelled_at"] = *m.CancelledAt
	}
	if m.Delete {
		set["is_deleted"] = true
		set["deleted_at"] = now
	}

	update := bson.M{
		"$set":  set,
		"$inc":  bson.M{"version": 1},
		"$push": bson.M{"audit_trail": m.Audit},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func containsStatus(statuses []Status, s Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}
