package load

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestConditionFilter(t *testing.T) {
	version := int64(3)
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cond Condition
		want bson.M
	}{
		{
			name: "empty excludes deleted",
			cond: Condition{},
			want: bson.M{"is_deleted": bson.M{"$ne": true}},
		},
		{
			name: "accept",
			cond: Condition{ID: "l1", Statuses: []Status{StatusOpen}},
			want: bson.M{"_id": "l1", "is_deleted": bson.M{"$ne": true}, "status": StatusOpen},
		},
		{
			name: "assign",
			cond: Condition{ID: "l1", Statuses: []Status{StatusAcceptedByOwner}, OwnerID: "o1", DriverUnset: true},
			want: bson.M{
				"_id":        "l1",
				"is_deleted": bson.M{"$ne": true},
				"status":     StatusAcceptedByOwner,
				"owner_id":   "o1",
				"driver_id":  bson.M{"$exists": false},
			},
		},
		{
			name: "status update with version",
			cond: Condition{Statuses: []Status{StatusInTransit}, DriverID: "d1", Version: &version},
			want: bson.M{
				"is_deleted": bson.M{"$ne": true},
				"status":     StatusInTransit,
				"driver_id":  "d1",
				"version":    int64(3),
			},
		},
		{
			name: "expiration",
			cond: Condition{Statuses: []Status{StatusAcceptedByOwner}, DriverUnset: true, AcceptedBefore: &cutoff},
			want: bson.M{
				"is_deleted":  bson.M{"$ne": true},
				"status":      StatusAcceptedByOwner,
				"driver_id":   bson.M{"$exists": false},
				"accepted_at": bson.M{"$lt": cutoff},
			},
		},
		{
			name: "many statuses including deleted",
			cond: Condition{Statuses: []Status{StatusOpen, StatusCancelled}, IncludeDeleted: true},
			want: bson.M{"status": bson.M{"$in": []Status{StatusOpen, StatusCancelled}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.filter())
		})
	}
}

func TestConditionMatches(t *testing.T) {
	owner := "o1"
	accepted := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l := &Load{
		ID:         "l1",
		CustomerID: "c1",
		OwnerID:    &owner,
		Status:     StatusAcceptedByOwner,
		AcceptedAt: &accepted,
		Version:    1,
	}

	later := accepted.Add(time.Minute)
	earlier := accepted.Add(-time.Minute)
	wrongVersion := int64(0)

	assert.True(t, Condition{ID: "l1", Statuses: []Status{StatusAcceptedByOwner}, OwnerID: "o1", DriverUnset: true}.Matches(l))
	assert.True(t, Condition{AcceptedBefore: &later}.Matches(l))
	assert.False(t, Condition{AcceptedBefore: &earlier}.Matches(l))
	assert.False(t, Condition{OwnerID: "o2"}.Matches(l))
	assert.False(t, Condition{DriverID: "d1"}.Matches(l))
	assert.False(t, Condition{Version: &wrongVersion}.Matches(l))
	assert.False(t, Condition{CustomerID: "c2"}.Matches(l))

	l.IsDeleted = true
	assert.False(t, Condition{ID: "l1"}.Matches(l))
	assert.True(t, Condition{ID: "l1", IncludeDeleted: true}.Matches(l))
}

func TestMutationUpdate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := AuditEntry{Action: ActionExpired, ActorID: SystemActor, Timestamp: now}

	update := Mutation{
		Status:          StatusOpen,
		ClearOwner:      true,
		ClearAcceptedAt: true,
		Audit:           entry,
	}.update(now)

	assert.Equal(t, bson.M{"status": StatusOpen, "updated_at": now}, update["$set"])
	assert.Equal(t, bson.M{"owner_id": "", "accepted_at": ""}, update["$unset"])
	assert.Equal(t, bson.M{"version": 1}, update["$inc"])
	assert.Equal(t, bson.M{"audit_trail": entry}, update["$push"])
}

func TestMutationApply(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	owner := "o1"
	l := &Load{Status: StatusOpen, AuditTrail: []AuditEntry{{Action: ActionCreated}}}

	Mutation{Status: StatusAcceptedByOwner, OwnerID: &owner, AcceptedAt: &now, Audit: AuditEntry{Action: ActionAccepted}}.apply(l, now)
	assert.Equal(t, StatusAcceptedByOwner, l.Status)
	assert.Equal(t, int64(1), l.Version)
	assert.Len(t, l.AuditTrail, 2)

	// the stored pointer must not alias the caller's variable
	owner = "mutated"
	assert.Equal(t, "o1", *l.OwnerID)

	Mutation{Delete: true, Audit: AuditEntry{Action: ActionDeleted}}.apply(l, now)
	assert.True(t, l.IsDeleted)
	assert.Equal(t, &now, l.DeletedAt)
	assert.Equal(t, int64(2), l.Version)
}
