package load

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/events"
	"loadhub-core-svc/src/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Configuration {
	cfg := &config.Configuration{}
	cfg.Lifecycle.AcceptanceTimeoutMinutes = 30
	cfg.Search.MinQueryLimit = 20
	cfg.Search.MaxQueryLimit = 100
	return cfg
}

func newTestService(t *testing.T) (Service, *MemoryStore, *fakeClock, *events.Recorder) {
	t.Helper()
	store := NewMemoryStore()
	clock := newFakeClock()
	store.now = clock.Now
	rec := &events.Recorder{}
	svc := NewLoadService(store, testConfig(), WithClock(clock.Now), WithPublisher(rec))
	return svc, store, clock, rec
}

func sampleRequest() *CreateRequest {
	return &CreateRequest{
		Source:      "Pune",
		Destination: "Mumbai",
		GoodsType:   "Steel",
		Weight:      12,
		Price:       45000,
		Distance:    150,
	}
}

func createOpen(t *testing.T, svc Service) *Load {
	t.Helper()
	l, err := svc.Create(context.Background(), "customer-1", sampleRequest())
	require.NoError(t, err)
	return l
}

func assertInvariants(t *testing.T, l *Load) {
	t.Helper()
	switch l.Status {
	case StatusOpen, StatusCancelled:
		assert.Nil(t, l.OwnerID, "ownerId must be unset in %s", l.Status)
		assert.Nil(t, l.DriverID, "driverId must be unset in %s", l.Status)
	case StatusAcceptedByOwner:
		assert.NotNil(t, l.OwnerID)
		assert.Nil(t, l.DriverID)
	case StatusAssignedToDriver, StatusInTransit, StatusCompleted:
		assert.NotNil(t, l.OwnerID)
		assert.NotNil(t, l.DriverID)
	}
	assert.Equal(t, int(l.Version)+1, len(l.AuditTrail), "audit trail length must be version+1")
}

func TestCreate(t *testing.T) {
	svc, _, _, rec := newTestService(t)

	l := createOpen(t, svc)

	assert.Equal(t, StatusOpen, l.Status)
	assert.Equal(t, int64(0), l.Version)
	assert.Equal(t, "Truck", l.VehicleType)
	require.Len(t, l.AuditTrail, 1)
	assert.Equal(t, ActionCreated, l.AuditTrail[0].Action)
	assert.Equal(t, []string{models.EventLoadCreated}, rec.Events())
	assertInvariants(t, l)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	cases := map[string]func(r *CreateRequest){
		"missing source":    func(r *CreateRequest) { r.Source = " " },
		"zero weight":       func(r *CreateRequest) { r.Weight = 0 },
		"negative price":    func(r *CreateRequest) { r.Price = -1 },
		"missing goods":     func(r *CreateRequest) { r.GoodsType = "" },
		"negative distance": func(r *CreateRequest) { r.Distance = -5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := sampleRequest()
			mutate(req)
			_, err := svc.Create(context.Background(), "customer-1", req)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestAcceptExclusivityUnderConcurrency(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	l := createOpen(t, svc)

	const owners = 32
	var (
		wg        sync.WaitGroup
		successes int32
		conflicts int32
		start     = make(chan struct{})
	)
	for i := 0; i < owners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.Accept(context.Background(), l.ID, ownerName(i), nil)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, models.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(owners-1), conflicts)

	stored, err := svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAcceptedByOwner, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assertInvariants(t, stored)
}

func ownerName(i int) string {
	return "owner-" + string(rune('A'+i%26)) + string(rune('a'+i/26))
}

func TestAcceptUnknownAndDeleted(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Accept(context.Background(), "missing", "owner-A", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)

	l := createOpen(t, svc)
	_, err = svc.SoftDelete(context.Background(), l.ID, "customer-1")
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), l.ID, "owner-A", nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcreteAcceptAssignScenario(t *testing.T) {
	svc, _, _, rec := newTestService(t)
	l := createOpen(t, svc)

	accepted, err := svc.Accept(context.Background(), l.ID, "owner-A", map[string]any{"riskScore": 10})
	require.NoError(t, err)
	assert.Equal(t, StatusAcceptedByOwner, accepted.Status)
	assert.Equal(t, "owner-A", *accepted.OwnerID)
	assert.NotNil(t, accepted.AcceptedAt)

	_, err = svc.Accept(context.Background(), l.ID, "owner-B", nil)
	assert.ErrorIs(t, err, models.ErrConflict)

	assigned, err := svc.AssignDriver(context.Background(), l.ID, "owner-A", "driver-X")
	require.NoError(t, err)
	assert.Equal(t, StatusAssignedToDriver, assigned.Status)
	assert.Equal(t, "driver-X", *assigned.DriverID)

	_, err = svc.AssignDriver(context.Background(), l.ID, "owner-A", "driver-Y")
	assert.ErrorIs(t, err, models.ErrConflict)

	stored, err := svc.Get(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver-X", *stored.DriverID)
	assertInvariants(t, stored)

	assert.Equal(t, []string{
		models.EventLoadCreated,
		models.EventLoadAccepted,
		models.EventLoadAssigned,
	}, rec.Events())
}

func TestAssignDriverByAnotherOwnerIsForbidden(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	l := createOpen(t, svc)
	_, err := svc.Accept(context.Background(), l.ID, "owner-A", nil)
	require.NoError(t, err)

	_, err = svc.AssignDriver(context.Background(), l.ID, "owner-B", "driver-X")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestAssignDriverRequiresAcceptedState(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	l := createOpen(t, svc)

	_, err := svc.AssignDriver(context.Background(), l.ID, "owner-A", "driver-X")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestConcurrentAssignmentsOnSameLoad(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	l := createOpen(t, svc)
	_, err := svc.Accept(context.Background(), l.ID, "owner-A", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.AssignDriver(context.Background(), l.ID, "owner-A", ownerName(i)); err == nil {
				atomic.AddInt32(&successes, 1)
			} else {
				assert.ErrorIs(t, err, models.ErrConflict)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
}

func TestFullLifecycleVersioning(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)

	_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
	require.NoError(t, err)
	_, err = svc.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)
	inTransit, err := svc.UpdateStatus(ctx, l.ID, "driver-X", StatusInTransit, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), inTransit.Version)

	version := inTransit.Version
	completed, err := svc.UpdateStatus(ctx, l.ID, "driver-X", StatusCompleted, &version)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Equal(t, int64(4), completed.Version)
	assert.Len(t, completed.AuditTrail, 5)
	assertInvariants(t, completed)

	actions := make([]string, 0, len(completed.AuditTrail))
	for _, entry := range completed.AuditTrail {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{ActionCreated, ActionAccepted, ActionAssigned, ActionStatusUpdate, ActionStatusUpdate}, actions)
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)
	_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
	require.NoError(t, err)
	assigned, err := svc.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)

	for _, target := range []Status{StatusOpen, StatusAcceptedByOwner, StatusAssignedToDriver, StatusCancelled, StatusCompleted, "BOGUS"} {
		_, err := svc.UpdateStatus(ctx, l.ID, "driver-X", target, nil)
		assert.ErrorIsf(t, err, models.ErrValidation, "target %s", target)
	}

	stored, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, assigned.Version, stored.Version)
	assert.Equal(t, StatusAssignedToDriver, stored.Status)
	assert.Len(t, stored.AuditTrail, len(assigned.AuditTrail))
}

func TestUpdateStatusOnlyAssignedDriver(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)
	_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
	require.NoError(t, err)
	_, err = svc.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, l.ID, "driver-Y", StatusInTransit, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestUpdateStatusStaleVersionConflicts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)
	_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
	require.NoError(t, err)
	assigned, err := svc.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)

	stale := assigned.Version - 1
	_, err = svc.UpdateStatus(ctx, l.ID, "driver-X", StatusInTransit, &stale)
	assert.ErrorIs(t, err, models.ErrConflict)

	current := assigned.Version
	_, err = svc.UpdateStatus(ctx, l.ID, "driver-X", StatusInTransit, &current)
	require.NoError(t, err)

	// the same expected version cannot be used twice
	_, err = svc.UpdateStatus(ctx, l.ID, "driver-X", StatusCompleted, &current)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestConcurrentStatusUpdatesSingleWinner(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)
	_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
	require.NoError(t, err)
	assigned, err := svc.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)

	version := assigned.Version
	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := version
			if _, err := svc.UpdateStatus(ctx, l.ID, "driver-X", StatusInTransit, &v); err == nil {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	stored, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, version+1, stored.Version)
}

func TestCancel(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	l := createOpen(t, svc)
	_, err := svc.Cancel(ctx, l.ID, "customer-2")
	assert.ErrorIs(t, err, models.ErrForbidden)

	cancelled, err := svc.Cancel(ctx, l.ID, "customer-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assertInvariants(t, cancelled)

	_, err = svc.Cancel(ctx, l.ID, "customer-1")
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = svc.Accept(ctx, l.ID, "owner-A", nil)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCancelAfterAcceptConflicts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)
	_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, l.ID, "customer-1")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestSoftDelete(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)

	deleted, err := svc.SoftDelete(ctx, l.ID, "customer-1")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.NotNil(t, deleted.DeletedAt)
	assertInvariants(t, deleted)

	_, err = svc.Get(ctx, l.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	raw, err := store.Get(ctx, l.ID)
	require.NoError(t, err, "soft delete must keep the record")
	assert.Len(t, raw.AuditTrail, 2)

	open, err := svc.ListOpen(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, open.Loads)
}

func TestExpireStale(t *testing.T) {
	svc, _, clock, rec := newTestService(t)
	ctx := context.Background()

	stale := createOpen(t, svc)
	_, err := svc.Accept(ctx, stale.ID, "owner-A", nil)
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	fresh := createOpen(t, svc)
	_, err = svc.Accept(ctx, fresh.ID, "owner-B", nil)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	count, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reverted, err := svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, reverted.Status)
	assert.Nil(t, reverted.OwnerID)
	assert.Nil(t, reverted.AcceptedAt)
	assert.Equal(t, int64(2), reverted.Version)
	last := reverted.AuditTrail[len(reverted.AuditTrail)-1]
	assert.Equal(t, ActionExpired, last.Action)
	assert.Equal(t, SystemActor, last.ActorID)
	assertInvariants(t, reverted)

	untouched, err := svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAcceptedByOwner, untouched.Status)

	// idempotent: nothing left to revert
	count, err = svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	assert.Contains(t, rec.Events(), models.EventLoadExpired)

	// reclaimed load can be accepted again
	_, err = svc.Accept(ctx, stale.ID, "owner-C", nil)
	require.NoError(t, err)
}

func TestExpireStaleSkipsLoadsAssignedFirst(t *testing.T) {
	svc, _, clock, _ := newTestService(t)
	ctx := context.Background()
	l := createOpen(t, svc)
	_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)

	// assignment commits after the load became eligible but before the sweep writes
	assigned, err := svc.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)

	count, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	stored, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAssignedToDriver, stored.Status)
	assert.Equal(t, assigned.Version, stored.Version)
}

func TestExpireStaleConcurrentWithSelfAndAssign(t *testing.T) {
	svc, _, clock, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 20; i++ {
		l := createOpen(t, svc)
		_, err := svc.Accept(ctx, l.ID, "owner-A", nil)
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}
	clock.Advance(time.Hour)

	var wg sync.WaitGroup
	var reverted int64
	var assigned int64
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.ExpireStale(ctx)
			assert.NoError(t, err)
			atomic.AddInt64(&reverted, n)
		}()
	}
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if _, err := svc.AssignDriver(ctx, id, "owner-A", ownerName(i)); err == nil {
				atomic.AddInt64(&assigned, 1)
			}
		}(i, id)
	}
	wg.Wait()

	assert.Equal(t, int64(len(ids)), reverted+assigned)
	for _, id := range ids {
		l, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assertInvariants(t, l)
		assert.Contains(t, []Status{StatusOpen, StatusAssignedToDriver}, l.Status)
	}
}

func TestListingAndStats(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, createOpen(t, svc).ID)
	}
	_, err := svc.Accept(ctx, ids[0], "owner-A", nil)
	require.NoError(t, err)
	_, err = svc.AssignDriver(ctx, ids[0], "owner-A", "driver-X")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, ids[1], "customer-1")
	require.NoError(t, err)

	open, err := svc.ListOpen(ctx, &ListRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), open.TotalCount)
	assert.Len(t, open.Loads, 2)
	assert.Equal(t, 2, open.TotalPages)

	mine, err := svc.ListForCustomer(ctx, "customer-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), mine.TotalCount)

	owned, err := svc.ListForOwner(ctx, "owner-A", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), owned.TotalCount)

	driving, err := svc.ListForDriver(ctx, "driver-X", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), driving.TotalCount)

	active, err := svc.CountActiveForDriver(ctx, "driver-X")
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(3), stats.Open)
	assert.Equal(t, int64(1), stats.AssignedToDriver)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(5), stats.NewThisMonth)
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	store := NewMemoryStore()
	rec := &events.Recorder{Err: errors.New("broker down")}
	svc := NewLoadService(store, testConfig(), WithPublisher(rec))

	l, err := svc.Create(context.Background(), "customer-1", sampleRequest())
	require.NoError(t, err)
	accepted, err := svc.Accept(context.Background(), l.ID, "owner-A", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAcceptedByOwner, accepted.Status)
}

func TestListRejectsOverflowingPage(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	createOpen(t, svc)

	assert.NotPanics(t, func() {
		_, err := svc.ListOpen(ctx, &ListRequest{Page: 1e17, Limit: 100})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	// a negative skip reaching the store directly is clamped
	assert.NotPanics(t, func() {
		loads, total, err := store.Find(ctx, Condition{}, Page{Skip: -100, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, loads, 1)
	})
}
