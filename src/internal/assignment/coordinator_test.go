package assignment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"loadhub-core-svc/src/internal/config"
	"loadhub-core-svc/src/internal/events"
	"loadhub-core-svc/src/internal/fleet"
	"loadhub-core-svc/src/internal/load"
	"loadhub-core-svc/src/internal/models"
	"loadhub-core-svc/src/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	assessment *scoring.Assessment
	err        error
}

func (s stubScorer) Score(context.Context, scoring.Signal) (*scoring.Assessment, error) {
	return s.assessment, s.err
}

type fixture struct {
	coordinator Coordinator
	loads       load.Service
	fleet       *fleet.MemoryStore
	events      *events.Recorder
}

func newFixture(t *testing.T, scorer scoring.Scorer) *fixture {
	t.Helper()
	cfg := &config.Configuration{}
	cfg.Lifecycle.AcceptanceTimeoutMinutes = 30

	rec := &events.Recorder{}
	loads := load.NewLoadService(load.NewMemoryStore(), cfg, load.WithPublisher(rec))
	fleetStore := fleet.NewMemoryStore()
	ctx := context.Background()

	for _, owner := range []string{"owner-A", "owner-B"} {
		require.NoError(t, fleetStore.InsertOwner(ctx, &fleet.OwnerProfile{ID: "op-" + owner, UserID: owner}))
	}
	for _, driver := range []string{"driver-X", "driver-Y"} {
		require.NoError(t, fleetStore.InsertDriver(ctx, &fleet.DriverProfile{ID: "dp-" + driver, UserID: driver, IsAvailable: true}))
	}

	return &fixture{
		coordinator: NewCoordinator(loads, fleetStore, scorer),
		loads:       loads,
		fleet:       fleetStore,
		events:      rec,
	}
}

func (f *fixture) openLoad(t *testing.T, weight float64) *load.Load {
	t.Helper()
	l, err := f.loads.Create(context.Background(), "customer-1", &load.CreateRequest{
		Source:      "Nagpur",
		Destination: "Raipur",
		GoodsType:   "Cement",
		Weight:      weight,
		Price:       30000,
		Distance:    290,
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) acceptedLoad(t *testing.T, owner string, weight float64) *load.Load {
	t.Helper()
	l := f.openLoad(t, weight)
	_, err := f.coordinator.Accept(context.Background(), l.ID, owner)
	require.NoError(t, err)
	return l
}

func TestAcceptRequiresOwnerProfile(t *testing.T) {
	f := newFixture(t, scoring.Rules())
	l := f.openLoad(t, 10)

	_, err := f.coordinator.Accept(context.Background(), l.ID, "customer-1")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestAcceptRecordsScore(t *testing.T) {
	f := newFixture(t, stubScorer{assessment: &scoring.Assessment{RiskLevel: scoring.RiskLow, RiskScore: 7, Recommendation: scoring.RecommendApprove}})
	l := f.openLoad(t, 10)

	accepted, err := f.coordinator.Accept(context.Background(), l.ID, "owner-A")
	require.NoError(t, err)

	last := accepted.AuditTrail[len(accepted.AuditTrail)-1]
	assert.Equal(t, 7, last.Meta["riskScore"])
	assert.Equal(t, scoring.RiskLow, last.Meta["riskLevel"])
}

func TestAcceptFallsBackWhenScoringFails(t *testing.T) {
	f := newFixture(t, stubScorer{err: errors.New("scoring timeout")})
	l := f.openLoad(t, 10)

	accepted, err := f.coordinator.Accept(context.Background(), l.ID, "owner-A")
	require.NoError(t, err)

	last := accepted.AuditTrail[len(accepted.AuditTrail)-1]
	assert.Equal(t, true, last.Meta["scoringFallback"])
	assert.Equal(t, load.StatusAcceptedByOwner, accepted.Status)
}

func TestAcceptScenarioAB(t *testing.T) {
	f := newFixture(t, nil)
	l := f.openLoad(t, 10)
	ctx := context.Background()

	_, err := f.coordinator.Accept(ctx, l.ID, "owner-A")
	require.NoError(t, err)

	_, err = f.coordinator.Accept(ctx, l.ID, "owner-B")
	assert.ErrorIs(t, err, models.ErrConflict)

	assigned, err := f.coordinator.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)
	assert.Equal(t, load.StatusAssignedToDriver, assigned.Status)

	_, err = f.coordinator.AssignDriver(ctx, l.ID, "owner-A", "driver-Y")
	assert.ErrorIs(t, err, models.ErrConflict)

	stored, err := f.loads.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver-X", *stored.DriverID)

	driverY, err := f.fleet.GetDriverByUser(ctx, "driver-Y")
	require.NoError(t, err)
	assert.False(t, driverY.IsClaimed(), "losing driver must not stay claimed")
}

func TestAssignDriverChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("not the owner", func(t *testing.T) {
		f := newFixture(t, nil)
		l := f.acceptedLoad(t, "owner-A", 10)
		_, err := f.coordinator.AssignDriver(ctx, l.ID, "owner-B", "driver-X")
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("unknown driver", func(t *testing.T) {
		f := newFixture(t, nil)
		l := f.acceptedLoad(t, "owner-A", 10)
		_, err := f.coordinator.AssignDriver(ctx, l.ID, "owner-A", "ghost")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("unavailable driver", func(t *testing.T) {
		f := newFixture(t, nil)
		l := f.acceptedLoad(t, "owner-A", 10)
		require.NoError(t, f.fleet.SetAvailability(ctx, "driver-X", false))
		_, err := f.coordinator.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
		assert.ErrorIs(t, err, models.ErrDriverUnavailable)
	})

	t.Run("insufficient capacity", func(t *testing.T) {
		f := newFixture(t, nil)
		l := f.acceptedLoad(t, "owner-A", 25)
		driver := "driver-X"
		require.NoError(t, f.fleet.InsertVehicle(ctx, &fleet.Vehicle{ID: "v1", Number: "MH12", Capacity: 20, OwnerID: "owner-A", DriverID: &driver}))
		_, err := f.coordinator.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
		assert.ErrorIs(t, err, models.ErrInsufficientVolume)

		p, err := f.fleet.GetDriverByUser(ctx, "driver-X")
		require.NoError(t, err)
		assert.False(t, p.IsClaimed())
	})

	t.Run("driver already busy", func(t *testing.T) {
		f := newFixture(t, nil)
		first := f.acceptedLoad(t, "owner-A", 10)
		second := f.acceptedLoad(t, "owner-A", 10)
		_, err := f.coordinator.AssignDriver(ctx, first.ID, "owner-A", "driver-X")
		require.NoError(t, err)
		_, err = f.coordinator.AssignDriver(ctx, second.ID, "owner-A", "driver-X")
		assert.ErrorIs(t, err, models.ErrDriverBusy)
	})
}

func TestNoDoubleAssignmentAcrossLoads(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, f.acceptedLoad(t, "owner-A", 10).ID)
	}

	var wg sync.WaitGroup
	var successes int32
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.coordinator.AssignDriver(ctx, id, "owner-A", "driver-X"); err == nil {
				atomic.AddInt32(&successes, 1)
			} else {
				assert.ErrorIs(t, err, models.ErrConflict)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	active, err := f.loads.CountActiveForDriver(ctx, "driver-X")
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)
}

func TestCompletionReleasesDriver(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.acceptedLoad(t, "owner-A", 10)
	_, err := f.coordinator.AssignDriver(ctx, first.ID, "owner-A", "driver-X")
	require.NoError(t, err)

	_, err = f.coordinator.UpdateStatus(ctx, first.ID, "driver-X", load.StatusInTransit, nil)
	require.NoError(t, err)
	p, err := f.fleet.GetDriverByUser(ctx, "driver-X")
	require.NoError(t, err)
	assert.True(t, p.IsClaimed())

	completed, err := f.coordinator.UpdateStatus(ctx, first.ID, "driver-X", load.StatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, load.StatusCompleted, completed.Status)

	p, err = f.fleet.GetDriverByUser(ctx, "driver-X")
	require.NoError(t, err)
	assert.False(t, p.IsClaimed())
	assert.Equal(t, int64(1), p.TotalTrips)

	second := f.acceptedLoad(t, "owner-B", 10)
	_, err = f.coordinator.AssignDriver(ctx, second.ID, "owner-B", "driver-X")
	require.NoError(t, err)
}

func TestUpdateStatusFailureKeepsClaim(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	l := f.acceptedLoad(t, "owner-A", 10)
	_, err := f.coordinator.AssignDriver(ctx, l.ID, "owner-A", "driver-X")
	require.NoError(t, err)

	_, err = f.coordinator.UpdateStatus(ctx, l.ID, "driver-X", load.StatusCompleted, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	p, err := f.fleet.GetDriverByUser(ctx, "driver-X")
	require.NoError(t, err)
	assert.True(t, p.IsClaimed())
}
