package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
	"github.com/icea-caronas/carpool-backend/internal/domain/ride"
	"github.com/icea-caronas/carpool-backend/internal/repository/memory"
	"github.com/icea-caronas/carpool-backend/pkg/logger"
)

type allowList struct {
	ids map[string]bool
}

func (a *allowList) CanDeleteRides(ctx context.Context, userID string) bool {
	return a.ids[userID]
}

type testEnv struct {
	engine   *Engine
	rides    *memory.RideRepository
	requests *memory.RatingRequestRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	rides := memory.NewRideRepository()
	requests := memory.NewRatingRequestRepository()
	perms := &allowList{ids: map[string]bool{"admin-1": true}}

	return &testEnv{
		engine:   NewEngine(rides, requests, perms, log, Config{}),
		rides:    rides,
		requests: requests,
	}
}

func (e *testEnv) publishRide(t *testing.T, seats int) *ride.Ride {
	t.Helper()

	rd := &ride.Ride{
		DriverID:       "driver-1",
		DriverName:     "Carlos",
		Origin:         "Campus ICEA",
		Destination:    "Centro",
		DepartureTime:  "17:30",
		AvailableSeats: seats,
		Price:          5.50,
	}
	require.NoError(t, e.engine.PublishRide(context.Background(), rd))
	return rd
}

func (e *testEnv) getRide(t *testing.T, id string) *ride.Ride {
	t.Helper()
	rd, err := e.rides.GetByID(context.Background(), id)
	require.NoError(t, err)
	return rd
}

func passengerInfo(name string) PassengerInfo {
	return PassengerInfo{Name: name, Phone: "31 99999-0000"}
}

func TestPublishRide_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(r *ride.Ride)
		wantErr error
	}{
		{"bad departure time", func(r *ride.Ride) { r.DepartureTime = "25:99" }, ride.ErrInvalidDepartureTime},
		{"missing colon", func(r *ride.Ride) { r.DepartureTime = "1730" }, ride.ErrInvalidDepartureTime},
		{"zero seats", func(r *ride.Ride) { r.AvailableSeats = 0 }, ride.ErrInvalidSeatCount},
		{"too many seats", func(r *ride.Ride) { r.AvailableSeats = 9 }, ride.ErrInvalidSeatCount},
		{"negative price", func(r *ride.Ride) { r.Price = -1 }, ride.ErrInvalidPrice},
		{"missing route", func(r *ride.Ride) { r.Origin = "" }, ride.ErrInvalidRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := &ride.Ride{
				DriverID:       "driver-1",
				DriverName:     "Carlos",
				Origin:         "Campus ICEA",
				Destination:    "Centro",
				DepartureTime:  "17:30",
				AvailableSeats: 2,
			}
			tt.mutate(rd)
			err := env.engine.PublishRide(ctx, rd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("free ride is valid", func(t *testing.T) {
		rd := &ride.Ride{
			DriverID:       "driver-1",
			DriverName:     "Carlos",
			Origin:         "Campus ICEA",
			Destination:    "Centro",
			DepartureTime:  "07:00",
			AvailableSeats: 4,
			Price:          0,
		}
		assert.NoError(t, env.engine.PublishRide(ctx, rd))
		assert.Equal(t, ride.StatusAvailable, rd.Status)
	})
}

func TestRequestSeat_SelfBooking(t *testing.T) {
	env := newTestEnv(t)
	rd := env.publishRide(t, 2)

	_, err := env.engine.RequestSeat(context.Background(), rd.ID, "driver-1", passengerInfo("Carlos"))
	assert.ErrorIs(t, err, ride.ErrSelfBooking)
}

func TestRequestSeat_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 1)

	// Duplicate while pending.
	_, err := env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	require.NoError(t, err)
	_, err = env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	assert.ErrorIs(t, err, ride.ErrDuplicateRequest)

	// Duplicate while confirmed.
	require.NoError(t, env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "ana"))
	_, err = env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	assert.ErrorIs(t, err, ride.ErrDuplicateRequest)

	// Duplicate while on the waiting list.
	_, err = env.engine.RequestSeat(ctx, rd.ID, "bia", passengerInfo("Bia"))
	require.NoError(t, err)
	_, err = env.engine.RequestSeat(ctx, rd.ID, "bia", passengerInfo("Bia"))
	assert.ErrorIs(t, err, ride.ErrDuplicateRequest)
}

func TestRequestSeat_PlacementBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 2)

	// One slot short of capacity: next requester still goes to pending.
	placement, err := env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	require.NoError(t, err)
	assert.Equal(t, PlacementPending, placement)

	placement, err = env.engine.RequestSeat(ctx, rd.ID, "bia", passengerInfo("Bia"))
	require.NoError(t, err)
	assert.Equal(t, PlacementPending, placement)

	// Capacity exhausted: overflow to the waiting list.
	placement, err = env.engine.RequestSeat(ctx, rd.ID, "caio", passengerInfo("Caio"))
	require.NoError(t, err)
	assert.Equal(t, PlacementWaiting, placement)

	got := env.getRide(t, rd.ID)
	assert.Len(t, got.PendingRequests, 2)
	assert.Len(t, got.WaitingList, 1)
	assert.Equal(t, "caio", got.WaitingList[0].PassengerID)
}

func TestRequestSeat_RideNotAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 2)

	require.NoError(t, env.engine.DeleteRide(ctx, rd.ID, "driver-1"))

	_, err := env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	assert.ErrorIs(t, err, ride.ErrRideNotAvailable)
}

func TestApproveRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 2)

	_, err := env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	require.NoError(t, err)

	t.Run("only the driver approves", func(t *testing.T) {
		err := env.engine.ApproveRequest(ctx, rd.ID, "ana", "ana")
		assert.ErrorIs(t, err, ride.ErrNotDriver)
	})

	t.Run("unknown request", func(t *testing.T) {
		err := env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "nobody")
		assert.ErrorIs(t, err, ride.ErrRequestNotFound)
	})

	t.Run("moves pending to confirmed", func(t *testing.T) {
		require.NoError(t, env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "ana"))

		got := env.getRide(t, rd.ID)
		require.Len(t, got.Passengers, 1)
		assert.Equal(t, "ana", got.Passengers[0].PassengerID)
		assert.False(t, got.Passengers[0].ConfirmedAt.IsZero())
		assert.Empty(t, got.PendingRequests)
	})
}

func TestApproveRequest_SeatsFullGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Inconsistent state cannot be reached through the engine; seed it
	// directly to exercise the defensive check.
	now := time.Now()
	rd := &ride.Ride{
		ID:             "ride-broken",
		DriverID:       "driver-1",
		DriverName:     "Carlos",
		Origin:         "Campus ICEA",
		Destination:    "Centro",
		DepartureTime:  "17:30",
		AvailableSeats: 1,
		Status:         ride.StatusAvailable,
		Passengers:     []ride.Passenger{{PassengerID: "ana", PassengerName: "Ana", ConfirmedAt: now}},
		PendingRequests: []ride.PendingRequest{
			{PassengerID: "bia", PassengerName: "Bia", RequestedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, env.rides.Create(ctx, rd))

	err := env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "bia")
	assert.ErrorIs(t, err, ride.ErrSeatsFull)
}

func TestRejectRequest_LeavesWaitingListAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 1)

	_, err := env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	require.NoError(t, err)
	_, err = env.engine.RequestSeat(ctx, rd.ID, "bia", passengerInfo("Bia"))
	require.NoError(t, err)

	require.NoError(t, env.engine.RejectRequest(ctx, rd.ID, "driver-1", "ana"))

	got := env.getRide(t, rd.ID)
	assert.Empty(t, got.PendingRequests)
	// A rejection frees no confirmed seat, so nobody is promoted.
	require.Len(t, got.WaitingList, 1)
	assert.Equal(t, "bia", got.WaitingList[0].PassengerID)
}

func TestCancelConfirmedSeat_PromotesFIFO(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 1)

	_, err := env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	require.NoError(t, err)
	require.NoError(t, env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "ana"))

	for _, id := range []string{"bia", "caio", "duda"} {
		_, err := env.engine.RequestSeat(ctx, rd.ID, id, passengerInfo(id))
		require.NoError(t, err)
	}

	promoted, err := env.engine.CancelConfirmedSeat(ctx, rd.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, "bia", promoted)

	got := env.getRide(t, rd.ID)
	assert.Empty(t, got.Passengers)
	// Promotion lands in pending, not straight into a seat.
	require.Len(t, got.PendingRequests, 1)
	assert.Equal(t, "bia", got.PendingRequests[0].PassengerID)
	// Remaining waiters keep their order.
	require.Len(t, got.WaitingList, 2)
	assert.Equal(t, "caio", got.WaitingList[0].PassengerID)
	assert.Equal(t, "duda", got.WaitingList[1].PassengerID)
}

func TestCancelConfirmedSeat_NotConfirmed(t *testing.T) {
	env := newTestEnv(t)
	rd := env.publishRide(t, 2)

	_, err := env.engine.CancelConfirmedSeat(context.Background(), rd.ID, "ana")
	assert.ErrorIs(t, err, ride.ErrPassengerNotFound)
}

func TestDeleteRide_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("stranger denied", func(t *testing.T) {
		rd := env.publishRide(t, 2)
		err := env.engine.DeleteRide(ctx, rd.ID, "stranger")
		assert.ErrorIs(t, err, ride.ErrPermissionDenied)
	})

	t.Run("driver allowed", func(t *testing.T) {
		rd := env.publishRide(t, 2)
		assert.NoError(t, env.engine.DeleteRide(ctx, rd.ID, "driver-1"))
		got := env.getRide(t, rd.ID)
		assert.Equal(t, ride.StatusDeleted, got.Status)
	})

	t.Run("admin allowed", func(t *testing.T) {
		rd := env.publishRide(t, 2)
		assert.NoError(t, env.engine.DeleteRide(ctx, rd.ID, "admin-1"))
	})

	t.Run("double delete not available", func(t *testing.T) {
		rd := env.publishRide(t, 2)
		require.NoError(t, env.engine.DeleteRide(ctx, rd.ID, "driver-1"))
		err := env.engine.DeleteRide(ctx, rd.ID, "driver-1")
		assert.ErrorIs(t, err, ride.ErrRideNotAvailable)
	})
}

func TestCompleteRide_CreatesBidirectionalRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 2)

	for _, id := range []string{"ana", "bia"} {
		_, err := env.engine.RequestSeat(ctx, rd.ID, id, passengerInfo(id))
		require.NoError(t, err)
		require.NoError(t, env.engine.ApproveRequest(ctx, rd.ID, "driver-1", id))
	}

	before := time.Now()
	requests, err := env.engine.CompleteRide(ctx, rd.ID, "driver-1")
	require.NoError(t, err)
	require.Len(t, requests, 4)

	got := env.getRide(t, rd.ID)
	assert.Equal(t, ride.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Driver rates each passenger, each passenger rates the driver.
	driverPending, err := env.requests.ListPendingByUser(ctx, "driver-1", before)
	require.NoError(t, err)
	assert.Len(t, driverPending, 2)

	for _, id := range []string{"ana", "bia"} {
		pending, err := env.requests.ListPendingByUser(ctx, id, before)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "driver-1", pending[0].ToUserID)
		assert.Equal(t, rating.RoleDriver, pending[0].ToUserRole)
		assert.Equal(t, rating.RolePassenger, pending[0].FromUserRole)
		assert.Equal(t, "Campus ICEA", pending[0].RideInfo.Origin)
		assert.WithinDuration(t, before.Add(7*24*time.Hour), pending[0].ExpiresAt, 5*time.Second)
	}
}

func TestCompleteRide_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 2)

	_, err := env.engine.RequestSeat(ctx, rd.ID, "ana", passengerInfo("Ana"))
	require.NoError(t, err)
	require.NoError(t, env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "ana"))

	before := time.Now()
	first, err := env.engine.CompleteRide(ctx, rd.ID, "driver-1")
	require.NoError(t, err)
	require.Len(t, first, 2)

	// The second completion fails before any requests are created.
	second, err := env.engine.CompleteRide(ctx, rd.ID, "driver-1")
	assert.ErrorIs(t, err, ride.ErrRideNotAvailable)
	assert.Nil(t, second)

	driverPending, err := env.requests.ListPendingByUser(ctx, "driver-1", before)
	require.NoError(t, err)
	assert.Len(t, driverPending, 1)
}

func TestCompleteRide_NotDriver(t *testing.T) {
	env := newTestEnv(t)
	rd := env.publishRide(t, 2)

	_, err := env.engine.CompleteRide(context.Background(), rd.ID, "ana")
	assert.ErrorIs(t, err, ride.ErrNotDriver)
}

// TestScenario_TwoSeatLifecycle walks the two-seat ride through request,
// approval, overflow and cancellation, checking the exact queue contents at
// the end.
func TestScenario_TwoSeatLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 2)

	placement, err := env.engine.RequestSeat(ctx, rd.ID, "A", passengerInfo("A"))
	require.NoError(t, err)
	assert.Equal(t, PlacementPending, placement)

	placement, err = env.engine.RequestSeat(ctx, rd.ID, "B", passengerInfo("B"))
	require.NoError(t, err)
	assert.Equal(t, PlacementPending, placement)

	placement, err = env.engine.RequestSeat(ctx, rd.ID, "C", passengerInfo("C"))
	require.NoError(t, err)
	assert.Equal(t, PlacementWaiting, placement)

	require.NoError(t, env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "A"))
	got := env.getRide(t, rd.ID)
	require.Len(t, got.Passengers, 1)
	assert.Equal(t, "A", got.Passengers[0].PassengerID)
	require.Len(t, got.PendingRequests, 1)
	assert.Equal(t, "B", got.PendingRequests[0].PassengerID)

	require.NoError(t, env.engine.ApproveRequest(ctx, rd.ID, "driver-1", "B"))
	got = env.getRide(t, rd.ID)
	require.Len(t, got.Passengers, 2)
	assert.Empty(t, got.PendingRequests)

	promoted, err := env.engine.CancelConfirmedSeat(ctx, rd.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, "C", promoted)

	got = env.getRide(t, rd.ID)
	require.Len(t, got.Passengers, 1)
	assert.Equal(t, "B", got.Passengers[0].PassengerID)
	require.Len(t, got.PendingRequests, 1)
	assert.Equal(t, "C", got.PendingRequests[0].PassengerID)
	assert.Empty(t, got.WaitingList)
}

// TestRequestSeat_ConcurrentLastSlot races many passengers for a small ride
// and checks the seat invariants on the committed state.
func TestRequestSeat_ConcurrentLastSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rd := env.publishRide(t, 2)

	const racers = 16
	var wg sync.WaitGroup
	placements := make([]Placement, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			p, err := env.engine.RequestSeat(ctx, rd.ID, id, passengerInfo(id))
			if err == nil {
				placements[n] = p
			}
		}(i)
	}
	wg.Wait()

	pending := 0
	for _, p := range placements {
		if p == PlacementPending {
			pending++
		}
	}
	assert.Equal(t, 2, pending, "exactly the seat count lands in pending")

	got := env.getRide(t, rd.ID)
	assert.Len(t, got.PendingRequests, 2)
	assert.Len(t, got.WaitingList, racers-2)
	assert.LessOrEqual(t, got.SeatsTaken(), got.AvailableSeats+len(got.WaitingList))

	// No passenger id appears in more than one queue.
	seen := make(map[string]int)
	for _, p := range got.Passengers {
		seen[p.PassengerID]++
	}
	for _, p := range got.PendingRequests {
		seen[p.PassengerID]++
	}
	for _, w := range got.WaitingList {
		seen[w.PassengerID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "passenger %s appears once", id)
	}
}
