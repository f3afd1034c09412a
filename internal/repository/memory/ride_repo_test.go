package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icea-caronas/carpool-backend/internal/domain/ride"
)

func seedRide(t *testing.T, repo *RideRepository, id string, createdAt time.Time) *ride.Ride {
	t.Helper()

	rd := &ride.Ride{
		ID:             id,
		DriverID:       "driver-1",
		DriverName:     "Carlos",
		Origin:         "Campus ICEA",
		Destination:    "Centro",
		DepartureTime:  "17:30",
		AvailableSeats: 2,
		Status:         ride.StatusAvailable,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), rd))
	return rd
}

func TestRideRepository_GetByID(t *testing.T) {
	repo := NewRideRepository()
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ride.ErrRideNotFound)

	seedRide(t, repo, "ride-1", time.Now())
	got, err := repo.GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, "ride-1", got.ID)

	// Returned value is a copy; callers cannot reach stored state.
	got.PendingRequests = append(got.PendingRequests, ride.PendingRequest{PassengerID: "ana"})
	again, err := repo.GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Empty(t, again.PendingRequests)
}

func TestRideRepository_MutateRollsBackOnError(t *testing.T) {
	repo := NewRideRepository()
	ctx := context.Background()
	seedRide(t, repo, "ride-1", time.Now())

	boom := errors.New("boom")
	err := repo.Mutate(ctx, "ride-1", func(rd *ride.Ride) error {
		rd.PendingRequests = append(rd.PendingRequests, ride.PendingRequest{PassengerID: "ana"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Empty(t, got.PendingRequests)
}

func TestRideRepository_MutateSerializes(t *testing.T) {
	repo := NewRideRepository()
	ctx := context.Background()
	seedRide(t, repo, "ride-1", time.Now())

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = repo.Mutate(ctx, "ride-1", func(rd *ride.Ride) error {
				rd.WaitingList = append(rd.WaitingList, ride.WaitingEntry{PassengerID: string(rune('a' + n))})
				return nil
			})
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, "ride-1")
	require.NoError(t, err)
	assert.Len(t, got.WaitingList, writers, "no append lost to a race")
}

func TestRideRepository_Listings(t *testing.T) {
	repo := NewRideRepository()
	ctx := context.Background()

	base := time.Now()
	seedRide(t, repo, "older", base.Add(-time.Hour))
	seedRide(t, repo, "newer", base)
	done := seedRide(t, repo, "done", base.Add(-2*time.Hour))

	require.NoError(t, repo.Mutate(ctx, done.ID, func(rd *ride.Ride) error {
		rd.Status = ride.StatusCompleted
		rd.Passengers = []ride.Passenger{{PassengerID: "ana", ConfirmedAt: base}}
		return nil
	}))

	available, err := repo.ListByStatus(ctx, ride.StatusAvailable)
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "newer", available[0].ID)
	assert.Equal(t, "older", available[1].ID)

	history, err := repo.ListCompletedByParticipant(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "done", history[0].ID)

	history, err = repo.ListCompletedByParticipant(ctx, "driver-1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "driver counts as a participant")

	history, err = repo.ListCompletedByParticipant(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, history)
}
