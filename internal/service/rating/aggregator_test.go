package rating

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
	"github.com/icea-caronas/carpool-backend/internal/repository/memory"
	apperrors "github.com/icea-caronas/carpool-backend/pkg/errors"
	"github.com/icea-caronas/carpool-backend/pkg/logger"
)

type testEnv struct {
	service  *Service
	requests *memory.RatingRequestRepository
	ratings  *memory.RatingRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)

	requests := memory.NewRatingRequestRepository()
	ratings := memory.NewRatingRepository()

	return &testEnv{
		service:  NewService(requests, ratings, log),
		requests: requests,
		ratings:  ratings,
	}
}

func (e *testEnv) seedRequest(t *testing.T, id string, toRole rating.Role, expiresAt time.Time) *rating.Request {
	t.Helper()

	from, to := "passenger-1", "driver-1"
	fromRole := rating.RolePassenger
	if toRole == rating.RolePassenger {
		from, to = "driver-1", "passenger-1"
		fromRole = rating.RoleDriver
	}

	req := &rating.Request{
		ID:           id,
		RideID:       "ride-1",
		FromUserID:   from,
		FromUserRole: fromRole,
		ToUserID:     to,
		ToUserRole:   toRole,
		RideInfo:     rating.RideInfo{Origin: "Campus ICEA", Destination: "Centro", DepartureTime: "17:30"},
		CreatedAt:    time.Now(),
		ExpiresAt:    expiresAt,
		Status:       rating.StatusPending,
	}
	require.NoError(t, e.requests.CreateBatch(context.Background(), []*rating.Request{req}))
	return req
}

func future() time.Time { return time.Now().Add(24 * time.Hour) }

func TestSubmitRating_StoresAndAggregates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRequest(t, "req-1", rating.RoleDriver, future())

	rt, toRole, err := env.service.SubmitRating(ctx, "req-1", Submission{
		Value:      5,
		Categories: map[rating.Category]int{rating.CategoryPunctuality: 4, rating.CategoryCleanliness: 5},
		Comment:    "Motorista pontual",
	})
	require.NoError(t, err)
	assert.Equal(t, rating.RoleDriver, toRole)
	assert.Equal(t, "driver-1", rt.ToUserID)
	assert.Equal(t, 5, rt.Value)

	agg, err := env.service.Aggregate(ctx, "driver-1", rating.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Count)
	assert.Equal(t, 5.0, agg.Average)
	assert.Equal(t, 4.0, agg.Breakdown[rating.CategoryPunctuality].Average)

	// The consumed request disappears from the pending list.
	pending, err := env.service.PendingRequests(ctx, "passenger-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitRating_RunningMean(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i, value := range []int{5, 3, 4} {
		id := string(rune('a' + i))
		env.seedRequest(t, id, rating.RoleDriver, future())
		_, _, err := env.service.SubmitRating(ctx, id, Submission{Value: value})
		require.NoError(t, err)
	}

	agg, err := env.service.Aggregate(ctx, "driver-1", rating.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Count)
	assert.InDelta(t, 4.0, agg.Average, 1e-9)
}

func TestSubmitRating_AlreadySubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRequest(t, "req-1", rating.RoleDriver, future())

	_, _, err := env.service.SubmitRating(ctx, "req-1", Submission{Value: 4})
	require.NoError(t, err)

	_, _, err = env.service.SubmitRating(ctx, "req-1", Submission{Value: 1})
	assert.ErrorIs(t, err, rating.ErrAlreadySubmitted)

	// The losing submission leaves the aggregate untouched.
	agg, err := env.service.Aggregate(ctx, "driver-1", rating.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Count)
	assert.Equal(t, 4.0, agg.Average)
}

func TestSubmitRating_ExpiredLazily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRequest(t, "req-1", rating.RoleDriver, time.Now().Add(-time.Hour))

	_, _, err := env.service.SubmitRating(ctx, "req-1", Submission{Value: 5})
	assert.ErrorIs(t, err, rating.ErrRequestExpired)

	// The terminal state is persisted, so a retry fails the same way.
	req, err := env.requests.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, rating.StatusExpired, req.Status)

	_, _, err = env.service.SubmitRating(ctx, "req-1", Submission{Value: 5})
	assert.ErrorIs(t, err, rating.ErrRequestExpired)

	agg, err := env.service.Aggregate(ctx, "driver-1", rating.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Count)
}

func TestSubmitRating_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("value out of range", func(t *testing.T) {
		env.seedRequest(t, "req-low", rating.RoleDriver, future())
		_, _, err := env.service.SubmitRating(ctx, "req-low", Submission{Value: 0})
		assert.ErrorIs(t, err, rating.ErrInvalidValue)

		_, _, err = env.service.SubmitRating(ctx, "req-low", Submission{Value: 6})
		assert.ErrorIs(t, err, rating.ErrInvalidValue)

		// A failed validation does not consume the request.
		_, _, err = env.service.SubmitRating(ctx, "req-low", Submission{Value: 3})
		assert.NoError(t, err)
	})

	t.Run("cleanliness toward a passenger", func(t *testing.T) {
		env.seedRequest(t, "req-pass", rating.RolePassenger, future())
		_, _, err := env.service.SubmitRating(ctx, "req-pass", Submission{
			Value:      4,
			Categories: map[rating.Category]int{rating.CategoryCleanliness: 5},
		})
		assert.ErrorIs(t, err, rating.ErrCategoryNotApplicable)
	})

	t.Run("cleanliness toward a driver", func(t *testing.T) {
		env.seedRequest(t, "req-drv", rating.RoleDriver, future())
		_, _, err := env.service.SubmitRating(ctx, "req-drv", Submission{
			Value:      4,
			Categories: map[rating.Category]int{rating.CategoryCleanliness: 5},
		})
		assert.NoError(t, err)
	})

	t.Run("accented comment within limit", func(t *testing.T) {
		// 300 characters but 600 bytes; the limit counts characters.
		env.seedRequest(t, "req-acc", rating.RoleDriver, future())
		_, _, err := env.service.SubmitRating(ctx, "req-acc", Submission{
			Value:   5,
			Comment: strings.Repeat("ã", 300),
		})
		assert.NoError(t, err)
	})

	t.Run("comment too long", func(t *testing.T) {
		env.seedRequest(t, "req-long", rating.RoleDriver, future())
		_, _, err := env.service.SubmitRating(ctx, "req-long", Submission{
			Value:   5,
			Comment: strings.Repeat("ã", 501),
		})
		assert.ErrorIs(t, err, rating.ErrCommentTooLong)
	})

	t.Run("unknown category", func(t *testing.T) {
		env.seedRequest(t, "req-cat", rating.RoleDriver, future())
		_, _, err := env.service.SubmitRating(ctx, "req-cat", Submission{
			Value:      4,
			Categories: map[rating.Category]int{"speed": 5},
		})
		assert.ErrorIs(t, err, rating.ErrInvalidCategory)
	})
}

// flakyRatingRepository fails a configurable number of downstream writes, the
// way a briefly unreachable store would.
type flakyRatingRepository struct {
	*memory.RatingRepository
	failCreates int
	failFolds   int
}

func (f *flakyRatingRepository) CreateRating(ctx context.Context, rt *rating.Rating) error {
	if f.failCreates > 0 {
		f.failCreates--
		return apperrors.ErrStoreUnavailable
	}
	return f.RatingRepository.CreateRating(ctx, rt)
}

func (f *flakyRatingRepository) MutateAggregate(ctx context.Context, userID string, role rating.Role, fn func(a *rating.Aggregate) error) error {
	if f.failFolds > 0 {
		f.failFolds--
		return apperrors.ErrStoreUnavailable
	}
	return f.RatingRepository.MutateAggregate(ctx, userID, role, fn)
}

func TestSubmitRating_RetryAfterStoreFailure(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)
	ctx := context.Background()

	cases := []struct {
		name  string
		flaky flakyRatingRepository
	}{
		{"rating write fails once", flakyRatingRepository{failCreates: 1}},
		{"aggregate fold fails once", flakyRatingRepository{failFolds: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requests := memory.NewRatingRequestRepository()
			flaky := tc.flaky
			flaky.RatingRepository = memory.NewRatingRepository()
			service := NewService(requests, &flaky, log)

			env := &testEnv{service: service, requests: requests}
			env.seedRequest(t, "req-1", rating.RoleDriver, future())

			_, _, err := service.SubmitRating(ctx, "req-1", Submission{Value: 4})
			assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

			// The failed attempt hands the request back, so the retry is
			// not refused as already submitted.
			req, err := requests.GetByID(ctx, "req-1")
			require.NoError(t, err)
			assert.Equal(t, rating.StatusPending, req.Status)

			_, _, err = service.SubmitRating(ctx, "req-1", Submission{Value: 4})
			require.NoError(t, err)

			agg, err := service.Aggregate(ctx, "driver-1", rating.RoleDriver)
			require.NoError(t, err)
			assert.Equal(t, 1, agg.Count)
			assert.Equal(t, 4.0, agg.Average)
		})
	}
}

func TestAggregate_RolesIndependent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedRequest(t, "as-driver", rating.RoleDriver, future())
	_, _, err := env.service.SubmitRating(ctx, "as-driver", Submission{Value: 5})
	require.NoError(t, err)

	// driver-1 also rode as a passenger on another ride.
	req := &rating.Request{
		ID:           "as-passenger",
		RideID:       "ride-2",
		FromUserID:   "driver-2",
		FromUserRole: rating.RoleDriver,
		ToUserID:     "driver-1",
		ToUserRole:   rating.RolePassenger,
		CreatedAt:    time.Now(),
		ExpiresAt:    future(),
		Status:       rating.StatusPending,
	}
	require.NoError(t, env.requests.CreateBatch(ctx, []*rating.Request{req}))
	_, _, err = env.service.SubmitRating(ctx, "as-passenger", Submission{Value: 2})
	require.NoError(t, err)

	asDriver, err := env.service.Aggregate(ctx, "driver-1", rating.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 5.0, asDriver.Average)

	asPassenger, err := env.service.Aggregate(ctx, "driver-1", rating.RolePassenger)
	require.NoError(t, err)
	assert.Equal(t, 2.0, asPassenger.Average)
}

func TestAggregate_EmptyIsZeroValued(t *testing.T) {
	env := newTestEnv(t)

	agg, err := env.service.Aggregate(context.Background(), "nobody", rating.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Count)
	assert.Equal(t, 0.0, agg.Average)
}

func TestPendingRequests_SkipsExpired(t *testing.T) {
	env := newTestEnv(t)
	env.seedRequest(t, "open", rating.RoleDriver, future())
	env.seedRequest(t, "stale", rating.RoleDriver, time.Now().Add(-time.Minute))

	pending, err := env.service.PendingRequests(context.Background(), "passenger-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "open", pending[0].ID)
}
