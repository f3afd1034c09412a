package rating

import (
	"context"
	"time"

	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
	"github.com/icea-caronas/carpool-backend/pkg/logger"
)

// Submission is the payload of one rating submission
type Submission struct {
	Value       int
	Categories  map[rating.Category]int
	Comment     string
	IsAnonymous bool
}

// Service validates rating submissions, writes the immutable rating record
// and folds it into the target user's rolling aggregate. Each request is
// consumed at most once; expiry is observed lazily when the submission or a
// pending-list query touches the request.
type Service struct {
	requests rating.RequestRepository
	ratings  rating.Repository
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new rating service
func NewService(requests rating.RequestRepository, ratings rating.Repository, log *logger.Logger) *Service {
	return &Service{
		requests: requests,
		ratings:  ratings,
		logger:   log,
		now:      time.Now,
	}
}

// SubmitRating consumes a pending rating request and returns the stored
// rating together with the rated user's role. The request transition is
// atomic, so a concurrent duplicate submission loses with AlreadySubmitted
// and leaves the aggregate unchanged. If the rating write or the aggregate
// fold fails afterwards, the request is handed back to pending so the user
// can retry; the rating write is keyed by request id, so a retry after a
// partial failure never stores a second rating.
func (s *Service) SubmitRating(ctx context.Context, requestID string, sub Submission) (*rating.Rating, rating.Role, error) {
	now := s.now()
	var consumed *rating.Request
	var expired bool

	err := s.requests.Mutate(ctx, requestID, func(req *rating.Request) error {
		switch req.Status {
		case rating.StatusSubmitted:
			return rating.ErrAlreadySubmitted
		case rating.StatusExpired:
			return rating.ErrRequestExpired
		}
		if req.IsExpired(now) {
			// Window passed without a submission: record the terminal state
			// and refuse below.
			req.Status = rating.StatusExpired
			expired = true
			return nil
		}

		rt := &rating.Rating{Value: sub.Value, Categories: sub.Categories, Comment: sub.Comment}
		if err := rt.Validate(req.ToUserRole); err != nil {
			return err
		}

		req.Status = rating.StatusSubmitted
		copied := *req
		consumed = &copied
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if expired {
		return nil, "", rating.ErrRequestExpired
	}

	rt := &rating.Rating{
		RequestID:   consumed.ID,
		RideID:      consumed.RideID,
		FromUserID:  consumed.FromUserID,
		ToUserID:    consumed.ToUserID,
		Value:       sub.Value,
		Categories:  sub.Categories,
		Comment:     sub.Comment,
		IsAnonymous: sub.IsAnonymous,
		CreatedAt:   now,
	}
	if err := s.ratings.CreateRating(ctx, rt); err != nil {
		s.logger.Error("Failed to store rating",
			logger.String("request_id", requestID),
			logger.Err(err),
		)
		s.releaseRequest(ctx, requestID)
		return nil, "", err
	}

	err = s.ratings.MutateAggregate(ctx, consumed.ToUserID, consumed.ToUserRole, func(a *rating.Aggregate) error {
		a.Apply(rt)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update rating aggregate",
			logger.String("request_id", requestID),
			logger.String("to_user_id", consumed.ToUserID),
			logger.Err(err),
		)
		s.releaseRequest(ctx, requestID)
		return nil, "", err
	}

	s.logger.Info("Rating submitted",
		logger.String("request_id", requestID),
		logger.String("to_user_id", consumed.ToUserID),
		logger.String("to_user_role", string(consumed.ToUserRole)),
		logger.Int("value", sub.Value),
	)
	return rt, consumed.ToUserRole, nil
}

// releaseRequest hands a consumed request back to pending after a downstream
// write failed, so a retry is not refused as already submitted.
func (s *Service) releaseRequest(ctx context.Context, requestID string) {
	err := s.requests.Mutate(ctx, requestID, func(req *rating.Request) error {
		if req.Status == rating.StatusSubmitted {
			req.Status = rating.StatusPending
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to release rating request",
			logger.String("request_id", requestID),
			logger.Err(err),
		)
	}
}

// PendingRequests returns the user's open rating requests, skipping any
// whose window has passed.
func (s *Service) PendingRequests(ctx context.Context, userID string) ([]*rating.Request, error) {
	return s.requests.ListPendingByUser(ctx, userID, s.now())
}

// Aggregate returns the user's rolling rating summary for one role
func (s *Service) Aggregate(ctx context.Context, userID string, role rating.Role) (*rating.Aggregate, error) {
	return s.ratings.GetAggregate(ctx, userID, role)
}
