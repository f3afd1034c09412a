package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
)

// RatingRequestRepository stores rating requests in memory.
type RatingRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*rating.Request
	locks    *keyLocks
}

func NewRatingRequestRepository() *RatingRequestRepository {
	return &RatingRequestRepository{
		requests: make(map[string]*rating.Request),
		locks:    newKeyLocks(),
	}
}

func (r *RatingRequestRepository) CreateBatch(ctx context.Context, reqs []*rating.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range reqs {
		copied := *req
		r.requests[req.ID] = &copied
	}
	return nil
}

func (r *RatingRequestRepository) GetByID(ctx context.Context, id string) (*rating.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, exists := r.requests[id]
	if !exists {
		return nil, rating.ErrRequestNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *RatingRequestRepository) Mutate(ctx context.Context, id string, fn func(req *rating.Request) error) error {
	lock := r.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	stored, exists := r.requests[id]
	r.mu.RUnlock()
	if !exists {
		return rating.ErrRequestNotFound
	}

	working := *stored
	if err := fn(&working); err != nil {
		return err
	}

	r.mu.Lock()
	r.requests[id] = &working
	r.mu.Unlock()
	return nil
}

func (r *RatingRequestRepository) ListPendingByUser(ctx context.Context, userID string, now time.Time) ([]*rating.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reqs []*rating.Request
	for _, req := range r.requests {
		if req.FromUserID == userID && req.Status == rating.StatusPending && !req.IsExpired(now) {
			copied := *req
			reqs = append(reqs, &copied)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}

type aggregateKey struct {
	userID string
	role   rating.Role
}

// RatingRepository stores submitted ratings and per-user aggregates in
// memory. Aggregate mutations serialize per (user, role).
type RatingRepository struct {
	mu         sync.RWMutex
	ratings    map[string]*rating.Rating
	aggregates map[aggregateKey]*rating.Aggregate
	locks      *keyLocks
}

func NewRatingRepository() *RatingRepository {
	return &RatingRepository{
		ratings:    make(map[string]*rating.Rating),
		aggregates: make(map[aggregateKey]*rating.Aggregate),
		locks:      newKeyLocks(),
	}
}

func (r *RatingRepository) CreateRating(ctx context.Context, rt *rating.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := cloneRating(rt)
	r.ratings[rt.RequestID] = copied
	return nil
}

func (r *RatingRepository) GetAggregate(ctx context.Context, userID string, role rating.Role) (*rating.Aggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg, exists := r.aggregates[aggregateKey{userID, role}]
	if !exists {
		return &rating.Aggregate{UserID: userID, Role: role}, nil
	}
	return cloneAggregate(agg), nil
}

func (r *RatingRepository) MutateAggregate(ctx context.Context, userID string, role rating.Role, fn func(a *rating.Aggregate) error) error {
	lock := r.locks.get(userID + ":" + string(role))
	lock.Lock()
	defer lock.Unlock()

	key := aggregateKey{userID, role}

	r.mu.RLock()
	stored, exists := r.aggregates[key]
	r.mu.RUnlock()

	var working *rating.Aggregate
	if exists {
		working = cloneAggregate(stored)
	} else {
		working = &rating.Aggregate{UserID: userID, Role: role}
	}

	if err := fn(working); err != nil {
		return err
	}

	r.mu.Lock()
	r.aggregates[key] = working
	r.mu.Unlock()
	return nil
}

func cloneRating(rt *rating.Rating) *rating.Rating {
	out := *rt
	if rt.Categories != nil {
		out.Categories = make(map[rating.Category]int, len(rt.Categories))
		for k, v := range rt.Categories {
			out.Categories[k] = v
		}
	}
	return &out
}

func cloneAggregate(agg *rating.Aggregate) *rating.Aggregate {
	out := *agg
	if agg.Breakdown != nil {
		out.Breakdown = make(map[rating.Category]rating.CategoryStat, len(agg.Breakdown))
		for k, v := range agg.Breakdown {
			out.Breakdown[k] = v
		}
	}
	return &out
}
