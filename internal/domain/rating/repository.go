package rating

import (
	"context"
	"time"
)

// RequestRepository defines the interface for rating request data access.
// Mutate runs fn against the request and persists the result atomically with
// respect to concurrent mutations of the same request id; if fn returns an
// error nothing is persisted.
type RequestRepository interface {
	// CreateBatch stores the requests emitted by one ride completion
	CreateBatch(ctx context.Context, reqs []*Request) error

	// GetByID retrieves a request by id
	GetByID(ctx context.Context, id string) (*Request, error)

	// Mutate applies fn to the request as an atomic read-modify-write
	Mutate(ctx context.Context, id string, fn func(req *Request) error) error

	// ListPendingByUser returns the user's pending requests whose window has
	// not passed as of now, oldest first
	ListPendingByUser(ctx context.Context, userID string, now time.Time) ([]*Request, error)
}

// Repository defines the interface for submitted ratings and per-user
// aggregates. MutateAggregate serializes per (userID, role) so concurrent
// submissions never lose an increment; fn receives a zero-valued aggregate
// when the user has none yet.
type Repository interface {
	// CreateRating stores an immutable rating record
	CreateRating(ctx context.Context, r *Rating) error

	// GetAggregate retrieves a user's aggregate for one role; a user with no
	// ratings yet gets a zero-valued aggregate, not an error
	GetAggregate(ctx context.Context, userID string, role Role) (*Aggregate, error)

	// MutateAggregate applies fn to the aggregate as an atomic read-modify-write
	MutateAggregate(ctx context.Context, userID string, role Role, fn func(a *Aggregate) error) error
}
