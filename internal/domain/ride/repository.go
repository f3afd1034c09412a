package ride

import "context"

// Repository defines the interface for ride data access.
//
// Mutate is the only way reservation state may change: it runs fn against the
// current ride record and persists the result atomically with respect to
// concurrent mutations of the same ride id. If fn returns an error, nothing
// is persisted and the error is returned unchanged. Mutations of different
// ride ids proceed independently.
type Repository interface {
	// Create stores a newly published ride
	Create(ctx context.Context, r *Ride) error

	// GetByID retrieves a ride by id
	GetByID(ctx context.Context, id string) (*Ride, error)

	// Mutate applies fn to the ride as an atomic read-modify-write
	Mutate(ctx context.Context, id string, fn func(r *Ride) error) error

	// ListByStatus returns rides in the given status, newest first
	ListByStatus(ctx context.Context, status Status) ([]*Ride, error)

	// ListCompletedByParticipant returns completed rides the user took part
	// in as driver or confirmed passenger, newest first
	ListCompletedByParticipant(ctx context.Context, userID string) ([]*Ride, error)
}
