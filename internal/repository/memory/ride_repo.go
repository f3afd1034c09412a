package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/icea-caronas/carpool-backend/internal/domain/ride"
)

// RideRepository stores rides in memory. Mutate serializes per ride id, so
// two passengers racing for the last seat observe each other's writes.
type RideRepository struct {
	mu    sync.RWMutex
	rides map[string]*ride.Ride
	locks *keyLocks
}

func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides: make(map[string]*ride.Ride),
		locks: newKeyLocks(),
	}
}

func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rides[rd.ID] = cloneRide(rd)
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rd, exists := r.rides[id]
	if !exists {
		return nil, ride.ErrRideNotFound
	}
	return cloneRide(rd), nil
}

// Mutate applies fn to a copy of the stored ride and swaps it in only if fn
// succeeds, so a failed operation leaves the record untouched.
func (r *RideRepository) Mutate(ctx context.Context, id string, fn func(rd *ride.Ride) error) error {
	lock := r.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	stored, exists := r.rides[id]
	r.mu.RUnlock()
	if !exists {
		return ride.ErrRideNotFound
	}

	working := cloneRide(stored)
	if err := fn(working); err != nil {
		return err
	}

	r.mu.Lock()
	r.rides[id] = working
	r.mu.Unlock()
	return nil
}

func (r *RideRepository) ListByStatus(ctx context.Context, status ride.Status) ([]*ride.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rides []*ride.Ride
	for _, rd := range r.rides {
		if rd.Status == status {
			rides = append(rides, cloneRide(rd))
		}
	}
	sortByCreatedAtDesc(rides)
	return rides, nil
}

func (r *RideRepository) ListCompletedByParticipant(ctx context.Context, userID string) ([]*ride.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rides []*ride.Ride
	for _, rd := range r.rides {
		if rd.Status == ride.StatusCompleted && rd.IsParticipant(userID) {
			rides = append(rides, cloneRide(rd))
		}
	}
	sortByCreatedAtDesc(rides)
	return rides, nil
}

func sortByCreatedAtDesc(rides []*ride.Ride) {
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].CreatedAt.After(rides[j].CreatedAt)
	})
}

func cloneRide(rd *ride.Ride) *ride.Ride {
	out := *rd
	out.Passengers = append([]ride.Passenger(nil), rd.Passengers...)
	out.PendingRequests = append([]ride.PendingRequest(nil), rd.PendingRequests...)
	out.WaitingList = append([]ride.WaitingEntry(nil), rd.WaitingList...)
	if rd.CarInfo != nil {
		car := *rd.CarInfo
		out.CarInfo = &car
	}
	if rd.CompletedAt != nil {
		at := *rd.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}
