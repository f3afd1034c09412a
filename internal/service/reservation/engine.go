package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
	"github.com/icea-caronas/carpool-backend/internal/domain/ride"
	"github.com/icea-caronas/carpool-backend/pkg/logger"
)

// Placement tells the caller where a seat request landed
type Placement string

const (
	PlacementPending Placement = "pending"
	PlacementWaiting Placement = "waiting"
)

// PassengerInfo carries the requesting passenger's contact details
type PassengerInfo struct {
	Name  string
	Phone string
}

// PermissionChecker answers whether a user holds the ride-deletion
// privilege. The admin/moderator designation lives outside this engine.
type PermissionChecker interface {
	CanDeleteRides(ctx context.Context, userID string) bool
}

// Config holds reservation engine configuration
type Config struct {
	RatingWindow time.Duration // how long rating requests stay open after completion
}

// Engine applies reservation operations to rides. Every public method runs
// as one atomic mutation of a single ride, so concurrent requests for the
// same ride serialize and the seat invariants hold at every commit:
// len(passengers) <= availableSeats, and a passenger id belongs to at most
// one of passengers, pendingRequests, waitingList.
type Engine struct {
	rides   ride.Repository
	ratings rating.RequestRepository
	perms   PermissionChecker
	logger  *logger.Logger
	config  Config
	now     func() time.Time
}

// NewEngine creates a new reservation engine
func NewEngine(rides ride.Repository, ratings rating.RequestRepository, perms PermissionChecker, log *logger.Logger, config Config) *Engine {
	if config.RatingWindow <= 0 {
		config.RatingWindow = rating.DefaultWindowDays * 24 * time.Hour
	}
	return &Engine{
		rides:   rides,
		ratings: ratings,
		perms:   perms,
		logger:  log,
		config:  config,
		now:     time.Now,
	}
}

// PublishRide validates and stores a new ride offer
func (e *Engine) PublishRide(ctx context.Context, rd *ride.Ride) error {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	rd.Status = ride.StatusAvailable
	rd.Passengers = []ride.Passenger{}
	rd.PendingRequests = []ride.PendingRequest{}
	rd.WaitingList = []ride.WaitingEntry{}
	now := e.now()
	rd.CreatedAt = now
	rd.UpdatedAt = now

	if err := rd.Validate(); err != nil {
		return err
	}

	if err := e.rides.Create(ctx, rd); err != nil {
		return err
	}

	e.logger.Info("Ride published",
		logger.String("ride_id", rd.ID),
		logger.String("driver_id", rd.DriverID),
		logger.Int("available_seats", rd.AvailableSeats),
	)
	return nil
}

// RequestSeat places a passenger's request on the ride. When the pending
// queue plus confirmed passengers still fit the seat count the request goes
// to pendingRequests, otherwise to the waiting list. Joining the waiting
// list is a success, not an error; the returned placement tells the caller
// which message to show.
func (e *Engine) RequestSeat(ctx context.Context, rideID, passengerID string, info PassengerInfo) (Placement, error) {
	var placement Placement

	err := e.rides.Mutate(ctx, rideID, func(rd *ride.Ride) error {
		if !rd.IsAvailable() {
			return ride.ErrRideNotAvailable
		}
		if passengerID == rd.DriverID {
			return ride.ErrSelfBooking
		}
		if rd.HasParticipant(passengerID) {
			return ride.ErrDuplicateRequest
		}

		now := e.now()
		if rd.HasCapacity() {
			rd.PendingRequests = append(rd.PendingRequests, ride.PendingRequest{
				PassengerID:   passengerID,
				PassengerName: info.Name,
				Phone:         info.Phone,
				RequestedAt:   now,
			})
			placement = PlacementPending
		} else {
			rd.WaitingList = append(rd.WaitingList, ride.WaitingEntry{
				PassengerID:   passengerID,
				PassengerName: info.Name,
				RequestedAt:   now,
			})
			placement = PlacementWaiting
		}
		rd.UpdatedAt = now
		return nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Info("Seat requested",
		logger.String("ride_id", rideID),
		logger.String("passenger_id", passengerID),
		logger.String("placement", string(placement)),
	)
	return placement, nil
}

// ApproveRequest moves a pending request into the confirmed passengers.
// Approval consumes a slot already reserved by the pending request, so the
// waiting list is not touched.
func (e *Engine) ApproveRequest(ctx context.Context, rideID, driverID, passengerID string) error {
	err := e.rides.Mutate(ctx, rideID, func(rd *ride.Ride) error {
		if !rd.IsAvailable() {
			return ride.ErrRideNotAvailable
		}
		if driverID != rd.DriverID {
			return ride.ErrNotDriver
		}

		idx := findPending(rd, passengerID)
		if idx < 0 {
			return ride.ErrRequestNotFound
		}
		if len(rd.Passengers) >= rd.AvailableSeats {
			// Should not happen while the invariant holds.
			return ride.ErrSeatsFull
		}

		req := rd.PendingRequests[idx]
		rd.PendingRequests = append(rd.PendingRequests[:idx], rd.PendingRequests[idx+1:]...)
		now := e.now()
		rd.Passengers = append(rd.Passengers, ride.Passenger{
			PassengerID:   req.PassengerID,
			PassengerName: req.PassengerName,
			ConfirmedAt:   now,
		})
		rd.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Seat request approved",
		logger.String("ride_id", rideID),
		logger.String("passenger_id", passengerID),
	)
	return nil
}

// RejectRequest removes a pending request. The waiting list is untouched:
// a rejection does not free a confirmed seat.
func (e *Engine) RejectRequest(ctx context.Context, rideID, driverID, passengerID string) error {
	err := e.rides.Mutate(ctx, rideID, func(rd *ride.Ride) error {
		if !rd.IsAvailable() {
			return ride.ErrRideNotAvailable
		}
		if driverID != rd.DriverID {
			return ride.ErrNotDriver
		}

		idx := findPending(rd, passengerID)
		if idx < 0 {
			return ride.ErrRequestNotFound
		}
		rd.PendingRequests = append(rd.PendingRequests[:idx], rd.PendingRequests[idx+1:]...)
		rd.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Seat request rejected",
		logger.String("ride_id", rideID),
		logger.String("passenger_id", passengerID),
	)
	return nil
}

// CancelConfirmedSeat removes a confirmed passenger and promotes the head of
// the waiting list into pendingRequests. The promoted passenger still needs
// driver approval; a cancellation frees a slot, not a seat. Returns the
// promoted passenger id, if any, so the caller can notify them.
func (e *Engine) CancelConfirmedSeat(ctx context.Context, rideID, passengerID string) (promotedID string, err error) {
	err = e.rides.Mutate(ctx, rideID, func(rd *ride.Ride) error {
		if !rd.IsAvailable() {
			return ride.ErrRideNotAvailable
		}

		idx := -1
		for i, p := range rd.Passengers {
			if p.PassengerID == passengerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ride.ErrPassengerNotFound
		}

		rd.Passengers = append(rd.Passengers[:idx], rd.Passengers[idx+1:]...)

		if len(rd.WaitingList) > 0 {
			head := rd.WaitingList[0]
			rd.WaitingList = rd.WaitingList[1:]
			rd.PendingRequests = append(rd.PendingRequests, ride.PendingRequest{
				PassengerID:   head.PassengerID,
				PassengerName: head.PassengerName,
				RequestedAt:   head.RequestedAt,
			})
			promotedID = head.PassengerID
		}
		rd.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Info("Confirmed seat cancelled",
		logger.String("ride_id", rideID),
		logger.String("passenger_id", passengerID),
		logger.String("promoted_passenger_id", promotedID),
	)
	return promotedID, nil
}

// DeleteRide marks a ride deleted. Only the driver or a user with the
// ride-deletion privilege may do this; every later operation on the id
// fails as not available.
func (e *Engine) DeleteRide(ctx context.Context, rideID, actingUserID string) error {
	err := e.rides.Mutate(ctx, rideID, func(rd *ride.Ride) error {
		if rd.Status == ride.StatusDeleted {
			return ride.ErrRideNotAvailable
		}
		if actingUserID != rd.DriverID && !e.perms.CanDeleteRides(ctx, actingUserID) {
			return ride.ErrPermissionDenied
		}
		rd.Status = ride.StatusDeleted
		rd.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("Ride deleted",
		logger.String("ride_id", rideID),
		logger.String("acting_user_id", actingUserID),
	)
	return nil
}

// CompleteRide freezes the ride and creates the bidirectional rating
// requests for every confirmed passenger. A second call on the same ride
// fails inside the mutation before any requests are created, so completion
// is idempotent with respect to rating requests.
func (e *Engine) CompleteRide(ctx context.Context, rideID, driverID string) ([]*rating.Request, error) {
	var requests []*rating.Request

	err := e.rides.Mutate(ctx, rideID, func(rd *ride.Ride) error {
		if !rd.IsAvailable() {
			return ride.ErrRideNotAvailable
		}
		if driverID != rd.DriverID {
			return ride.ErrNotDriver
		}

		now := e.now()
		rd.Status = ride.StatusCompleted
		rd.CompletedAt = &now
		rd.UpdatedAt = now

		requests = e.buildRatingRequests(rd, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(requests) > 0 {
		if err := e.ratings.CreateBatch(ctx, requests); err != nil {
			e.logger.Error("Failed to create rating requests",
				logger.String("ride_id", rideID),
				logger.Err(err),
			)
			return nil, err
		}
	}

	e.logger.Info("Ride completed",
		logger.String("ride_id", rideID),
		logger.Int("rating_requests", len(requests)),
	)
	return requests, nil
}

// buildRatingRequests emits one driver->passenger and one passenger->driver
// request per confirmed passenger.
func (e *Engine) buildRatingRequests(rd *ride.Ride, now time.Time) []*rating.Request {
	info := rating.RideInfo{
		Origin:        rd.Origin,
		Destination:   rd.Destination,
		DepartureTime: rd.DepartureTime,
	}
	expires := now.Add(e.config.RatingWindow)

	requests := make([]*rating.Request, 0, 2*len(rd.Passengers))
	for _, p := range rd.Passengers {
		requests = append(requests, &rating.Request{
			ID:           uuid.NewString(),
			RideID:       rd.ID,
			FromUserID:   rd.DriverID,
			FromUserRole: rating.RoleDriver,
			ToUserID:     p.PassengerID,
			ToUserRole:   rating.RolePassenger,
			RideInfo:     info,
			CreatedAt:    now,
			ExpiresAt:    expires,
			Status:       rating.StatusPending,
		}, &rating.Request{
			ID:           uuid.NewString(),
			RideID:       rd.ID,
			FromUserID:   p.PassengerID,
			FromUserRole: rating.RolePassenger,
			ToUserID:     rd.DriverID,
			ToUserRole:   rating.RoleDriver,
			RideInfo:     info,
			CreatedAt:    now,
			ExpiresAt:    expires,
			Status:       rating.StatusPending,
		})
	}
	return requests
}

func findPending(rd *ride.Ride, passengerID string) int {
	for i, req := range rd.PendingRequests {
		if req.PassengerID == passengerID {
			return i
		}
	}
	return -1
}
