package ride

import (
	"regexp"
	"time"
)

// Status represents ride status
type Status string

const (
	StatusAvailable Status = "available"
	StatusCompleted Status = "completed"
	StatusDeleted   Status = "deleted"
)

const (
	MinSeats = 1
	MaxSeats = 8
)

var departureTimeRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// CarInfo holds optional vehicle details shown to passengers
type CarInfo struct {
	Model        string `json:"model,omitempty"`
	Color        string `json:"color,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

// Passenger is a confirmed seat holder
type Passenger struct {
	PassengerID   string    `json:"passenger_id"`
	PassengerName string    `json:"passenger_name"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// PendingRequest is a seat request awaiting driver approval
type PendingRequest struct {
	PassengerID   string    `json:"passenger_id"`
	PassengerName string    `json:"passenger_name"`
	Phone         string    `json:"phone,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

// WaitingEntry is an overflow request queued until a seat frees up
type WaitingEntry struct {
	PassengerID   string    `json:"passenger_id"`
	PassengerName string    `json:"passenger_name"`
	RequestedAt   time.Time `json:"requested_at"`
}

// Ride represents a published carpool offer and its reservation state.
// Passengers, PendingRequests and WaitingList are ordered; a passenger id
// appears in at most one of the three at any time, and never equals DriverID.
type Ride struct {
	ID              string           `json:"id"`
	DriverID        string           `json:"driver_id"`
	DriverName      string           `json:"driver_name"`
	Origin          string           `json:"origin"`
	Destination     string           `json:"destination"`
	DepartureTime   string           `json:"departure_time"`
	AvailableSeats  int              `json:"available_seats"`
	Price           float64          `json:"price"`
	CarInfo         *CarInfo         `json:"car_info,omitempty"`
	Status          Status           `json:"status"`
	Passengers      []Passenger      `json:"passengers"`
	PendingRequests []PendingRequest `json:"pending_requests"`
	WaitingList     []WaitingEntry   `json:"waiting_list"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// Validate validates a ride at publish time
func (r *Ride) Validate() error {
	if r.DriverID == "" {
		return ErrInvalidDriver
	}
	if r.Origin == "" || r.Destination == "" {
		return ErrInvalidRoute
	}
	if !departureTimeRe.MatchString(r.DepartureTime) {
		return ErrInvalidDepartureTime
	}
	if r.AvailableSeats < MinSeats || r.AvailableSeats > MaxSeats {
		return ErrInvalidSeatCount
	}
	if r.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// IsAvailable reports whether reservation operations are still permitted
func (r *Ride) IsAvailable() bool {
	return r.Status == StatusAvailable
}

// HasParticipant reports whether the passenger id is already present in any
// of the three reservation sets.
func (r *Ride) HasParticipant(passengerID string) bool {
	for _, p := range r.Passengers {
		if p.PassengerID == passengerID {
			return true
		}
	}
	for _, p := range r.PendingRequests {
		if p.PassengerID == passengerID {
			return true
		}
	}
	for _, w := range r.WaitingList {
		if w.PassengerID == passengerID {
			return true
		}
	}
	return false
}

// IsParticipant reports whether the user took part in the ride as driver or
// confirmed passenger. Used for ride history views.
func (r *Ride) IsParticipant(userID string) bool {
	if r.DriverID == userID {
		return true
	}
	for _, p := range r.Passengers {
		if p.PassengerID == userID {
			return true
		}
	}
	return false
}

// SeatsTaken returns the number of slots consumed by confirmed passengers
// plus requests pending approval.
func (r *Ride) SeatsTaken() int {
	return len(r.Passengers) + len(r.PendingRequests)
}

// HasCapacity reports whether a new request still fits a seat slot, i.e.
// whether it belongs in PendingRequests rather than the waiting list.
func (r *Ride) HasCapacity() bool {
	return r.SeatsTaken() < r.AvailableSeats
}
