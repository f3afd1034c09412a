package ride

import "errors"

var (
	ErrRideNotFound      = errors.New("ride not found")
	ErrRideNotAvailable  = errors.New("ride is not available")
	ErrSelfBooking       = errors.New("driver cannot request a seat on own ride")
	ErrDuplicateRequest  = errors.New("passenger already requested this ride")
	ErrNotDriver         = errors.New("user is not the driver of this ride")
	ErrRequestNotFound   = errors.New("seat request not found")
	ErrPassengerNotFound = errors.New("passenger not found on this ride")
	ErrSeatsFull         = errors.New("all seats are taken")
	ErrPermissionDenied  = errors.New("user is not allowed to delete this ride")

	ErrInvalidDriver        = errors.New("invalid driver id")
	ErrInvalidRoute         = errors.New("origin and destination are required")
	ErrInvalidDepartureTime = errors.New("departure time must be HH:MM")
	ErrInvalidSeatCount     = errors.New("available seats must be between 1 and 8")
	ErrInvalidPrice         = errors.New("price must not be negative")
)
