package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code, so wrapped copies created with WithCause
// still compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

// WithCause returns a copy of the error carrying the underlying cause
func (e *AppError) WithCause(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Err:     err,
	}
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors

// BadRequest creates a 400 error
func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Forbidden creates a 403 error
func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// Gone creates a 410 error
func Gone(message string, err error) *AppError {
	return &AppError{
		Code:    "GONE",
		Message: message,
		Status:  http.StatusGone,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error
func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// Domain-specific errors
//
// Validation failures are terminal for the calling operation and surfaced to
// the user with an actionable message. ErrConflict and ErrStoreUnavailable
// are transient; callers retry them with backoff before giving up.

var (
	ErrRideNotFound     = NewAppError("RIDE_NOT_FOUND", "Ride not found", http.StatusNotFound, nil)
	ErrRideNotAvailable = NewAppError("RIDE_NOT_AVAILABLE", "Ride is no longer accepting reservations", http.StatusConflict, nil)
	ErrSelfBooking      = NewAppError("SELF_BOOKING", "You cannot request a seat on your own ride", http.StatusBadRequest, nil)
	ErrDuplicateRequest = NewAppError("DUPLICATE_REQUEST", "You already requested a seat on this ride", http.StatusConflict, nil)
	ErrNotDriver        = NewAppError("NOT_DRIVER", "Only the driver can perform this action", http.StatusForbidden, nil)
	ErrRequestNotFound  = NewAppError("REQUEST_NOT_FOUND", "Seat request not found", http.StatusNotFound, nil)
	ErrSeatsFull        = NewAppError("SEATS_FULL", "All seats on this ride are taken", http.StatusConflict, nil)
	ErrPermissionDenied = NewAppError("PERMISSION_DENIED", "You are not allowed to delete this ride", http.StatusForbidden, nil)

	ErrAlreadySubmitted = NewAppError("ALREADY_SUBMITTED", "A rating was already submitted for this request", http.StatusConflict, nil)
	ErrRatingExpired    = NewAppError("RATING_EXPIRED", "The rating window for this ride has closed", http.StatusGone, nil)

	ErrConflict         = NewAppError("CONFLICT", "The operation conflicted with a concurrent update, please retry", http.StatusConflict, nil)
	ErrStoreUnavailable = NewAppError("STORE_UNAVAILABLE", "The data store is temporarily unavailable, please retry", http.StatusServiceUnavailable, nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// IsRetryable reports whether the caller should retry with backoff
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == ErrConflict.Code || appErr.Code == ErrStoreUnavailable.Code
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
