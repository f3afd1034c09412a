package rating

import "errors"

var (
	ErrRequestNotFound       = errors.New("rating request not found")
	ErrAlreadySubmitted      = errors.New("rating already submitted for this request")
	ErrRequestExpired        = errors.New("rating request has expired")
	ErrInvalidValue          = errors.New("rating values must be between 1 and 5")
	ErrInvalidCategory       = errors.New("unknown rating category")
	ErrCategoryNotApplicable = errors.New("cleanliness only applies when rating a driver")
	ErrCommentTooLong        = errors.New("comment must be at most 500 characters")
)
