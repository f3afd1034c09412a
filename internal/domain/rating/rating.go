package rating

import (
	"time"
	"unicode/utf8"
)

// Role identifies which side of a ride a user was on
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// Category is a rateable aspect of a ride
type Category string

const (
	CategoryPunctuality   Category = "punctuality"
	CategoryCommunication Category = "communication"
	CategoryCleanliness   Category = "cleanliness"
	CategoryBehavior      Category = "behavior"
)

// RequestStatus represents rating request status
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusSubmitted RequestStatus = "submitted"
	StatusExpired   RequestStatus = "expired"
)

const (
	MinValue          = 1
	MaxValue          = 5
	MaxCommentLength  = 500
	DefaultWindowDays = 7
)

// RideInfo is a snapshot of the rated ride, frozen at completion time
type RideInfo struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
}

// Request asks one ride participant to rate another. Created in pairs when a
// ride completes; terminal once submitted or expired.
type Request struct {
	ID           string        `json:"id"`
	RideID       string        `json:"ride_id"`
	FromUserID   string        `json:"from_user_id"`
	FromUserRole Role          `json:"from_user_role"`
	ToUserID     string        `json:"to_user_id"`
	ToUserRole   Role          `json:"to_user_role"`
	RideInfo     RideInfo      `json:"ride_info"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Status       RequestStatus `json:"status"`
}

// IsExpired reports whether the request's window has passed. Expiry is
// observed lazily at submission and query time, never by a background sweep.
func (r *Request) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Rating is one submitted rating. Immutable; written exactly once per request.
type Rating struct {
	RequestID   string           `json:"request_id"`
	RideID      string           `json:"ride_id"`
	FromUserID  string           `json:"from_user_id"`
	ToUserID    string           `json:"to_user_id"`
	Value       int              `json:"rating"`
	Categories  map[Category]int `json:"categories,omitempty"`
	Comment     string           `json:"comment,omitempty"`
	IsAnonymous bool             `json:"is_anonymous"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Validate checks value ranges and that cleanliness is only rated toward
// drivers.
func (r *Rating) Validate(toUserRole Role) error {
	if r.Value < MinValue || r.Value > MaxValue {
		return ErrInvalidValue
	}
	// Characters, not bytes: accented comments must not burn the limit
	// faster than plain ASCII.
	if utf8.RuneCountInString(r.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	for cat, val := range r.Categories {
		switch cat {
		case CategoryPunctuality, CategoryCommunication, CategoryBehavior:
		case CategoryCleanliness:
			if toUserRole != RoleDriver {
				return ErrCategoryNotApplicable
			}
		default:
			return ErrInvalidCategory
		}
		if val < MinValue || val > MaxValue {
			return ErrInvalidValue
		}
	}
	return nil
}

// CategoryStat is a running mean for one category
type CategoryStat struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Aggregate is a user's rolling rating summary for one role. Only ever
// incremented; ratings are never retracted.
type Aggregate struct {
	UserID    string                    `json:"user_id"`
	Role      Role                      `json:"role"`
	Count     int                       `json:"count"`
	Average   float64                   `json:"average"`
	Breakdown map[Category]CategoryStat `json:"breakdown,omitempty"`
}

// Apply folds a new rating into the running means. Categories absent from
// the rating leave their breakdown entries untouched.
func (a *Aggregate) Apply(r *Rating) {
	a.Average = (a.Average*float64(a.Count) + float64(r.Value)) / float64(a.Count+1)
	a.Count++

	if len(r.Categories) == 0 {
		return
	}
	if a.Breakdown == nil {
		a.Breakdown = make(map[Category]CategoryStat)
	}
	for cat, val := range r.Categories {
		stat := a.Breakdown[cat]
		stat.Average = (stat.Average*float64(stat.Count) + float64(val)) / float64(stat.Count+1)
		stat.Count++
		a.Breakdown[cat] = stat
	}
}
