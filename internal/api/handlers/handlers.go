package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
	"github.com/icea-caronas/carpool-backend/internal/domain/ride"
	ratingsvc "github.com/icea-caronas/carpool-backend/internal/service/rating"
	"github.com/icea-caronas/carpool-backend/internal/service/reservation"
	apperrors "github.com/icea-caronas/carpool-backend/pkg/errors"
	"github.com/icea-caronas/carpool-backend/pkg/logger"
	"github.com/icea-caronas/carpool-backend/pkg/monitoring"
	"github.com/icea-caronas/carpool-backend/pkg/websocket"
)

// CacheTTLs controls how long list views stay cached in Redis
type CacheTTLs struct {
	AvailableRides time.Duration
	PendingRatings time.Duration
}

// WSBuffers sizes the feed upgrader's connection buffers
type WSBuffers struct {
	ReadSize  int
	WriteSize int
}

// Handlers holds all handler dependencies
type Handlers struct {
	Reservation *reservation.Engine
	Ratings     *ratingsvc.Service
	Rides       ride.Repository
	Redis       *redis.Client
	Logger      *logger.Logger
	Hub         *websocket.Hub
	Monitor     *monitoring.NewRelicApp
	CacheTTL    CacheTTLs
	WS          WSBuffers
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine *reservation.Engine,
	ratings *ratingsvc.Service,
	rides ride.Repository,
	redisClient *redis.Client,
	log *logger.Logger,
	hub *websocket.Hub,
	monitor *monitoring.NewRelicApp,
	cacheTTL CacheTTLs,
	ws WSBuffers,
) *Handlers {
	return &Handlers{
		Reservation: engine,
		Ratings:     ratings,
		Rides:       rides,
		Redis:       redisClient,
		Logger:      log,
		Hub:         hub,
		Monitor:     monitor,
		CacheTTL:    cacheTTL,
		WS:          ws,
	}
}

// respondError translates a service error into the HTTP error envelope.
// Domain sentinels map onto the reservation/rating error taxonomy; anything
// unrecognized is a 500.
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := translateDomainError(err)
	if appErr.Status >= 500 {
		h.Logger.Error("Request failed", logger.Err(err))
	}
	c.JSON(appErr.Status, gin.H{"code": appErr.Code, "message": appErr.Message})
}

func translateDomainError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ride.ErrRideNotFound):
		return apperrors.ErrRideNotFound
	case errors.Is(err, ride.ErrRideNotAvailable):
		return apperrors.ErrRideNotAvailable
	case errors.Is(err, ride.ErrSelfBooking):
		return apperrors.ErrSelfBooking
	case errors.Is(err, ride.ErrDuplicateRequest):
		return apperrors.ErrDuplicateRequest
	case errors.Is(err, ride.ErrNotDriver):
		return apperrors.ErrNotDriver
	case errors.Is(err, ride.ErrRequestNotFound), errors.Is(err, ride.ErrPassengerNotFound):
		return apperrors.ErrRequestNotFound
	case errors.Is(err, ride.ErrSeatsFull):
		return apperrors.ErrSeatsFull
	case errors.Is(err, ride.ErrPermissionDenied):
		return apperrors.ErrPermissionDenied
	case errors.Is(err, rating.ErrRequestNotFound):
		return apperrors.ErrRequestNotFound
	case errors.Is(err, rating.ErrAlreadySubmitted):
		return apperrors.ErrAlreadySubmitted
	case errors.Is(err, rating.ErrRequestExpired):
		return apperrors.ErrRatingExpired
	case errors.Is(err, ride.ErrInvalidDriver),
		errors.Is(err, ride.ErrInvalidRoute),
		errors.Is(err, ride.ErrInvalidDepartureTime),
		errors.Is(err, ride.ErrInvalidSeatCount),
		errors.Is(err, ride.ErrInvalidPrice),
		errors.Is(err, rating.ErrInvalidValue),
		errors.Is(err, rating.ErrInvalidCategory),
		errors.Is(err, rating.ErrCategoryNotApplicable),
		errors.Is(err, rating.ErrCommentTooLong):
		return apperrors.BadRequest(err.Error(), err)
	default:
		return apperrors.GetAppError(err)
	}
}
