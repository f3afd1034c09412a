package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/icea-caronas/carpool-backend/internal/api/handlers"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, nrApp *newrelic.Application) {
	// Add New Relic middleware if enabled
	if nrApp != nil {
		r.Use(nrgin.Middleware(nrApp))
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// WebSocket feed
		v1.GET("/ws", h.HandleWebSocket)

		// Ride endpoints
		rides := v1.Group("/rides")
		{
			rides.POST("", h.PublishRide)
			rides.GET("", h.ListAvailableRides)
			rides.GET("/:id", h.GetRide)
			rides.GET("/history/:userId", h.GetRideHistory)
			rides.POST("/:id/request", h.RequestSeat)
			rides.POST("/:id/approve", h.ApproveRequest)
			rides.POST("/:id/reject", h.RejectRequest)
			rides.POST("/:id/cancel", h.CancelSeat)
			rides.POST("/:id/complete", h.CompleteRide)
			rides.DELETE("/:id", h.DeleteRide)
		}

		// Rating endpoints
		ratings := v1.Group("/ratings")
		{
			ratings.GET("/pending/:userId", h.GetPendingRatings)
			ratings.POST("", h.SubmitRating)
			ratings.GET("/aggregate/:userId", h.GetRatingAggregate)
		}
	}
}
