package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/icea-caronas/carpool-backend/internal/api/dto"
	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
	ratingsvc "github.com/icea-caronas/carpool-backend/internal/service/rating"
	"github.com/icea-caronas/carpool-backend/pkg/cache"
	"github.com/icea-caronas/carpool-backend/pkg/logger"
)

// GetPendingRatings handles GET /v1/ratings/pending/:userId
func (h *Handlers) GetPendingRatings(c *gin.Context) {
	userID := c.Param("userId")

	requests, err := h.Ratings.PendingRequests(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if requests == nil {
		requests = []*rating.Request{}
	}

	if err := cache.CachePendingRatingCount(c.Request.Context(), h.Redis, userID, len(requests), h.CacheTTL.PendingRatings); err != nil {
		h.Logger.Warn("Failed to cache pending rating count", logger.Err(err))
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests, "count": len(requests)})
}

// SubmitRating handles POST /v1/ratings
func (h *Handlers) SubmitRating(c *gin.Context) {
	var req dto.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	var categories map[rating.Category]int
	if len(req.Categories) > 0 {
		categories = make(map[rating.Category]int, len(req.Categories))
		for name, value := range req.Categories {
			categories[rating.Category(name)] = value
		}
	}

	rt, toRole, err := h.Ratings.SubmitRating(c.Request.Context(), req.RequestID, ratingsvc.Submission{
		Value:       req.Rating,
		Categories:  categories,
		Comment:     req.Comment,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := cache.InvalidatePendingRatingCount(c.Request.Context(), h.Redis, rt.FromUserID); err != nil {
		h.Logger.Warn("Failed to invalidate pending rating count", logger.Err(err))
	}

	h.Monitor.RecordRatingSubmitted(string(toRole), rt.Value)

	c.JSON(http.StatusCreated, dto.SuccessResponse{Message: "Rating submitted"})
}

// GetRatingAggregate handles GET /v1/ratings/aggregate/:userId
func (h *Handlers) GetRatingAggregate(c *gin.Context) {
	userID := c.Param("userId")
	ctx := c.Request.Context()

	asDriver, err := h.Ratings.Aggregate(ctx, userID, rating.RoleDriver)
	if err != nil {
		h.respondError(c, err)
		return
	}
	asPassenger, err := h.Ratings.Aggregate(ctx, userID, rating.RolePassenger)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"as_driver":    asDriver,
		"as_passenger": asPassenger,
	})
}
