package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/icea-caronas/carpool-backend/internal/api/dto"
	"github.com/icea-caronas/carpool-backend/internal/domain/ride"
	"github.com/icea-caronas/carpool-backend/internal/service/reservation"
	"github.com/icea-caronas/carpool-backend/pkg/cache"
	"github.com/icea-caronas/carpool-backend/pkg/logger"
	"github.com/icea-caronas/carpool-backend/pkg/websocket"
)

// PublishRide handles POST /v1/rides
func (h *Handlers) PublishRide(c *gin.Context) {
	var req dto.PublishRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	rd := &ride.Ride{
		DriverID:       req.DriverID,
		DriverName:     req.DriverName,
		Origin:         req.Origin,
		Destination:    req.Destination,
		DepartureTime:  req.DepartureTime,
		AvailableSeats: req.AvailableSeats,
		Price:          req.Price,
	}
	if req.CarInfo != nil {
		rd.CarInfo = &ride.CarInfo{
			Model:        req.CarInfo.Model,
			Color:        req.CarInfo.Color,
			LicensePlate: req.CarInfo.LicensePlate,
		}
	}

	if err := h.Reservation.PublishRide(c.Request.Context(), rd); err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateRideListing(c.Request.Context())
	h.Monitor.RecordRidePublished(rd.ID, rd.AvailableSeats)
	h.Hub.Broadcast(websocket.Message{Type: "ride_published", Data: rd})

	c.JSON(http.StatusCreated, rd)
}

// ListAvailableRides handles GET /v1/rides
func (h *Handlers) ListAvailableRides(c *gin.Context) {
	ctx := c.Request.Context()

	if payload, ok := cache.GetAvailableRides(ctx, h.Redis); ok {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	rides, err := h.Rides.ListByStatus(ctx, ride.StatusAvailable)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rides == nil {
		rides = []*ride.Ride{}
	}

	payload, err := json.Marshal(gin.H{"rides": rides})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := cache.CacheAvailableRides(ctx, h.Redis, payload, h.CacheTTL.AvailableRides); err != nil {
		h.Logger.Warn("Failed to cache available rides", logger.Err(err))
	}

	c.Data(http.StatusOK, "application/json", payload)
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	rd, err := h.Rides.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rd)
}

// GetRideHistory handles GET /v1/rides/history/:userId
func (h *Handlers) GetRideHistory(c *gin.Context) {
	rides, err := h.Rides.ListCompletedByParticipant(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rides == nil {
		rides = []*ride.Ride{}
	}
	c.JSON(http.StatusOK, gin.H{"rides": rides})
}

// RequestSeat handles POST /v1/rides/:id/request
func (h *Handlers) RequestSeat(c *gin.Context) {
	rideID := c.Param("id")

	var req dto.RequestSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	placement, err := h.Reservation.RequestSeat(c.Request.Context(), rideID, req.PassengerID, reservation.PassengerInfo{
		Name:  req.PassengerName,
		Phone: req.Phone,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateRideListing(c.Request.Context())
	h.Monitor.RecordSeatRequested(rideID, string(placement))
	h.broadcastRideUpdate(c.Request.Context(), rideID, "seat_requested")

	// Joining the waiting list is a success path, not a failure; the message
	// tells the passenger which one happened.
	message := "Seat request sent to the driver"
	if placement == reservation.PlacementWaiting {
		message = "Ride is full, you joined the waiting list"
	}

	c.JSON(http.StatusOK, dto.SeatRequestResponse{
		RideID:    rideID,
		Placement: string(placement),
		Message:   message,
	})
}

// ApproveRequest handles POST /v1/rides/:id/approve
func (h *Handlers) ApproveRequest(c *gin.Context) {
	rideID := c.Param("id")

	var req dto.ReservationDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	if err := h.Reservation.ApproveRequest(c.Request.Context(), rideID, req.DriverID, req.PassengerID); err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateRideListing(c.Request.Context())
	h.Monitor.RecordReservationDecision(rideID, "approved")
	h.broadcastRideUpdate(c.Request.Context(), rideID, "request_approved")
	h.Hub.SendToUser(req.PassengerID, websocket.Message{
		Type: "reservation_approved",
		Data: gin.H{"ride_id": rideID},
	})

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Reservation approved"})
}

// RejectRequest handles POST /v1/rides/:id/reject
func (h *Handlers) RejectRequest(c *gin.Context) {
	rideID := c.Param("id")

	var req dto.ReservationDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	if err := h.Reservation.RejectRequest(c.Request.Context(), rideID, req.DriverID, req.PassengerID); err != nil {
		h.respondError(c, err)
		return
	}

	h.Monitor.RecordReservationDecision(rideID, "rejected")
	h.broadcastRideUpdate(c.Request.Context(), rideID, "request_rejected")
	h.Hub.SendToUser(req.PassengerID, websocket.Message{
		Type: "reservation_rejected",
		Data: gin.H{"ride_id": rideID},
	})

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Reservation rejected"})
}

// CancelSeat handles POST /v1/rides/:id/cancel
func (h *Handlers) CancelSeat(c *gin.Context) {
	rideID := c.Param("id")

	var req dto.CancelSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	promotedID, err := h.Reservation.CancelConfirmedSeat(c.Request.Context(), rideID, req.PassengerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateRideListing(c.Request.Context())
	h.broadcastRideUpdate(c.Request.Context(), rideID, "seat_cancelled")
	if promotedID != "" {
		h.Hub.SendToUser(promotedID, websocket.Message{
			Type: "promoted_from_waiting_list",
			Data: gin.H{"ride_id": rideID},
		})
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Seat cancelled",
		Data:    gin.H{"promoted_passenger_id": promotedID},
	})
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *Handlers) CompleteRide(c *gin.Context) {
	rideID := c.Param("id")

	var req dto.CompleteRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	requests, err := h.Reservation.CompleteRide(c.Request.Context(), rideID, req.DriverID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateRideListing(c.Request.Context())
	h.broadcastRideUpdate(c.Request.Context(), rideID, "ride_completed")

	// Each participant gets a nudge that a rating request is waiting.
	notified := make([]string, 0, len(requests))
	for _, rr := range requests {
		h.Hub.SendToUser(rr.FromUserID, websocket.Message{
			Type: "rating_requested",
			Data: rr,
		})
		notified = append(notified, rr.FromUserID)
	}
	if len(notified) > 0 {
		if err := cache.InvalidatePendingRatingCount(c.Request.Context(), h.Redis, notified...); err != nil {
			h.Logger.Warn("Failed to invalidate pending rating counts", logger.Err(err))
		}
	}

	h.Monitor.RecordRideCompleted(rideID, len(requests)/2, len(requests))

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Ride completed",
		Data:    gin.H{"rating_requests_created": len(requests)},
	})
}

// DeleteRide handles DELETE /v1/rides/:id
func (h *Handlers) DeleteRide(c *gin.Context) {
	rideID := c.Param("id")
	actingUserID := c.Query("user_id")
	if actingUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	if err := h.Reservation.DeleteRide(c.Request.Context(), rideID, actingUserID); err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateRideListing(c.Request.Context())
	h.Hub.BroadcastToRide(rideID, websocket.Message{
		Type: "ride_deleted",
		Data: gin.H{"ride_id": rideID},
	})

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Ride deleted"})
}

// broadcastRideUpdate pushes the committed ride state to feed subscribers
func (h *Handlers) broadcastRideUpdate(ctx context.Context, rideID, event string) {
	rd, err := h.Rides.GetByID(ctx, rideID)
	if err != nil {
		h.Logger.Warn("Failed to load ride for feed update",
			logger.String("ride_id", rideID),
			logger.Err(err),
		)
		return
	}
	h.Hub.BroadcastToRide(rideID, websocket.Message{Type: event, Data: rd})
}

func (h *Handlers) invalidateRideListing(ctx context.Context) {
	if err := cache.InvalidateAvailableRides(ctx, h.Redis); err != nil {
		h.Logger.Warn("Failed to invalidate available rides cache", logger.Err(err))
	}
}
