package dto

// CarInfoPayload carries optional vehicle details on ride publication
type CarInfoPayload struct {
	Model        string `json:"model"`
	Color        string `json:"color"`
	LicensePlate string `json:"license_plate"`
}

// PublishRideRequest represents a driver publishing a new ride offer
type PublishRideRequest struct {
	DriverID       string          `json:"driver_id" binding:"required"`
	DriverName     string          `json:"driver_name" binding:"required"`
	Origin         string          `json:"origin" binding:"required"`
	Destination    string          `json:"destination" binding:"required"`
	DepartureTime  string          `json:"departure_time" binding:"required"`
	AvailableSeats int             `json:"available_seats" binding:"required,min=1,max=8"`
	Price          float64         `json:"price" binding:"min=0"`
	CarInfo        *CarInfoPayload `json:"car_info,omitempty"`
}

// RequestSeatRequest represents a passenger requesting a seat
type RequestSeatRequest struct {
	PassengerID   string `json:"passenger_id" binding:"required"`
	PassengerName string `json:"passenger_name" binding:"required"`
	Phone         string `json:"phone"`
}

// ReservationDecisionRequest represents a driver approving or rejecting a
// pending seat request
type ReservationDecisionRequest struct {
	DriverID    string `json:"driver_id" binding:"required"`
	PassengerID string `json:"passenger_id" binding:"required"`
}

// CancelSeatRequest represents a confirmed passenger cancelling, or the
// driver removing a passenger
type CancelSeatRequest struct {
	PassengerID string `json:"passenger_id" binding:"required"`
}

// CompleteRideRequest represents the driver completing the ride
type CompleteRideRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// SubmitRatingRequest represents a rating submission for a pending request
type SubmitRatingRequest struct {
	RequestID   string         `json:"request_id" binding:"required"`
	Rating      int            `json:"rating" binding:"required,min=1,max=5"`
	Categories  map[string]int `json:"categories"`
	Comment     string         `json:"comment" binding:"max=500"`
	IsAnonymous bool           `json:"is_anonymous"`
}

// SeatRequestResponse tells the passenger where their request landed
type SeatRequestResponse struct {
	RideID    string `json:"ride_id"`
	Placement string `json:"placement"`
	Message   string `json:"message"`
}

// ErrorResponse is the error envelope for all endpoints
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessResponse is a generic success envelope
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
