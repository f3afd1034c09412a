package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		// Return disabled app
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// Custom metric helpers

// RecordRidePublished records a driver publishing a new ride
func (nr *NewRelicApp) RecordRidePublished(rideID string, seats int) {
	nr.RecordCustomEvent("RidePublished", map[string]interface{}{
		"ride_id": rideID,
		"seats":   seats,
	})
}

// RecordSeatRequested records a seat request and where it landed
func (nr *NewRelicApp) RecordSeatRequested(rideID string, placement string) {
	nr.RecordCustomEvent("SeatRequested", map[string]interface{}{
		"ride_id":   rideID,
		"placement": placement,
	})
	nr.RecordCustomMetric(fmt.Sprintf("custom/reservation/placement/%s", placement), 1)
}

// RecordReservationDecision records a driver approving or rejecting a request
func (nr *NewRelicApp) RecordReservationDecision(rideID string, decision string) {
	nr.RecordCustomEvent("ReservationDecision", map[string]interface{}{
		"ride_id":  rideID,
		"decision": decision,
	})
}

// RecordRideCompleted records ride completion
func (nr *NewRelicApp) RecordRideCompleted(rideID string, passengers int, ratingRequests int) {
	nr.RecordCustomEvent("RideCompleted", map[string]interface{}{
		"ride_id":         rideID,
		"passengers":      passengers,
		"rating_requests": ratingRequests,
	})
}

// RecordRatingSubmitted records a submitted rating
func (nr *NewRelicApp) RecordRatingSubmitted(role string, value int) {
	nr.RecordCustomEvent("RatingSubmitted", map[string]interface{}{
		"to_user_role": role,
		"value":        value,
	})
	nr.RecordCustomMetric(fmt.Sprintf("custom/rating/%s", role), float64(value))
}

// RecordRedisPoolStats records Redis pool statistics
func (nr *NewRelicApp) RecordRedisPoolStats(stats map[string]interface{}) {
	if hits, ok := stats["hits"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/cache_hits", float64(hits))
	}
	if misses, ok := stats["misses"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/cache_misses", float64(misses))
	}
	if timeouts, ok := stats["timeouts"].(uint32); ok {
		nr.RecordCustomMetric("custom/redis/timeouts", float64(timeouts))
	}
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}
