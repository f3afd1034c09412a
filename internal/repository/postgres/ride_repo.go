package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/icea-caronas/carpool-backend/internal/domain/ride"
)

// RideRepository persists rides in PostgreSQL. The three reservation queues
// are stored as jsonb, matching the document shape the clients consume;
// Mutate serializes writers on the ride row with SELECT ... FOR UPDATE.
type RideRepository struct {
	db *sql.DB
}

func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{db: db}
}

const rideColumns = `id, driver_id, driver_name, origin, destination, departure_time,
	available_seats, price, car_info, status, passengers, pending_requests,
	waiting_list, created_at, updated_at, completed_at`

func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	carInfo, passengers, pending, waiting, err := marshalQueues(rd)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rides (`+rideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, rd.ID, rd.DriverID, rd.DriverName, rd.Origin, rd.Destination, rd.DepartureTime,
		rd.AvailableSeats, rd.Price, carInfo, rd.Status, passengers, pending,
		waiting, rd.CreatedAt, rd.UpdatedAt, rd.CompletedAt)
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (r *RideRepository) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		return nil, ride.ErrRideNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return rd, nil
}

func (r *RideRepository) Mutate(ctx context.Context, id string, fn func(rd *ride.Ride) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id)
	rd, err := scanRide(row)
	if err == sql.ErrNoRows {
		return ride.ErrRideNotFound
	}
	if err != nil {
		return translateError(err)
	}

	if err := fn(rd); err != nil {
		return err
	}

	carInfo, passengers, pending, waiting, err := marshalQueues(rd)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rides SET
			status = $2, car_info = $3, passengers = $4, pending_requests = $5,
			waiting_list = $6, updated_at = $7, completed_at = $8
		WHERE id = $1
	`, rd.ID, rd.Status, carInfo, passengers, pending, waiting, rd.UpdatedAt, rd.CompletedAt)
	if err != nil {
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *RideRepository) ListByStatus(ctx context.Context, status ride.Status) ([]*ride.Ride, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rideColumns+` FROM rides WHERE status = $1 ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return collectRides(rows)
}

func (r *RideRepository) ListCompletedByParticipant(ctx context.Context, userID string) ([]*ride.Ride, error) {
	// Confirmed passengers live inside the passengers jsonb array.
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE status = 'completed'
		  AND (driver_id = $1 OR passengers @> $2::jsonb)
		ORDER BY created_at DESC
	`, userID, fmt.Sprintf(`[{"passenger_id": %q}]`, userID))
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return collectRides(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRide(row rowScanner) (*ride.Ride, error) {
	var rd ride.Ride
	var carInfo, passengers, pending, waiting []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&rd.ID, &rd.DriverID, &rd.DriverName, &rd.Origin, &rd.Destination,
		&rd.DepartureTime, &rd.AvailableSeats, &rd.Price, &carInfo, &rd.Status,
		&passengers, &pending, &waiting, &rd.CreatedAt, &rd.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		rd.CompletedAt = &completedAt.Time
	}
	if len(carInfo) > 0 {
		rd.CarInfo = &ride.CarInfo{}
		if err := json.Unmarshal(carInfo, rd.CarInfo); err != nil {
			return nil, fmt.Errorf("failed to decode car info: %w", err)
		}
	}
	if err := json.Unmarshal(passengers, &rd.Passengers); err != nil {
		return nil, fmt.Errorf("failed to decode passengers: %w", err)
	}
	if err := json.Unmarshal(pending, &rd.PendingRequests); err != nil {
		return nil, fmt.Errorf("failed to decode pending requests: %w", err)
	}
	if err := json.Unmarshal(waiting, &rd.WaitingList); err != nil {
		return nil, fmt.Errorf("failed to decode waiting list: %w", err)
	}
	return &rd, nil
}

func collectRides(rows *sql.Rows) ([]*ride.Ride, error) {
	var rides []*ride.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, translateError(err)
		}
		rides = append(rides, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return rides, nil
}

func marshalQueues(rd *ride.Ride) (carInfo, passengers, pending, waiting []byte, err error) {
	if rd.CarInfo != nil {
		carInfo, err = json.Marshal(rd.CarInfo)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to encode car info: %w", err)
		}
	}
	passengers, err = marshalList(rd.Passengers)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	pending, err = marshalList(rd.PendingRequests)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	waiting, err = marshalList(rd.WaitingList)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return carInfo, passengers, pending, waiting, nil
}

// marshalList always encodes a JSON array, never null, so jsonb containment
// queries behave on empty queues.
func marshalList[T any](list []T) ([]byte, error) {
	if list == nil {
		list = []T{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue: %w", err)
	}
	return data, nil
}
