package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/icea-caronas/carpool-backend/internal/domain/rating"
)

// RatingRequestRepository persists rating requests in PostgreSQL.
type RatingRequestRepository struct {
	db *sql.DB
}

func NewRatingRequestRepository(db *sql.DB) *RatingRequestRepository {
	return &RatingRequestRepository{db: db}
}

const requestColumns = `id, ride_id, from_user_id, from_user_role, to_user_id, to_user_role,
	origin, destination, departure_time, created_at, expires_at, status`

func (r *RatingRequestRepository) CreateBatch(ctx context.Context, reqs []*rating.Request) error {
	if len(reqs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}
	defer tx.Rollback()

	for _, req := range reqs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rating_requests (`+requestColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, req.ID, req.RideID, req.FromUserID, req.FromUserRole, req.ToUserID,
			req.ToUserRole, req.RideInfo.Origin, req.RideInfo.Destination,
			req.RideInfo.DepartureTime, req.CreatedAt, req.ExpiresAt, req.Status)
		if err != nil {
			return translateError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *RatingRequestRepository) GetByID(ctx context.Context, id string) (*rating.Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM rating_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, rating.ErrRequestNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return req, nil
}

func (r *RatingRequestRepository) Mutate(ctx context.Context, id string, fn func(req *rating.Request) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM rating_requests WHERE id = $1 FOR UPDATE`, id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return rating.ErrRequestNotFound
	}
	if err != nil {
		return translateError(err)
	}

	if err := fn(req); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE rating_requests SET status = $2 WHERE id = $1`, req.ID, req.Status)
	if err != nil {
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *RatingRequestRepository) ListPendingByUser(ctx context.Context, userID string, now time.Time) ([]*rating.Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM rating_requests
		WHERE from_user_id = $1 AND status = 'pending' AND expires_at >= $2
		ORDER BY created_at ASC
	`, userID, now)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var reqs []*rating.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, translateError(err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return reqs, nil
}

func scanRequest(row rowScanner) (*rating.Request, error) {
	var req rating.Request
	err := row.Scan(
		&req.ID, &req.RideID, &req.FromUserID, &req.FromUserRole, &req.ToUserID,
		&req.ToUserRole, &req.RideInfo.Origin, &req.RideInfo.Destination,
		&req.RideInfo.DepartureTime, &req.CreatedAt, &req.ExpiresAt, &req.Status,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// RatingRepository persists submitted ratings and per-user aggregates.
// Aggregate updates take a row lock on the (user, role) row so concurrent
// submissions never lose an increment.
type RatingRepository struct {
	db *sql.DB
}

func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

func (r *RatingRepository) CreateRating(ctx context.Context, rt *rating.Rating) error {
	var categories []byte
	if len(rt.Categories) > 0 {
		var err error
		categories, err = json.Marshal(rt.Categories)
		if err != nil {
			return fmt.Errorf("failed to encode categories: %w", err)
		}
	}

	// Keyed by request id: a retry after a partial submission failure
	// re-inserts the same rating instead of failing or duplicating it.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratings (request_id, ride_id, from_user_id, to_user_id,
			rating, categories, comment, is_anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO NOTHING
	`, rt.RequestID, rt.RideID, rt.FromUserID, rt.ToUserID, rt.Value,
		categories, rt.Comment, rt.IsAnonymous, rt.CreatedAt)
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (r *RatingRepository) GetAggregate(ctx context.Context, userID string, role rating.Role) (*rating.Aggregate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT count, average, breakdown FROM rating_aggregates
		WHERE user_id = $1 AND role = $2
	`, userID, role)

	agg := &rating.Aggregate{UserID: userID, Role: role}
	var breakdown []byte
	err := row.Scan(&agg.Count, &agg.Average, &breakdown)
	if err == sql.ErrNoRows {
		return agg, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &agg.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to decode breakdown: %w", err)
		}
	}
	return agg, nil
}

func (r *RatingRepository) MutateAggregate(ctx context.Context, userID string, role rating.Role, fn func(a *rating.Aggregate) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError(err)
	}
	defer tx.Rollback()

	// Ensure the row exists so FOR UPDATE has something to lock.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rating_aggregates (user_id, role, count, average, breakdown)
		VALUES ($1, $2, 0, 0, NULL)
		ON CONFLICT (user_id, role) DO NOTHING
	`, userID, role)
	if err != nil {
		return translateError(err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT count, average, breakdown FROM rating_aggregates
		WHERE user_id = $1 AND role = $2 FOR UPDATE
	`, userID, role)

	agg := &rating.Aggregate{UserID: userID, Role: role}
	var breakdown []byte
	if err := row.Scan(&agg.Count, &agg.Average, &breakdown); err != nil {
		return translateError(err)
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &agg.Breakdown); err != nil {
			return fmt.Errorf("failed to decode breakdown: %w", err)
		}
	}

	if err := fn(agg); err != nil {
		return err
	}

	var encoded []byte
	if len(agg.Breakdown) > 0 {
		encoded, err = json.Marshal(agg.Breakdown)
		if err != nil {
			return fmt.Errorf("failed to encode breakdown: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rating_aggregates SET count = $3, average = $4, breakdown = $5
		WHERE user_id = $1 AND role = $2
	`, userID, role, agg.Count, agg.Average, encoded)
	if err != nil {
		return translateError(err)
	}

	if err := tx.Commit(); err != nil {
		return translateError(err)
	}
	return nil
}
