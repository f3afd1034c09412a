package database

import (
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rides (
		id               TEXT PRIMARY KEY,
		driver_id        TEXT NOT NULL,
		driver_name      TEXT NOT NULL,
		origin           TEXT NOT NULL,
		destination      TEXT NOT NULL,
		departure_time   TEXT NOT NULL,
		available_seats  INT NOT NULL,
		price            NUMERIC(10,2) NOT NULL DEFAULT 0,
		car_info         JSONB,
		status           TEXT NOT NULL,
		passengers       JSONB NOT NULL DEFAULT '[]',
		pending_requests JSONB NOT NULL DEFAULT '[]',
		waiting_list     JSONB NOT NULL DEFAULT '[]',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		completed_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rides_status ON rides (status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_rides_driver ON rides (driver_id)`,

	`CREATE TABLE IF NOT EXISTS rating_requests (
		id             TEXT PRIMARY KEY,
		ride_id        TEXT NOT NULL,
		from_user_id   TEXT NOT NULL,
		from_user_role TEXT NOT NULL,
		to_user_id     TEXT NOT NULL,
		to_user_role   TEXT NOT NULL,
		origin         TEXT NOT NULL,
		destination    TEXT NOT NULL,
		departure_time TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		expires_at     TIMESTAMPTZ NOT NULL,
		status         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rating_requests_pending
		ON rating_requests (from_user_id, status, expires_at)`,

	`CREATE TABLE IF NOT EXISTS ratings (
		request_id   TEXT PRIMARY KEY REFERENCES rating_requests (id),
		ride_id      TEXT NOT NULL,
		from_user_id TEXT NOT NULL,
		to_user_id   TEXT NOT NULL,
		rating       INT NOT NULL,
		categories   JSONB,
		comment      TEXT,
		is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS rating_aggregates (
		user_id   TEXT NOT NULL,
		role      TEXT NOT NULL,
		count     INT NOT NULL DEFAULT 0,
		average   DOUBLE PRECISION NOT NULL DEFAULT 0,
		breakdown JSONB,
		PRIMARY KEY (user_id, role)
	)`,
}

// Migrate creates the schema if it does not exist yet
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
