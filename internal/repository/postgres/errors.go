package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	apperrors "github.com/icea-caronas/carpool-backend/pkg/errors"
)

// translateError maps low-level store failures onto the retryable error
// kinds the callers understand. Anything else passes through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return apperrors.ErrConflict.WithCause(err)
		case "53300", "57P03": // too_many_connections, cannot_connect_now
			return apperrors.ErrStoreUnavailable.WithCause(err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrStoreUnavailable.WithCause(err)
	}

	return err
}
