package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"lureingest/internal/domain"
)

// classify keeps server-side statement errors as they are and marks every
// other failure (dial, timeout, closed pool) as a connectivity failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	return domain.Unavailable(op, err)
}
