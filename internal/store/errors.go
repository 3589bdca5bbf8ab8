package store

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a row does not exist. The API edge maps
	// it to 404; inside the engine it fails the current task.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for referential constraint violations, such
	// as deleting an env that still has deployments. Mapped to 409.
	ErrConflict = errors.New("conflict")
)

// DatabaseError marks transient database failures. The event bus retries on
// it; request paths surface it verbatim (503 at the edge).
type DatabaseError struct {
	Err error
}

func (e *DatabaseError) Error() string { return "database error: " + e.Err.Error() }
func (e *DatabaseError) Unwrap() error { return e.Err }

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// wrapDBError converts driver errors into the store's error kinds. Missing
// rows become ErrNotFound, constraint violations ErrConflict, anything else
// a DatabaseError.
func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation, pgUniqueViolation:
			return errors.Wrap(ErrConflict, pgErr.Detail)
		}
	}
	return &DatabaseError{Err: err}
}
