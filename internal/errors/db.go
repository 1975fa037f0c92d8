package errors

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// keyField pulls the column out of a unique violation detail such as
// "Key (email)=(a@example.com) already exists.".
var keyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

const msgDBUnavailable = "role database is unavailable"

// MapDBError turns pgx and Postgres failures into AppErrors. Errors it does
// not recognize are returned unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "role database query timed out")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "role database query canceled")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "no such role record")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromPgError(pgErr)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(err, ErrCodeUpstream, msgDBUnavailable)
	}
	return err
}

func fromPgError(pgErr *pgconn.PgError) *AppError {
	code := pgErr.Code
	switch {
	case code == pgerrcode.UniqueViolation:
		e := Wrap(pgErr, ErrCodeConflict, "a role record for this email already exists")
		e.Field = pgErr.ColumnName
		if e.Field == "" {
			if m := keyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
				e.Field = m[1]
			}
		}
		return e
	case code == pgerrcode.CheckViolation, code == pgerrcode.NotNullViolation,
		code == pgerrcode.InvalidTextRepresentation:
		e := Wrap(pgErr, ErrCodeValidation, "role record rejected by the database")
		e.Field = pgErr.ColumnName
		return e
	case pgerrcode.IsConnectionException(code),
		pgerrcode.IsInsufficientResources(code),
		code == pgerrcode.AdminShutdown,
		code == pgerrcode.CannotConnectNow:
		return Wrap(pgErr, ErrCodeUpstream, msgDBUnavailable)
	case code == pgerrcode.QueryCanceled:
		return Wrap(pgErr, ErrCodeTimeout, "role database query timed out")
	default:
		return Wrap(pgErr, ErrCodeInternal, "role database error")
	}
}
