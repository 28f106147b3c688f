package postgres

import (
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"consigna/internal/core/apperror"
)

// SQLSTATE codes mapped to domain errors.
const (
	SQLStateUniqueViolation     = "23505"
	SQLStateForeignKeyViolation = "23503"
	SQLStateCheckViolation      = "23514"
)

// MapError translates driver errors into AppErrors. entity and key describe
// the row the statement touched; op prefixes errors that stay unmapped.
func MapError(err error, op, entity string, key any) error {
	if err == nil {
		return nil
	}
	if pgxscan.NotFound(err) {
		return apperror.NewNotFound(entity, key)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SQLStateUniqueViolation:
			return apperror.NewDuplicate(entity, pgErr.ConstraintName, fmt.Sprint(key)).WithCause(err)
		case SQLStateForeignKeyViolation:
			return apperror.NewReferenced(entity, key, pgErr.TableName).WithCause(err)
		case SQLStateCheckViolation:
			return apperror.NewValidation(pgErr.Message).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	if apperror.IsAppError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
