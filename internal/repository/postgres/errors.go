package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "vidshare/internal/errors"
)

// PostgreSQL error codes that get a domain meaning.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidTextRep      = "22P02"
)

// mapError converts a driver error into a coded domain error.
func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return apperrors.Wrap(err, apperrors.CodeAlreadyExists, fmt.Sprintf("%s: duplicate %s", operation, constraintSubject(pgErr)))
		case foreignKeyViolation:
			return apperrors.Wrap(err, apperrors.CodePreconditionNotFound, fmt.Sprintf("%s: referenced resource does not exist", operation))
		case invalidTextRep:
			return apperrors.Wrap(err, apperrors.CodeValidation, fmt.Sprintf("%s: malformed identifier", operation))
		}
	}
	return apperrors.Storef(err, "%s failed", operation)
}

func constraintSubject(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return "key"
}
