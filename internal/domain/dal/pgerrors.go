package dal

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapError translates driver errors into the package sentinels. Errors that
// are already classified pass through untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFoundOrForbidden
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	var kind ConstraintKind
	switch pgErr.Code {
	case "23505":
		kind = ConstraintUnique
	case "23503":
		kind = ConstraintForeignKey
	case "23514":
		kind = ConstraintCheck
	case "23502":
		kind = ConstraintNotNull
	case "23000", "23P01":
		kind = ConstraintOther
	case "22P02":
		// invalid_text_representation, e.g. a malformed uuid reaching the driver
		return Invalid(pgErr.ColumnName, "malformed value")
	default:
		return err
	}
	return &ConstraintError{Code: pgErr.Code, Constraint: pgErr.ConstraintName, Kind: kind, cause: err}
}

func IsUniqueViolation(err error) bool {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Kind == ConstraintUnique
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
