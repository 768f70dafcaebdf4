package dbx

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for the integrity constraints the schema relies on.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err comes from a unique index, such as
// a duplicate case-insensitive user or group name.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsForeignKeyViolation reports whether err comes from a restrict foreign
// key, such as deleting a group that entries still reference.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, codeForeignKeyViolation)
}

// ConstraintName returns the violated constraint, or "" for other errors.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// ClassifyWriteError maps integrity violations to common.ErrorConflict,
// naming the constraint, and wraps anything else as a database error.
func ClassifyWriteError(err error) error {
	if IsUniqueViolation(err) || IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %s", common.ErrorConflict, ConstraintName(err))
	}
	return fmt.Errorf("db error: %w", err)
}
