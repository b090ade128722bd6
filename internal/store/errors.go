package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres SQLSTATE for a uniqueness-constraint
// violation.
const uniqueViolation = "23505"

// IsDuplicate returns true only for a uniqueness-constraint violation from
// either backend. Every ingestion path inserts optimistically and treats
// "already exists" as success, avoiding a read-then-write race; all other
// store errors propagate as failures.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}

	// modernc.org/sqlite surfaces constraint violations as
	// "constraint failed: UNIQUE constraint failed: <table>.<col>".
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
