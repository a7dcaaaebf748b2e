// Package store holds the sqlx-backed repositories. Every method takes the
// queryer to run against, so the same repository works on *sqlx.DB for plain
// reads and on *sqlx.Tx inside a unit of work.
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Queryer = sqlx.ExtContext

func now() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
