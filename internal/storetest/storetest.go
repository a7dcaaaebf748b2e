// Package storetest provides a migrated in-memory database and fixtures for
// tests of the packages built on internal/store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pharmacy/m/domain"
	"pharmacy/m/internal/database"
	"pharmacy/m/internal/migrations"
	"pharmacy/m/internal/store"
)

// Open returns a fresh, migrated in-memory SQLite database closed at the end
// of the test.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

func User(t testing.TB, db *sqlx.DB, name string, role domain.Role) domain.User {
	t.Helper()
	u := domain.User{Name: name, Email: name + "@pharmacy.test", PasswordHash: "x", Role: role}
	require.NoError(t, store.NewUsers().Create(context.Background(), db, &u))
	return u
}

func Category(t testing.TB, db *sqlx.DB, name string) domain.Category {
	t.Helper()
	c := domain.Category{Name: name}
	require.NoError(t, store.NewCategories().Create(context.Background(), db, &c))
	return c
}

// Drug creates a drug in a fresh category. price is a decimal literal such as "10.00".
func Drug(t testing.TB, db *sqlx.DB, name, price string, quantity int64) domain.Drug {
	t.Helper()
	c := Category(t, db, name+"-category")
	d := domain.Drug{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
		CategoryID: c.ID,
	}
	require.NoError(t, store.NewDrugs().Create(context.Background(), db, &d))
	return d
}

// Quantity returns the current on-hand quantity of drug id.
func Quantity(t testing.TB, db *sqlx.DB, id uuid.UUID) int64 {
	t.Helper()
	d, err := store.NewDrugs().Get(context.Background(), db, id)
	require.NoError(t, err)
	return d.Quantity
}

// CountSales returns the number of sale and sale item rows.
func CountSales(t testing.TB, db *sqlx.DB) (sales, items int) {
	t.Helper()
	require.NoError(t, db.Get(&sales, `SELECT COUNT(*) FROM sales`))
	require.NoError(t, db.Get(&items, `SELECT COUNT(*) FROM sale_items`))
	return sales, items
}

// Now returns the current UTC time truncated to microseconds.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
