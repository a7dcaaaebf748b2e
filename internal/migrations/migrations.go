package migrations

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// column types that differ between PostgreSQL and SQLite.
type dialect struct {
	id    string
	money string
	stamp string
}

var (
	postgres = dialect{id: "UUID", money: "NUMERIC(18,2)", stamp: "TIMESTAMPTZ"}
	// SQLite keeps money as text so values never pass through a float.
	sqlite = dialect{id: "TEXT", money: "TEXT", stamp: "DATETIME"}
)

func dialectFor(driver string) dialect {
	if driver == "sqlite" {
		return sqlite
	}
	return postgres
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{id}} PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at {{stamp}} NOT NULL,
		updated_at {{stamp}} NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id {{id}} PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at {{stamp}} NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS drugs (
		id {{id}} PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		price {{money}} NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		category_id {{id}} NOT NULL REFERENCES categories(id),
		created_at {{stamp}} NOT NULL,
		updated_at {{stamp}} NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sales (
		id {{id}} PRIMARY KEY,
		cashier_id {{id}} NOT NULL,
		customer TEXT NOT NULL DEFAULT '',
		total_amount {{money}} NOT NULL,
		created_at {{stamp}} NOT NULL,
		updated_at {{stamp}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS sales_created_at_idx ON sales (created_at);`,
	// drug_id carries no foreign key: drugs may be deleted while their
	// historical sale lines remain.
	`CREATE TABLE IF NOT EXISTS sale_items (
		id {{id}} PRIMARY KEY,
		sale_id {{id}} NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		drug_id {{id}} NOT NULL,
		position INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price_per_unit {{money}} NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS sale_items_sale_id_idx ON sale_items (sale_id);`,
}

// Statements returns the schema rendered for the given driver.
func Statements(driver string) []string {
	d := dialectFor(driver)
	r := strings.NewReplacer("{{id}}", d.id, "{{money}}", d.money, "{{stamp}}", d.stamp)
	out := make([]string, len(schema))
	for i, stmt := range schema {
		out[i] = r.Replace(stmt)
	}
	return out
}

// Run creates the database schema required for the POS backend.
func Run(db *sqlx.DB) error {
	for _, stmt := range Statements(db.DriverName()) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
