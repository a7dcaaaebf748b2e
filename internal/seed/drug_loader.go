package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmacy/m/domain"
	"pharmacy/m/internal/database"
	"pharmacy/m/internal/store"
)

// LoadDrugs ingests a drug catalog CSV, ignoring drugs whose name already exists.
func LoadDrugs(ctx context.Context, db *sqlx.DB, csvPath string, log *zap.Logger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open drug catalog %s: %w", csvPath, err)
	}
	defer file.Close()
	return Load(ctx, db, file, log)
}

// Load reads rows of name,category,price,quantity[,description] after a header
// line. Malformed rows are logged and skipped; the remaining rows are written
// in one transaction. It returns the number of drugs inserted.
func Load(ctx context.Context, db *sqlx.DB, r io.Reader, log *zap.Logger) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read drug catalog header: %w", err)
	}

	categories := store.NewCategories()
	rows := 0
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		insert := tx.Rebind(`INSERT INTO drugs (id, name, description, price, quantity, category_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (name) DO NOTHING`)
		categoryIDs := map[string]uuid.UUID{}

		line := 1
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			line++
			if err != nil {
				var parseErr *csv.ParseError
				if !errors.As(err, &parseErr) {
					return fmt.Errorf("read drug catalog: %w", err)
				}
				log.Warn("unable to read drug row", zap.Int("line", line), zap.Error(err))
				continue
			}
			d, category, err := parseRow(record)
			if err != nil {
				log.Warn("skipping drug row", zap.Int("line", line), zap.Error(err))
				continue
			}

			categoryID, ok := categoryIDs[category]
			if !ok {
				c, err := categories.GetByName(ctx, tx, category)
				if errors.Is(err, store.ErrNotFound) {
					c = domain.Category{Name: category}
					err = categories.Create(ctx, tx, &c)
				}
				if err != nil {
					return fmt.Errorf("category %q: %w", category, err)
				}
				categoryID = c.ID
				categoryIDs[category] = categoryID
			}

			now := time.Now().UTC()
			res, err := tx.ExecContext(ctx, insert, uuid.New(), d.Name, d.Description,
				d.Price.StringFixed(domain.MoneyPlaces), d.Quantity, categoryID, now, now)
			if err != nil {
				return fmt.Errorf("insert drug %s: %w", d.Name, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				rows++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info("seeded drug catalog", zap.Int("rows", rows))
	return rows, nil
}

func parseRow(record []string) (domain.Drug, string, error) {
	if len(record) < 4 {
		return domain.Drug{}, "", fmt.Errorf("expected at least 4 fields, got %d", len(record))
	}
	name := strings.TrimSpace(record[0])
	category := strings.TrimSpace(record[1])
	if name == "" || category == "" {
		return domain.Drug{}, "", errors.New("name and category are required")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil || !price.IsPositive() {
		return domain.Drug{}, "", fmt.Errorf("invalid price %q", record[2])
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil || qty < 0 {
		return domain.Drug{}, "", fmt.Errorf("invalid quantity %q", record[3])
	}
	d := domain.Drug{Name: name, Price: price.Round(domain.MoneyPlaces), Quantity: qty}
	if len(record) > 4 {
		d.Description = strings.TrimSpace(record[4])
	}
	return d, category, nil
}
