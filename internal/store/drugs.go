package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pharmacy/m/domain"
)

// Drugs is the inventory store.
type Drugs struct{}

func NewDrugs() *Drugs { return &Drugs{} }

const drugSelect = `SELECT d.id, d.name, d.description, d.price, d.quantity, d.category_id,
		COALESCE(c.name, '') AS category_name, d.created_at, d.updated_at
	FROM drugs d
	LEFT JOIN categories c ON c.id = d.category_id`

func (r *Drugs) List(ctx context.Context, q Queryer) ([]domain.Drug, error) {
	drugs := []domain.Drug{}
	if err := sqlx.SelectContext(ctx, q, &drugs, drugSelect+` ORDER BY d.name`); err != nil {
		return nil, fmt.Errorf("list drugs: %w", err)
	}
	return drugs, nil
}

func (r *Drugs) Get(ctx context.Context, q Queryer, id uuid.UUID) (domain.Drug, error) {
	var d domain.Drug
	err := sqlx.GetContext(ctx, q, &d, q.Rebind(drugSelect+` WHERE d.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Drug{}, ErrNotFound
	}
	if err != nil {
		return domain.Drug{}, fmt.Errorf("get drug: %w", err)
	}
	return d, nil
}

// GetByIDs loads every drug in ids with a single query. Ids with no matching
// row are absent from the result.
func (r *Drugs) GetByIDs(ctx context.Context, q Queryer, ids []uuid.UUID) (map[uuid.UUID]domain.Drug, error) {
	out := make(map[uuid.UUID]domain.Drug, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(drugSelect+` WHERE d.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare drug lookup: %w", err)
	}
	var rows []domain.Drug
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load drugs: %w", err)
	}
	for _, d := range rows {
		out[d.ID] = d
	}
	return out, nil
}

// Create inserts d, assigning its id and timestamps. A duplicate name returns
// ErrConflict.
func (r *Drugs) Create(ctx context.Context, q Queryer, d *domain.Drug) error {
	d.ID = uuid.New()
	d.CreatedAt = now()
	d.UpdatedAt = d.CreatedAt
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO drugs (id, name, description, price, quantity, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		d.ID, d.Name, d.Description, d.Price.StringFixed(domain.MoneyPlaces), d.Quantity, d.CategoryID, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert drug: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of the drug with d.ID.
func (r *Drugs) Update(ctx context.Context, q Queryer, d *domain.Drug) error {
	d.UpdatedAt = now()
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE drugs SET name = ?, description = ?, price = ?, quantity = ?, category_id = ?, updated_at = ?
		WHERE id = ?`),
		d.Name, d.Description, d.Price.StringFixed(domain.MoneyPlaces), d.Quantity, d.CategoryID, d.UpdatedAt, d.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update drug: %w", err)
	}
	return expectOne(res)
}

func (r *Drugs) Delete(ctx context.Context, q Queryer, id uuid.UUID) error {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM drugs WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete drug: %w", err)
	}
	return expectOne(res)
}

// ApplyQuantityDelta adds delta to the on-hand quantity of drug id. The update
// is refused with ErrInsufficientStock when it would take the quantity below
// zero, and with ErrNotFound when the drug does not exist.
func (r *Drugs) ApplyQuantityDelta(ctx context.Context, q Queryer, id uuid.UUID, delta int64) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE drugs SET quantity = quantity + ?, updated_at = ?
		WHERE id = ? AND quantity + ? >= 0`), delta, now(), id, delta)
	if err != nil {
		return fmt.Errorf("apply quantity delta to drug %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply quantity delta to drug %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, q.Rebind(`SELECT EXISTS(SELECT 1 FROM drugs WHERE id = ?)`), id); err != nil {
		return fmt.Errorf("check drug %s: %w", id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
