package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pharmacy/m/domain"
)

type Sales struct{}

func NewSales() *Sales { return &Sales{} }

// saleRow is a sale joined with its cashier. The cashier columns are NULL when
// the user no longer exists.
type saleRow struct {
	domain.Sale
	CashierName  sql.NullString `db:"cashier_name"`
	CashierEmail sql.NullString `db:"cashier_email"`
	CashierRole  sql.NullString `db:"cashier_role"`
}

func (r saleRow) toSale() domain.Sale {
	s := r.Sale
	if r.CashierName.Valid {
		s.Cashier = &domain.User{
			ID:    s.CashierID,
			Name:  r.CashierName.String,
			Email: r.CashierEmail.String,
			Role:  domain.Role(r.CashierRole.String),
		}
	}
	s.Items = []domain.SaleItem{}
	return s
}

const saleSelect = `SELECT s.id, s.cashier_id, s.customer, s.total_amount, s.created_at, s.updated_at,
		u.name AS cashier_name, u.email AS cashier_email, u.role AS cashier_role
	FROM sales s
	LEFT JOIN users u ON u.id = s.cashier_id`

const itemSelect = `SELECT si.id, si.sale_id, si.drug_id, COALESCE(d.name, '') AS drug_name,
		si.position, si.quantity, si.price_per_unit
	FROM sale_items si
	LEFT JOIN drugs d ON d.id = si.drug_id`

// Insert writes the sale header and its items.
func (r *Sales) Insert(ctx context.Context, q Queryer, s *domain.Sale) error {
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO sales (id, cashier_id, customer, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		s.ID, s.CashierID, s.Customer, s.TotalAmount.StringFixed(domain.MoneyPlaces), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return r.insertItems(ctx, q, s.ID, s.Items)
}

func (r *Sales) insertItems(ctx context.Context, q Queryer, saleID uuid.UUID, items []domain.SaleItem) error {
	stmt := q.Rebind(`INSERT INTO sale_items (id, sale_id, drug_id, position, quantity, price_per_unit) VALUES (?, ?, ?, ?, ?, ?)`)
	for i := range items {
		it := &items[i]
		it.SaleID = saleID
		it.Position = i
		if _, err := q.ExecContext(ctx, stmt, it.ID, it.SaleID, it.DrugID, it.Position, it.Quantity, it.PricePerUnit.StringFixed(domain.MoneyPlaces)); err != nil {
			return fmt.Errorf("insert sale item for drug %s: %w", it.DrugID, err)
		}
	}
	return nil
}

// Update rewrites the header of s and replaces all of its items.
func (r *Sales) Update(ctx context.Context, q Queryer, s *domain.Sale) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE sales SET customer = ?, total_amount = ?, updated_at = ? WHERE id = ?`),
		s.Customer, s.TotalAmount.StringFixed(domain.MoneyPlaces), s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM sale_items WHERE sale_id = ?`), s.ID); err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	return r.insertItems(ctx, q, s.ID, s.Items)
}

// Delete removes the sale and its items.
func (r *Sales) Delete(ctx context.Context, q Queryer, id uuid.UUID) error {
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM sale_items WHERE sale_id = ?`), id); err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM sales WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	return expectOne(res)
}

// Get loads one sale with its cashier and items.
func (r *Sales) Get(ctx context.Context, q Queryer, id uuid.UUID) (domain.Sale, error) {
	var rows []saleRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(saleSelect+` WHERE s.id = ?`), id); err != nil {
		return domain.Sale{}, fmt.Errorf("get sale: %w", err)
	}
	if len(rows) == 0 {
		return domain.Sale{}, ErrNotFound
	}
	sales, err := r.attachItems(ctx, q, rows)
	if err != nil {
		return domain.Sale{}, err
	}
	return sales[0], nil
}

// List loads every sale, newest first, with cashiers and items.
func (r *Sales) List(ctx context.Context, q Queryer) ([]domain.Sale, error) {
	var rows []saleRow
	if err := sqlx.SelectContext(ctx, q, &rows, saleSelect+` ORDER BY s.created_at DESC, s.id`); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return r.attachItems(ctx, q, rows)
}

func (r *Sales) attachItems(ctx context.Context, q Queryer, rows []saleRow) ([]domain.Sale, error) {
	sales := make([]domain.Sale, len(rows))
	if len(rows) == 0 {
		return sales, nil
	}
	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	query, args, err := sqlx.In(itemSelect+` WHERE si.sale_id IN (?) ORDER BY si.position`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare sale items query: %w", err)
	}
	var items []domain.SaleItem
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	itemsBySale := make(map[uuid.UUID][]domain.SaleItem, len(rows))
	for _, it := range items {
		itemsBySale[it.SaleID] = append(itemsBySale[it.SaleID], it)
	}

	for i, row := range rows {
		sales[i] = row.toSale()
		if its := itemsBySale[row.ID]; its != nil {
			sales[i].Items = its
		}
	}
	return sales, nil
}
