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

type Categories struct{}

func NewCategories() *Categories { return &Categories{} }

func (r *Categories) List(ctx context.Context, q Queryer) ([]domain.Category, error) {
	categories := []domain.Category{}
	if err := sqlx.SelectContext(ctx, q, &categories, `SELECT id, name, created_at FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *Categories) Get(ctx context.Context, q Queryer, id uuid.UUID) (domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, q, &c, q.Rebind(`SELECT id, name, created_at FROM categories WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, ErrNotFound
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Categories) GetByName(ctx context.Context, q Queryer, name string) (domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, q, &c, q.Rebind(`SELECT id, name, created_at FROM categories WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, ErrNotFound
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

func (r *Categories) Create(ctx context.Context, q Queryer, c *domain.Category) error {
	c.ID = uuid.New()
	c.CreatedAt = now()
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)`), c.ID, c.Name, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// Update renames the category with c.ID. A duplicate name returns ErrConflict.
func (r *Categories) Update(ctx context.Context, q Queryer, c *domain.Category) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE categories SET name = ? WHERE id = ?`), c.Name, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update category: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	return sqlx.GetContext(ctx, q, &c.CreatedAt, q.Rebind(`SELECT created_at FROM categories WHERE id = ?`), c.ID)
}

// Delete removes the category. It returns ErrConflict while any drug still
// belongs to it.
func (r *Categories) Delete(ctx context.Context, q Queryer, id uuid.UUID) error {
	var inUse bool
	if err := sqlx.GetContext(ctx, q, &inUse, q.Rebind(`SELECT EXISTS(SELECT 1 FROM drugs WHERE category_id = ?)`), id); err != nil {
		return fmt.Errorf("check category %s: %w", id, err)
	}
	if inUse {
		return ErrConflict
	}
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM categories WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOne(res)
}
