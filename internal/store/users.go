package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pharmacy/m/domain"
)

type Users struct{}

func NewUsers() *Users { return &Users{} }

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

// Create inserts u, assigning its id and timestamps. A duplicate email
// returns ErrConflict.
func (r *Users) Create(ctx context.Context, q Queryer, u *domain.User) error {
	u.ID = uuid.New()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	_, err := q.ExecContext(ctx, q.Rebind(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Users) GetByEmail(ctx context.Context, q Queryer, email string) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *Users) List(ctx context.Context, q Queryer) ([]domain.User, error) {
	users := []domain.User{}
	if err := sqlx.SelectContext(ctx, q, &users, `SELECT `+userColumns+` FROM users ORDER BY name, email`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *Users) Get(ctx context.Context, q Queryer, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// ResolveCashier looks up the user recorded as the cashier of a sale.
func (r *Users) ResolveCashier(ctx context.Context, q Queryer, id uuid.UUID) (domain.User, error) {
	return r.Get(ctx, q, id)
}

// Update overwrites the name, email and role of the user with u.ID. The
// password hash is left alone. A duplicate email returns ErrConflict.
func (r *Users) Update(ctx context.Context, q Queryer, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.UpdatedAt = now()
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET name = ?, email = ?, role = ?, updated_at = ? WHERE id = ?`),
		u.Name, u.Email, u.Role, u.UpdatedAt, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	return expectOne(res)
}

func (r *Users) UpdatePassword(ctx context.Context, q Queryer, id uuid.UUID, hash string) error {
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`), hash, now(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOne(res)
}

// Delete removes the user. Sales keep the id as their cashier and read back
// without a resolved cashier.
func (r *Users) Delete(ctx context.Context, q Queryer, id uuid.UUID) error {
	res, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}
