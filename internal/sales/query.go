package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pharmacy/m/domain"
	"pharmacy/m/internal/store"
)

// ListSales returns every sale, newest first, with cashier and items resolved.
// The sales and their items are read in one transaction so the joined view is
// consistent.
func (e *Engine) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var out []domain.Sale
	err := e.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		out, err = e.sales.List(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSale returns one sale or an error matching ErrSaleNotFound.
func (e *Engine) GetSale(ctx context.Context, id uuid.UUID) (domain.Sale, error) {
	var out domain.Sale
	err := e.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		out, err = e.sales.Get(ctx, tx, id)
		if errors.Is(err, store.ErrNotFound) {
			return saleNotFound(id)
		}
		return err
	})
	if err != nil {
		return domain.Sale{}, err
	}
	return out, nil
}
