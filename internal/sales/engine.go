// Package sales turns carts into persisted sales. Every mutating operation
// runs in one database transaction that also adjusts drug quantities, so a
// failure at any step leaves both inventory and sales untouched.
package sales

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmacy/m/domain"
	"pharmacy/m/internal/database"
	"pharmacy/m/internal/store"
)

// CashierLookup resolves the user recorded as a sale's cashier.
type CashierLookup interface {
	ResolveCashier(ctx context.Context, q store.Queryer, id uuid.UUID) (domain.User, error)
}

// Inventory reads drugs and moves their on-hand quantity.
type Inventory interface {
	GetByIDs(ctx context.Context, q store.Queryer, ids []uuid.UUID) (map[uuid.UUID]domain.Drug, error)
	ApplyQuantityDelta(ctx context.Context, q store.Queryer, id uuid.UUID, delta int64) error
}

// Repository persists sales with their items.
type Repository interface {
	Insert(ctx context.Context, q store.Queryer, s *domain.Sale) error
	Update(ctx context.Context, q store.Queryer, s *domain.Sale) error
	Delete(ctx context.Context, q store.Queryer, id uuid.UUID) error
	Get(ctx context.Context, q store.Queryer, id uuid.UUID) (domain.Sale, error)
	List(ctx context.Context, q store.Queryer) ([]domain.Sale, error)
}

// Recorder observes the outcome of sale operations.
type Recorder interface {
	SaleCreated()
	SaleUpdated()
	SaleDeleted()
	SaleFailed(op, code string)
}

type nopRecorder struct{}

func (nopRecorder) SaleCreated()           {}
func (nopRecorder) SaleUpdated()           {}
func (nopRecorder) SaleDeleted()           {}
func (nopRecorder) SaleFailed(_, _ string) {}

type CreateSaleRequest struct {
	CashierID uuid.UUID
	Customer  string
	Items     []CartItem
}

type UpdateSaleRequest struct {
	Customer string
	Items    []CartItem
}

// Engine is the sale transaction engine.
type Engine struct {
	db        *sqlx.DB
	cashiers  CashierLookup
	inventory Inventory
	sales     Repository
	log       *zap.Logger
	recorder  Recorder
	now       func() time.Time
	txTimeout time.Duration
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithTxTimeout bounds how long one transaction may run. Zero means no bound
// beyond the caller's context.
func WithTxTimeout(d time.Duration) Option { return func(e *Engine) { e.txTimeout = d } }

func NewEngine(db *sqlx.DB, cashiers CashierLookup, inventory Inventory, sales Repository, opts ...Option) *Engine {
	e := &Engine{
		db:        db,
		cashiers:  cashiers,
		inventory: inventory,
		sales:     sales,
		log:       zap.NewNop(),
		recorder:  nopRecorder{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateSale validates the cart against live inventory, decrements each drug,
// and persists the sale priced at the drugs' current prices.
func (e *Engine) CreateSale(ctx context.Context, req CreateSaleRequest) (domain.Sale, error) {
	if err := validateCart(req.Items); err != nil {
		return domain.Sale{}, e.failed("create", err)
	}

	var sale domain.Sale
	err := e.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		cashier, err := e.cashiers.ResolveCashier(ctx, tx, req.CashierID)
		if errors.Is(err, store.ErrNotFound) {
			return cashierNotFound(req.CashierID)
		}
		if err != nil {
			return err
		}
		cashier.PasswordHash = ""

		lines, err := e.take(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		now := e.now()
		sale = domain.Sale{
			ID:          uuid.New(),
			CashierID:   cashier.ID,
			Cashier:     &cashier,
			Customer:    req.Customer,
			TotalAmount: domain.SumItems(lines),
			CreatedAt:   now,
			UpdatedAt:   now,
			Items:       lines,
		}
		return e.sales.Insert(ctx, tx, &sale)
	})
	if err != nil {
		return domain.Sale{}, e.failed("create", err)
	}

	e.recorder.SaleCreated()
	e.log.Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("cashier_id", sale.CashierID.String()),
		zap.String("total", sale.TotalAmount.StringFixed(domain.MoneyPlaces)),
		zap.Int("items", len(sale.Items)),
	)
	return sale, nil
}

// UpdateSale puts the sale's current lines back into inventory, then applies
// the new cart under the same rules as CreateSale.
func (e *Engine) UpdateSale(ctx context.Context, id uuid.UUID, req UpdateSaleRequest) (domain.Sale, error) {
	if err := validateCart(req.Items); err != nil {
		return domain.Sale{}, e.failed("update", err)
	}

	var sale domain.Sale
	err := e.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		sale, err = e.sales.Get(ctx, tx, id)
		if errors.Is(err, store.ErrNotFound) {
			return saleNotFound(id)
		}
		if err != nil {
			return err
		}
		if err := e.restore(ctx, tx, sale.Items); err != nil {
			return err
		}

		lines, err := e.take(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		sale.Customer = req.Customer
		sale.Items = lines
		sale.TotalAmount = domain.SumItems(lines)
		sale.UpdatedAt = e.now()
		return e.sales.Update(ctx, tx, &sale)
	})
	if err != nil {
		return domain.Sale{}, e.failed("update", err)
	}

	e.recorder.SaleUpdated()
	e.log.Info("sale updated",
		zap.String("sale_id", sale.ID.String()),
		zap.String("total", sale.TotalAmount.StringFixed(domain.MoneyPlaces)),
		zap.Int("items", len(sale.Items)),
	)
	return sale, nil
}

// DeleteSale removes the sale and returns its quantities to inventory. Lines
// whose drug no longer exists are dropped without restoration.
func (e *Engine) DeleteSale(ctx context.Context, id uuid.UUID) error {
	err := e.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		sale, err := e.sales.Get(ctx, tx, id)
		if errors.Is(err, store.ErrNotFound) {
			return saleNotFound(id)
		}
		if err != nil {
			return err
		}
		if err := e.restore(ctx, tx, sale.Items); err != nil {
			return err
		}
		return e.sales.Delete(ctx, tx, id)
	})
	if err != nil {
		return e.failed("delete", err)
	}

	e.recorder.SaleDeleted()
	e.log.Info("sale deleted", zap.String("sale_id", id.String()))
	return nil
}

// take prices the cart and decrements inventory line by line, in order.
func (e *Engine) take(ctx context.Context, tx *sqlx.Tx, items []CartItem) ([]domain.SaleItem, error) {
	drugs, err := e.inventory.GetByIDs(ctx, tx, distinctDrugIDs(items))
	if err != nil {
		return nil, err
	}
	lines, err := priceLines(items, drugs)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		err := e.inventory.ApplyQuantityDelta(ctx, tx, line.DrugID, -line.Quantity)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, drugNotFound(line.DrugID)
		case errors.Is(err, store.ErrInsufficientStock):
			return nil, e.shortfall(ctx, tx, line)
		case err != nil:
			return nil, err
		}
	}
	return lines, nil
}

// shortfall reports a line whose decrement was refused after the cart was
// priced, quoting the quantity the drug has now.
func (e *Engine) shortfall(ctx context.Context, tx *sqlx.Tx, line domain.SaleItem) error {
	current, err := e.inventory.GetByIDs(ctx, tx, []uuid.UUID{line.DrugID})
	if err != nil {
		return err
	}
	d, ok := current[line.DrugID]
	if !ok {
		return drugNotFound(line.DrugID)
	}
	return insufficientQuantity(d, line.Quantity, d.Quantity)
}

// restore adds the quantities of items back to their drugs, skipping drugs
// that have been deleted.
func (e *Engine) restore(ctx context.Context, tx *sqlx.Tx, items []domain.SaleItem) error {
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.DrugID)
	}
	drugs, err := e.inventory.GetByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	for _, it := range items {
		if _, ok := drugs[it.DrugID]; !ok {
			e.log.Debug("skipping restore for deleted drug",
				zap.String("sale_id", it.SaleID.String()),
				zap.String("drug_id", it.DrugID.String()),
			)
			continue
		}
		if err := e.inventory.ApplyQuantityDelta(ctx, tx, it.DrugID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	if e.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.txTimeout)
		defer cancel()
	}
	return database.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		return fn(ctx, tx)
	})
}

func (e *Engine) failed(op string, err error) error {
	e.recorder.SaleFailed(op, CodeOf(err))
	if KindOf(err) == KindInternal {
		e.log.Error("sale transaction failed", zap.String("op", op), zap.Error(err))
	} else {
		e.log.Debug("sale rejected", zap.String("op", op), zap.Error(err))
	}
	return err
}
