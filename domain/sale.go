package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for every amount.
const MoneyPlaces = 2

type Sale struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	CashierID   uuid.UUID       `db:"cashier_id" json:"cashier_id"`
	Cashier     *User           `db:"-" json:"cashier,omitempty"`
	Customer    string          `db:"customer" json:"customer"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	Items       []SaleItem      `db:"-" json:"items"`
}

// SaleItem is one priced line of a sale. PricePerUnit is copied from the drug
// when the line is written and is never re-read afterwards.
type SaleItem struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	SaleID       uuid.UUID       `db:"sale_id" json:"sale_id"`
	DrugID       uuid.UUID       `db:"drug_id" json:"drug_id"`
	DrugName     string          `db:"drug_name" json:"drug_name,omitempty"`
	Position     int             `db:"position" json:"-"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	PricePerUnit decimal.Decimal `db:"price_per_unit" json:"price_per_unit"`
}

func (i SaleItem) Subtotal() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(i.Quantity))
}

// SumItems returns the total of all line subtotals.
func SumItems(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
