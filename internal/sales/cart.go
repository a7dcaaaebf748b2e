package sales

import (
	"github.com/google/uuid"

	"pharmacy/m/domain"
)

// CartItem is one requested line of a cart.
type CartItem struct {
	DrugID   uuid.UUID
	Quantity int64
}

func validateCart(items []CartItem) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for i, it := range items {
		if it.Quantity <= 0 {
			return invalidQuantity(i, it.Quantity)
		}
	}
	return nil
}

// distinctDrugIDs returns the drug ids of items in first-seen order.
func distinctDrugIDs(items []CartItem) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.DrugID]; ok {
			continue
		}
		seen[it.DrugID] = struct{}{}
		ids = append(ids, it.DrugID)
	}
	return ids
}

// priceLines turns a cart into sale lines. Items are checked in submission
// order against a working copy of the on-hand quantities, so repeated lines for
// the same drug draw from what earlier lines left. Each line's price is the
// drug's current price.
func priceLines(items []CartItem, drugs map[uuid.UUID]domain.Drug) ([]domain.SaleItem, error) {
	remaining := make(map[uuid.UUID]int64, len(drugs))
	for id, d := range drugs {
		remaining[id] = d.Quantity
	}

	lines := make([]domain.SaleItem, 0, len(items))
	for _, it := range items {
		d, ok := drugs[it.DrugID]
		if !ok {
			return nil, drugNotFound(it.DrugID)
		}
		if it.Quantity > remaining[d.ID] {
			return nil, insufficientQuantity(d, it.Quantity, remaining[d.ID])
		}
		remaining[d.ID] -= it.Quantity
		lines = append(lines, domain.SaleItem{
			ID:           uuid.New(),
			DrugID:       d.ID,
			DrugName:     d.Name,
			Quantity:     it.Quantity,
			PricePerUnit: d.Price.Round(domain.MoneyPlaces),
		})
	}
	return lines, nil
}
