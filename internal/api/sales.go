package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmacy/m/domain"
	"pharmacy/m/internal/sales"
)

type saleItemRequest struct {
	DrugID   uuid.UUID `json:"drug_id"`
	Quantity int64     `json:"quantity"`
}

type saleRequest struct {
	// CashierID defaults to the authenticated user when omitted.
	CashierID uuid.UUID         `json:"cashier_id"`
	Customer  string            `json:"customer"`
	Items     []saleItemRequest `json:"items"`
}

func (req saleRequest) cart() []sales.CartItem {
	items := make([]sales.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = sales.CartItem{DrugID: it.DrugID, Quantity: it.Quantity}
	}
	return items
}

type saleItemResponse struct {
	ID           uuid.UUID `json:"id"`
	DrugID       uuid.UUID `json:"drug_id"`
	DrugName     string    `json:"drug_name,omitempty"`
	Quantity     int64     `json:"quantity"`
	PricePerUnit string    `json:"price_per_unit"`
	Subtotal     string    `json:"subtotal"`
}

type saleResponse struct {
	ID          uuid.UUID          `json:"id"`
	CashierID   uuid.UUID          `json:"cashier_id"`
	Cashier     *userResponse      `json:"cashier,omitempty"`
	Customer    string             `json:"customer"`
	TotalAmount string             `json:"total_amount"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Items       []saleItemResponse `json:"items"`
}

func toSaleResponse(s domain.Sale) saleResponse {
	out := saleResponse{
		ID:          s.ID,
		CashierID:   s.CashierID,
		Customer:    s.Customer,
		TotalAmount: s.TotalAmount.StringFixed(domain.MoneyPlaces),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Items:       make([]saleItemResponse, len(s.Items)),
	}
	if s.Cashier != nil {
		c := toUserResponse(*s.Cashier)
		out.Cashier = &c
	}
	for i, it := range s.Items {
		out.Items[i] = saleItemResponse{
			ID:           it.ID,
			DrugID:       it.DrugID,
			DrugName:     it.DrugName,
			Quantity:     it.Quantity,
			PricePerUnit: it.PricePerUnit.StringFixed(domain.MoneyPlaces),
			Subtotal:     it.Subtotal().StringFixed(domain.MoneyPlaces),
		}
	}
	return out
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListSales(r.Context())
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	out := make([]saleResponse, len(list))
	for i, s := range list {
		out[i] = toSaleResponse(s)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	sale, err := h.engine.GetSale(r.Context(), id)
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CashierID == uuid.Nil {
		req.CashierID = userIDFromContext(r)
	}
	sale, err := h.engine.CreateSale(r.Context(), sales.CreateSaleRequest{
		CashierID: req.CashierID,
		Customer:  req.Customer,
		Items:     req.cart(),
	})
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toSaleResponse(sale))
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := h.engine.UpdateSale(r.Context(), id, sales.UpdateSaleRequest{
		Customer: req.Customer,
		Items:    req.cart(),
	})
	if err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid sale id")
		return
	}
	if err := h.engine.DeleteSale(r.Context(), id); err != nil {
		h.respondSaleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Sale deleted successfully"})
}

func (h *Handler) respondSaleError(w http.ResponseWriter, err error) {
	switch sales.KindOf(err) {
	case sales.KindNotFound:
		respondError(w, http.StatusNotFound, err.Error())
	case sales.KindValidation:
		respondError(w, http.StatusBadRequest, err.Error())
	case sales.KindConflict:
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error("sale operation failed", zap.Error(err), zap.String("code", sales.CodeOf(err)))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
