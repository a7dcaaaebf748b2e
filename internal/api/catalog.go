package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmacy/m/domain"
	"pharmacy/m/internal/store"
)

// Categories

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context(), h.db)
	if err != nil {
		h.log.Error("list categories", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch categories")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := domain.Category{Name: strings.TrimSpace(req.Name)}
	if c.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.categories.Create(r.Context(), h.db, &c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			respondError(w, http.StatusConflict, "category '"+c.Name+"' already exists")
			return
		}
		h.log.Error("create category", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to create category")
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	c, err := h.categories.Get(r.Context(), h.db, id)
	if err != nil {
		h.respondCategoryError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := domain.Category{ID: id, Name: strings.TrimSpace(req.Name)}
	if c.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := h.categories.Update(r.Context(), h.db, &c); err != nil {
		h.respondCategoryError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := h.categories.Delete(r.Context(), h.db, id); err != nil {
		h.respondCategoryError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Category deleted successfully"})
}

// respondCategoryError maps store errors. A conflict is either a duplicate
// name on update or a delete while drugs still use the category.
func (h *Handler) respondCategoryError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "category with id '"+id.String()+"' not found")
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "category is in use or its name is taken")
	default:
		h.log.Error("category store", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to process category")
	}
}

// Drugs

type drugRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	CategoryID  uuid.UUID       `json:"category_id"`
}

type drugResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Quantity    int64     `json:"quantity"`
	CategoryID  uuid.UUID `json:"category_id"`
	Category    string    `json:"category,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toDrugResponse(d domain.Drug) drugResponse {
	return drugResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price.StringFixed(domain.MoneyPlaces),
		Quantity:    d.Quantity,
		CategoryID:  d.CategoryID,
		Category:    d.CategoryName,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (h *Handler) listDrugs(w http.ResponseWriter, r *http.Request) {
	drugs, err := h.drugs.List(r.Context(), h.db)
	if err != nil {
		h.log.Error("list drugs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch drugs")
		return
	}
	out := make([]drugResponse, len(drugs))
	for i, d := range drugs {
		out[i] = toDrugResponse(d)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getDrug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid drug id")
		return
	}
	d, err := h.drugs.Get(r.Context(), h.db, id)
	if err != nil {
		h.respondDrugError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, toDrugResponse(d))
}

// validDrug checks the request and resolves its category.
func (h *Handler) validDrug(w http.ResponseWriter, r *http.Request, req drugRequest) (domain.Drug, bool) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return domain.Drug{}, false
	}
	if !req.Price.IsPositive() {
		respondError(w, http.StatusBadRequest, "price must be greater than zero")
		return domain.Drug{}, false
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "quantity cannot be negative")
		return domain.Drug{}, false
	}
	c, err := h.categories.Get(r.Context(), h.db, req.CategoryID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "category with id '"+req.CategoryID.String()+"' not found")
		return domain.Drug{}, false
	}
	if err != nil {
		h.log.Error("load category", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to load category")
		return domain.Drug{}, false
	}
	return domain.Drug{
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Price:        req.Price.Round(domain.MoneyPlaces),
		Quantity:     req.Quantity,
		CategoryID:   c.ID,
		CategoryName: c.Name,
	}, true
}

func (h *Handler) createDrug(w http.ResponseWriter, r *http.Request) {
	var req drugRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, ok := h.validDrug(w, r, req)
	if !ok {
		return
	}
	if err := h.drugs.Create(r.Context(), h.db, &d); err != nil {
		h.respondDrugError(w, d.ID, err)
		return
	}
	respondJSON(w, http.StatusCreated, toDrugResponse(d))
}

func (h *Handler) updateDrug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid drug id")
		return
	}
	var req drugRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, ok := h.validDrug(w, r, req)
	if !ok {
		return
	}
	d.ID = id
	if err := h.drugs.Update(r.Context(), h.db, &d); err != nil {
		h.respondDrugError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, toDrugResponse(d))
}

func (h *Handler) deleteDrug(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid drug id")
		return
	}
	if err := h.drugs.Delete(r.Context(), h.db, id); err != nil {
		h.respondDrugError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "drug deleted successfully"})
}

func (h *Handler) respondDrugError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "drug with id '"+id.String()+"' not found")
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "a drug with this name already exists")
	default:
		h.log.Error("drug store", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to process drug")
	}
}
