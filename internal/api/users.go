package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmacy/m/domain"
	"pharmacy/m/internal/store"
)

type userUpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type userDetailResponse struct {
	userResponse
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserDetailResponse(u domain.User) userDetailResponse {
	return userDetailResponse{userResponse: toUserResponse(u), CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context(), h.db)
	if err != nil {
		h.log.Error("list users", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to fetch users")
		return
	}
	out := make([]userDetailResponse, len(users))
	for i, u := range users {
		out[i] = toUserDetailResponse(u)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	u, err := h.users.Get(r.Context(), h.db, id)
	if err != nil {
		h.respondUserError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserDetailResponse(u))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req userUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		respondError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	role := domain.Role(req.Role)
	if !role.Valid() {
		respondError(w, http.StatusBadRequest, "role must be Admin, Pharmacist or Cashier")
		return
	}

	u := domain.User{ID: id, Name: strings.TrimSpace(req.Name), Email: req.Email, Role: role}
	if err := h.users.Update(r.Context(), h.db, &u); err != nil {
		h.respondUserError(w, id, err)
		return
	}
	updated, err := h.users.Get(r.Context(), h.db, id)
	if err != nil {
		h.respondUserError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserDetailResponse(updated))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.users.Delete(r.Context(), h.db, id); err != nil {
		h.respondUserError(w, id, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted successfully"})
}

func (h *Handler) respondUserError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "user with id '"+id.String()+"' not found")
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, "a user with this email already exists")
	default:
		h.log.Error("user store", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to process user")
	}
}
