package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmacy/m/domain"
	"pharmacy/m/internal/sales"
	"pharmacy/m/internal/store"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Options configures a Handler.
type Options struct {
	Secret      string
	CORSOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db         *sqlx.DB
	engine     *sales.Engine
	users      *store.Users
	categories *store.Categories
	drugs      *store.Drugs
	secret     string
	origins    []string
	metrics    http.Handler
	log        *zap.Logger
}

// New constructs a Handler.
func New(db *sqlx.DB, engine *sales.Engine, opts Options) *Handler {
	h := &Handler{
		db:         db,
		engine:     engine,
		users:      store.NewUsers(),
		categories: store.NewCategories(),
		drugs:      store.NewDrugs(),
		secret:     opts.Secret,
		origins:    opts.CORSOrigins,
		metrics:    opts.Metrics,
		log:        opts.Logger,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if len(h.origins) == 0 {
		h.origins = []string{"*"}
	}
	return h
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.With(h.authMiddleware).Post("/reset-password", h.resetPassword)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Get("/{id}", h.getUser)
			r.Group(func(w chi.Router) {
				w.Use(h.requireRole(domain.RoleAdmin))
				w.Put("/{id}", h.updateUser)
				w.Delete("/{id}", h.deleteUser)
			})
		})

		pr.Route("/categories", func(r chi.Router) {
			r.Get("/", h.listCategories)
			r.Get("/{id}", h.getCategory)
			r.Group(func(w chi.Router) {
				w.Use(h.requireRole(domain.RoleAdmin, domain.RolePharmacist))
				w.Post("/", h.createCategory)
				w.Put("/{id}", h.updateCategory)
				w.Delete("/{id}", h.deleteCategory)
			})
		})

		pr.Route("/drugs", func(r chi.Router) {
			r.Get("/", h.listDrugs)
			r.Get("/{id}", h.getDrug)
			r.Group(func(w chi.Router) {
				w.Use(h.requireRole(domain.RoleAdmin))
				w.Post("/", h.createDrug)
				w.Put("/{id}", h.updateDrug)
				w.Delete("/{id}", h.deleteDrug)
			})
		})

		pr.Route("/sales", func(r chi.Router) {
			r.With(h.requireRole(domain.RoleAdmin, domain.RoleCashier, domain.RolePharmacist)).Group(func(rd chi.Router) {
				rd.Get("/", h.listSales)
				rd.Get("/{id}", h.getSale)
			})
			r.With(h.requireRole(domain.RoleAdmin, domain.RoleCashier)).Group(func(w chi.Router) {
				w.Post("/", h.createSale)
				w.Put("/{id}", h.updateSale)
				w.Delete("/{id}", h.deleteSale)
			})
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// Helpers

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
