// Package http exposes the storefront API.
package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_laundry/internal/auth"
	"github.com/fjod/go_laundry/internal/catalog"
	"github.com/fjod/go_laundry/internal/connectivity"
	"github.com/fjod/go_laundry/internal/reconcile"
	"github.com/fjod/go_laundry/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	orders     *service.OrderService
	catalog    *catalog.Service
	reconciler *reconcile.Reconciler
	online     *connectivity.Store
	timeout    time.Duration
	log        *zap.Logger
}

func NewHandler(
	orders *service.OrderService,
	catalog *catalog.Service,
	reconciler *reconcile.Reconciler,
	online *connectivity.Store,
	timeout time.Duration,
	log *zap.Logger,
) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		orders:     orders,
		catalog:    catalog,
		reconciler: reconciler,
		online:     online,
		timeout:    timeout,
		log:        log,
	}
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(h *Handler, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))
	r.Use(auth.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/home", h.Home)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/services", h.ListServices)
		r.Get("/connectivity", h.Connectivity)

		r.Group(func(r chi.Router) {
			r.Use(RequirePrincipal)

			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", h.CreateDraft)
				r.Route("/{draft_id}", func(r chi.Router) {
					r.Get("/", h.GetDraft)
					r.Delete("/", h.DiscardDraft)
					r.Post("/items", h.AddItem)
					r.Put("/items", h.UpdateItem)
					r.Delete("/items", h.RemoveItem)
					r.Put("/schedule", h.SetSchedule)
					r.Post("/submit", h.Submit)
				})
			})

			r.Route("/orders/{order_id}", func(r chi.Router) {
				r.Get("/", h.GetOrder)
				r.Post("/payments", h.InitializePayment)
			})
		})
	})

	return r
}

// Home sends the caller to the landing page of their role.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, auth.HomePath(principal(r).Role), http.StatusFound)
}

func (h *Handler) Connectivity(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"online": h.online.Snapshot()})
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	services, err := h.catalog.Active(ctx)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}
