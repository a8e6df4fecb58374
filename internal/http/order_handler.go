package http

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/fjod/go_laundry/internal/domain"
	"github.com/fjod/go_laundry/internal/reconcile"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderDetailResponse struct {
	Order        *domain.Order      `json:"order"`
	Verification reconcile.Status   `json:"verification"`
	Notices      []reconcile.Notice `json:"notices"`
	URL          string             `json:"url"`
}

// orderView collects what the reconciler shows for one order-detail request.
type orderView struct {
	mu      sync.Mutex
	order   *domain.Order
	notices []reconcile.Notice
	url     url.URL
}

func (v *orderView) ShowOrder(o *domain.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = o
}

func (v *orderView) Notify(n reconcile.Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, n)
}

func (v *orderView) ReplaceURL(u url.URL) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.url = u
}

func (v *orderView) snapshot() (*domain.Order, []reconcile.Notice, url.URL) {
	v.mu.Lock()
	defer v.mu.Unlock()
	notices := make([]reconcile.Notice, len(v.notices))
	copy(notices, v.notices)
	return v.order, notices, v.url
}

// GetOrder returns the order detail. When the query carries a payment return
// the payment is verified first and the order is refreshed on success.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}

	page := url.URL{Path: "/dashboard/orders/" + orderID, RawQuery: r.URL.RawQuery}
	view := &orderView{order: order, url: page}
	mount := h.reconciler.MountContext(r.Context(), orderID, view)
	defer mount.Unmount()

	if mount.Trigger(&page) {
		if err := mount.Wait(ctx); err != nil {
			h.log.Warn("payment verification still running", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	status := mount.Release()

	shown, notices, current := view.snapshot()
	respondJSON(w, http.StatusOK, OrderDetailResponse{
		Order:        shown,
		Verification: status,
		Notices:      notices,
		URL:          current.String(),
	})
}

type PaymentResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference,omitempty"`
	PaymentID        string `json:"payment_id,omitempty"`
}

func (h *Handler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	pi, err := h.orders.InitializePayment(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, PaymentResponse{
		AuthorizationURL: pi.AuthorizationURL,
		Reference:        pi.Reference,
		PaymentID:        pi.PaymentID,
	})
}
