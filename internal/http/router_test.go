package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_laundry/internal/apiclient"
	"github.com/fjod/go_laundry/internal/catalog"
	"github.com/fjod/go_laundry/internal/connectivity"
	"github.com/fjod/go_laundry/internal/draft"
	"github.com/fjod/go_laundry/internal/reconcile"
	"github.com/fjod/go_laundry/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fake laundry API ---

type fakeAPI struct {
	verifyDelay time.Duration

	mu           sync.Mutex
	paid         bool
	verifyOK     bool
	verifyCalls  int
	orderReads   int
	createCalls  int
	lastAuth     string
	lastCallback string
}

func envelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 400, "data": data, "message": "fake"})
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.verifyDelay > 0 && strings.HasPrefix(r.URL.Path, "/api/v1/payments/verify/") {
		select {
		case <-time.After(f.verifyDelay):
		case <-r.Context().Done():
			return
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuth = r.Header.Get("Authorization")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/services":
		envelope(w, http.StatusOK, []map[string]any{
			{
				"_id": "svc-a", "name": "Wash", "isActive": true, "isExpressAvailable": true,
				"pricing": []map[string]any{{"garmentType": "shirt", "standardPrice": 100}},
			},
			{
				"_id": "svc-b", "name": "Dry Clean", "isActive": true, "isExpressAvailable": true,
				"pricing": []map[string]any{{"garmentType": "suit", "standardPrice": 50, "expressMultiplier": 1.5}},
			},
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/auth/me":
		envelope(w, http.StatusOK, map[string]any{
			"_id": "user-1", "role": "customer",
			"address": map[string]any{"street": "12 Allen Ave", "city": "Ikeja"},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/orders":
		f.createCalls++
		envelope(w, http.StatusCreated, map[string]any{
			"_id": "ord-1", "orderNumber": "WSH-0001", "status": "pending", "total": 1500,
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/orders/ord-1":
		f.orderReads++
		envelope(w, http.StatusOK, map[string]any{
			"_id": "ord-1", "orderNumber": "WSH-0001", "status": "pending", "total": 1500, "isPaid": f.paid,
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/payments/verify/"):
		f.verifyCalls++
		if !f.verifyOK {
			envelope(w, http.StatusBadRequest, nil)
			return
		}
		f.paid = true
		envelope(w, http.StatusOK, map[string]any{"_id": "pay-1", "status": "completed"})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/payments/initialize":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastCallback = body["callbackUrl"]
		envelope(w, http.StatusOK, map[string]any{"_id": "pay-1", "authorizationUrl": "https://gateway.example/pay"})
	default:
		envelope(w, http.StatusNotFound, nil)
	}
}

type apiStats struct {
	verifyCalls  int
	orderReads   int
	createCalls  int
	lastAuth     string
	lastCallback string
}

func (f *fakeAPI) stats() apiStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return apiStats{
		verifyCalls:  f.verifyCalls,
		orderReads:   f.orderReads,
		createCalls:  f.createCalls,
		lastAuth:     f.lastAuth,
		lastCallback: f.lastCallback,
	}
}

// --- helpers ---

func newTestRouter(t *testing.T, api *fakeAPI, online bool) http.Handler {
	t.Helper()
	return newTimedRouter(t, api, online, 5*time.Second, 4*time.Second)
}

func newTimedRouter(t *testing.T, api *fakeAPI, online bool, requestTimeout, verifyTimeout time.Duration) http.Handler {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client := apiclient.New(apiclient.Options{BaseURL: srv.URL + "/api/v1", Timeout: 2 * time.Second})
	catalogSvc := catalog.NewService(client, nil, nil)
	store := connectivity.NewStore(online)
	orders := service.NewOrderService(service.Deps{
		Drafts:    draft.NewMemoryStore(time.Hour),
		Catalog:   catalogSvc,
		API:       client,
		Online:    store,
		BranchID:  "branch-1",
		PublicURL: "https://shop.example",
	})
	reconciler := reconcile.NewReconciler(client, client, reconcile.WithTimeout(verifyTimeout))

	h := NewHandler(orders, catalogSvc, reconciler, store, requestTimeout, nil)
	return NewRouter(h, RouterConfig{MaxRequestBodySize: 1 << 20})
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Authorization", "Bearer tok-1")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Role", "customer")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func createDraft(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/drafts", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &d)
	require.NotEmpty(t, d.ID)
	return d.ID
}

// --- tests ---

func TestHealth(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHome_RedirectsByRole(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	req.Header.Set("X-User-Id", "rider-1")
	req.Header.Set("X-User-Role", "rider")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/rider", rec.Header().Get("Location"))

	anon := httptest.NewRecorder()
	h.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/home", nil))
	assert.Equal(t, "/login", anon.Header().Get("Location"))
}

func TestDrafts_RequireAuthentication(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drafts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/drafts", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Role", "custmer")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown role is not a customer")
}

func TestListServices(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	rec := do(t, h, http.MethodGet, "/api/v1/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Services []struct {
			ID string `json:"_id"`
		} `json:"services"`
	}
	decodeBody(t, rec, &resp)
	assert.Len(t, resp.Services, 2)
}

func TestDraftFlow_BuildAndSubmit(t *testing.T) {
	api := &fakeAPI{}
	h := newTestRouter(t, api, true)
	id := createDraft(t, h)
	base := "/api/v1/drafts/" + id

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, base+"/items", AddItemRequestDTO{ServiceID: "svc-a", GarmentType: "shirt"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPost, base+"/items", AddItemRequestDTO{ServiceID: "svc-b", GarmentType: "suit"})
	require.Equal(t, http.StatusOK, rec.Code)

	express := true
	rec = do(t, h, http.MethodPut, base+"/items", UpdateItemRequestDTO{ServiceID: "svc-b", GarmentType: "suit", IsExpress: &express})
	require.Equal(t, http.StatusOK, rec.Code)

	var view service.DraftView
	decodeBody(t, rec, &view)
	assert.Equal(t, "275.00", view.Total)
	require.Len(t, view.Draft.Items, 2)

	rec = do(t, h, http.MethodPut, base+"/schedule", ScheduleRequestDTO{
		PickupDate:        "2026-10-20",
		PickupTimeSlot:    "09:00-12:00",
		PickupAddressID:   "user-1",
		DeliveryAddressID: "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order struct {
		OrderNumber string `json:"orderNumber"`
		Status      string `json:"status"`
	}
	decodeBody(t, rec, &order)
	assert.Equal(t, "WSH-0001", order.OrderNumber)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "Bearer tok-1", api.stats().lastAuth)

	rec = do(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmit_MissingPickupDate(t *testing.T) {
	api := &fakeAPI{}
	h := newTestRouter(t, api, true)
	id := createDraft(t, h)
	base := "/api/v1/drafts/" + id

	rec := do(t, h, http.MethodPost, base+"/items", AddItemRequestDTO{ServiceID: "svc-a", GarmentType: "shirt"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPut, base+"/schedule", ScheduleRequestDTO{
		PickupTimeSlot: "09:00-12:00", PickupAddressID: "user-1", DeliveryAddressID: "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "validation_failed", resp.Code)
	assert.Contains(t, resp.Fields, "pickupDate")
	assert.Equal(t, 0, api.stats().createCalls)
}

func TestSubmit_Offline(t *testing.T) {
	api := &fakeAPI{}
	h := newTestRouter(t, api, false)
	id := createDraft(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/drafts/"+id+"/submit", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "offline", resp.Code)
	assert.Equal(t, 0, api.stats().createCalls)
}

func TestAddItem_Validation(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	id := createDraft(t, h)
	base := "/api/v1/drafts/" + id + "/items"

	rec := do(t, h, http.MethodPost, base, AddItemRequestDTO{ServiceID: "svc-a", GarmentType: "spacesuit"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, base, AddItemRequestDTO{ServiceID: "svc-a", GarmentType: "duvet"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/drafts/missing/items", AddItemRequestDTO{ServiceID: "svc-a", GarmentType: "shirt"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuantity_NoUpperCap(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	id := createDraft(t, h)
	base := "/api/v1/drafts/" + id + "/items"

	qty := 120
	rec := do(t, h, http.MethodPut, base, UpdateItemRequestDTO{ServiceID: "svc-a", GarmentType: "shirt", Quantity: &qty})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, base, AddItemRequestDTO{ServiceID: "svc-a", GarmentType: "shirt"})
	require.Equal(t, http.StatusOK, rec.Code)

	var view service.DraftView
	decodeBody(t, rec, &view)
	require.Len(t, view.Draft.Items, 1)
	assert.Equal(t, 121, view.Draft.Items[0].Quantity)
	assert.Equal(t, "12100.00", view.Total)

	neg := -1
	rec = do(t, h, http.MethodPut, base, UpdateItemRequestDTO{ServiceID: "svc-a", GarmentType: "shirt", Quantity: &neg})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &view)
	assert.Empty(t, view.Draft.Items)
}

func TestRemoveItem(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	id := createDraft(t, h)
	base := "/api/v1/drafts/" + id + "/items"

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, base, AddItemRequestDTO{ServiceID: "svc-a", GarmentType: "shirt"}).Code)
	rec := do(t, h, http.MethodDelete, base+"?service_id=svc-a&garment_type=shirt", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view service.DraftView
	decodeBody(t, rec, &view)
	assert.Empty(t, view.Draft.Items)
}

func TestDiscardDraft(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	id := createDraft(t, h)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/v1/drafts/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/drafts/"+id, nil).Code)
}

func TestGetOrder_PaymentReturnVerified(t *testing.T) {
	api := &fakeAPI{verifyOK: true}
	h := newTestRouter(t, api, true)

	rec := do(t, h, http.MethodGet, "/api/v1/orders/ord-1?payment_verify=true&reference=abc123", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Order struct {
			IsPaid bool `json:"isPaid"`
		} `json:"order"`
		Verification string             `json:"verification"`
		Notices      []reconcile.Notice `json:"notices"`
		URL          string             `json:"url"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "succeeded", resp.Verification)
	assert.True(t, resp.Order.IsPaid)
	assert.Equal(t, "/dashboard/orders/ord-1", resp.URL)
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, reconcile.NoticeSuccess, resp.Notices[0].Level)
	assert.Equal(t, 1, api.stats().verifyCalls)
	assert.Equal(t, 2, api.stats().orderReads)
}

func TestGetOrder_PaymentReturnFailed(t *testing.T) {
	api := &fakeAPI{verifyOK: false}
	h := newTestRouter(t, api, true)

	rec := do(t, h, http.MethodGet, "/api/v1/orders/ord-1?payment_verify=true&reference=abc123", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp OrderDetailResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, reconcile.StatusFailed, resp.Verification)
	require.NotNil(t, resp.Order)
	assert.False(t, resp.Order.IsPaid)
	assert.Equal(t, "/dashboard/orders/ord-1", resp.URL)
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, reconcile.MsgNotVerified, resp.Notices[0].Message)
	assert.Equal(t, 1, api.stats().orderReads)
}

func TestGetOrder_SlowVerification(t *testing.T) {
	tests := []struct {
		name          string
		verifyTimeout time.Duration
		want          reconcile.Status
	}{
		{"verify times out first", 100 * time.Millisecond, reconcile.StatusFailed},
		{"request times out first", 3 * time.Second, reconcile.StatusVerifying},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{verifyOK: true, verifyDelay: 2 * time.Second}
			h := newTimedRouter(t, api, true, 400*time.Millisecond, tt.verifyTimeout)

			rec := do(t, h, http.MethodGet, "/api/v1/orders/ord-1?payment_verify=true&reference=abc123", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp OrderDetailResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.want, resp.Verification)
			assert.Equal(t, "/dashboard/orders/ord-1", resp.URL)
			require.Len(t, resp.Notices, 1)
			assert.Equal(t, reconcile.NoticeWarning, resp.Notices[0].Level)
			assert.Equal(t, reconcile.MsgNotVerified, resp.Notices[0].Message)
			require.NotNil(t, resp.Order)
			assert.False(t, resp.Order.IsPaid)
		})
	}
}

func TestGetOrder_PlainView(t *testing.T) {
	api := &fakeAPI{}
	h := newTestRouter(t, api, true)

	rec := do(t, h, http.MethodGet, "/api/v1/orders/ord-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp OrderDetailResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, reconcile.StatusIdle, resp.Verification)
	assert.Empty(t, resp.Notices)
	assert.Equal(t, 0, api.stats().verifyCalls)
}

func TestGetOrder_NotFound(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, true)
	rec := do(t, h, http.MethodGet, "/api/v1/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitializePayment(t *testing.T) {
	api := &fakeAPI{}
	h := newTestRouter(t, api, true)

	rec := do(t, h, http.MethodPost, "/api/v1/orders/ord-1/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PaymentResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "https://gateway.example/pay", resp.AuthorizationURL)
	assert.Equal(t, "https://shop.example/dashboard/orders/ord-1?payment_verify=true", api.stats().lastCallback)
}

func TestConnectivity(t *testing.T) {
	h := newTestRouter(t, &fakeAPI{}, false)
	rec := do(t, h, http.MethodGet, "/api/v1/connectivity", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	decodeBody(t, rec, &resp)
	assert.False(t, resp["online"])
}
