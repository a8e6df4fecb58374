package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/domain"
	"github.com/tidwall/gjson"
)

func (c *Client) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	path := "/services"
	if activeOnly {
		path += "?isActive=true"
	}
	data, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	// Some deployments wrap the list as {services: [...]}.
	if nested := data.Get("services"); nested.IsArray() {
		data = nested
	}
	var services []domain.Service
	if err := decode(data, "services", &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) CreateOrder(ctx context.Context, in domain.CreateOrderInput, idempotencyKey string) (*domain.Order, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	data, err := c.do(ctx, http.MethodPost, "/orders", in, header)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return decodeOrder(data)
}

func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	data, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return decodeOrder(data)
}

func decodeOrder(data gjson.Result) (*domain.Order, error) {
	if nested := data.Get("order"); nested.IsObject() {
		data = nested
	}
	var o domain.Order
	if err := decode(data, "order", &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// VerifyPayment asks the API to confirm a gateway reference. A reference that
// was already settled reports apperr.ErrAlreadyVerified.
func (c *Client) VerifyPayment(ctx context.Context, reference string) (*domain.PaymentVerification, error) {
	data, err := c.do(ctx, http.MethodGet, "/payments/verify/"+url.PathEscape(reference), nil, nil)
	var re *apperr.RemoteError
	if errors.As(err, &re) && re.Status == http.StatusConflict {
		return &domain.PaymentVerification{Reference: reference, Verified: true, Status: domain.PaymentStatusCompleted},
			fmt.Errorf("verify payment %s: %w", reference, apperr.ErrAlreadyVerified)
	}
	if err != nil {
		return nil, fmt.Errorf("verify payment %s: %w", reference, err)
	}

	if nested := data.Get("payment"); nested.IsObject() {
		data = nested
	}
	var p domain.Payment
	if err := decode(data, "payment", &p); err != nil {
		return nil, err
	}
	return &domain.PaymentVerification{
		Reference: reference,
		Verified:  p.Status == domain.PaymentStatusCompleted,
		Status:    p.Status,
		Payment:   &p,
	}, nil
}

type initializePaymentRequest struct {
	OrderID     string `json:"orderId"`
	Method      string `json:"method"`
	CallbackURL string `json:"callbackUrl"`
}

// InitializePayment starts a card payment and returns where the customer must
// be sent. Either authorization URL field of the API is accepted.
func (c *Client) InitializePayment(ctx context.Context, orderID, callbackURL string) (*domain.PaymentInit, error) {
	data, err := c.do(ctx, http.MethodPost, "/payments/initialize", initializePaymentRequest{
		OrderID:     orderID,
		Method:      "card",
		CallbackURL: callbackURL,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize payment for %s: %w", orderID, err)
	}

	if nested := data.Get("payment"); nested.IsObject() {
		data = nested
	}
	authURL := data.Get("paystackAuthorizationUrl").String()
	if authURL == "" {
		authURL = data.Get("authorizationUrl").String()
	}
	if authURL == "" {
		return nil, fmt.Errorf("%w: no authorization URL returned", apperr.ErrMalformedResponse)
	}
	return &domain.PaymentInit{
		PaymentID:        data.Get("_id").String(),
		Reference:        data.Get("paystackReference").String(),
		AuthorizationURL: authURL,
	}, nil
}

func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	data, err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if nested := data.Get("user"); nested.IsObject() {
		data = nested
	}
	var p domain.Profile
	if err := decode(data, "profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Health(ctx context.Context) error {
	// Any 2xx counts, whatever the body looks like.
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil && !errors.Is(err, apperr.ErrMalformedResponse) {
		return fmt.Errorf("health: %w", err)
	}
	return nil
}
