// Package service holds the storefront's order-creation flow and payment
// initiation on top of the laundry API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/cart"
	"github.com/fjod/go_laundry/internal/domain"
	"github.com/fjod/go_laundry/internal/draft"
	"github.com/fjod/go_laundry/internal/ledger"
	"github.com/fjod/go_laundry/internal/publisher"
	"github.com/fjod/go_laundry/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, in domain.CreateOrderInput, idempotencyKey string) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetProfile(ctx context.Context) (*domain.Profile, error)
	InitializePayment(ctx context.Context, orderID, callbackURL string) (*domain.PaymentInit, error)
}

type CatalogReader interface {
	Catalog(ctx context.Context) (domain.Catalog, error)
	Pricing(ctx context.Context, serviceID string, garment domain.GarmentType) (*domain.Pricing, error)
	Invalidate(ctx context.Context)
}

type Connectivity interface {
	Snapshot() bool
}

type Deps struct {
	Drafts    draft.Store
	Catalog   CatalogReader
	API       OrderAPI
	Ledger    ledger.Ledger
	Events    publisher.Publisher
	Online    Connectivity
	BranchID  string
	PublicURL string
	Logger    *zap.Logger
}

type OrderService struct {
	drafts    draft.Store
	catalog   CatalogReader
	api       OrderAPI
	ledger    ledger.Ledger
	events    publisher.Publisher
	online    Connectivity
	branchID  string
	publicURL string
	log       *zap.Logger
	now       func() time.Time
}

func NewOrderService(d Deps) *OrderService {
	s := &OrderService{
		drafts:    d.Drafts,
		catalog:   d.Catalog,
		api:       d.API,
		ledger:    d.Ledger,
		events:    d.Events,
		online:    d.Online,
		branchID:  d.BranchID,
		publicURL: d.PublicURL,
		log:       d.Logger,
		now:       time.Now,
	}
	if s.ledger == nil {
		s.ledger = ledger.NopLedger{}
	}
	if s.events == nil {
		s.events = publisher.NoopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// DraftView is a draft with its prices resolved against the current catalog.
type DraftView struct {
	Draft        *domain.OrderDraft  `json:"draft"`
	Lines        []cart.LineSubtotal `json:"lines"`
	Total        string              `json:"total"`
	CatalogStale bool                `json:"catalog_stale,omitempty"`
}

type ItemUpdate struct {
	ServiceID   string
	GarmentType domain.GarmentType
	Quantity    *int
	IsExpress   *bool
	Notes       *string
}

type Schedule struct {
	PickupDate        string
	PickupTimeSlot    domain.TimeSlot
	PickupAddressID   string
	DeliveryAddressID string
	Notes             string
}

func (s *OrderService) CreateDraft(ctx context.Context, userID string) (*domain.OrderDraft, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthorized
	}
	now := s.now().UTC()
	d := &domain.OrderDraft{
		ID:             uuid.NewString(),
		UserID:         userID,
		IdempotencyKey: uuid.NewString(),
		Items:          []domain.CartLine{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.drafts.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

// GetDraft loads a draft owned by userID. Drafts of other users are reported
// as missing.
func (s *OrderService) GetDraft(ctx context.Context, draftID, userID string) (*domain.OrderDraft, error) {
	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, apperr.ErrDraftNotFound
	}
	return d, nil
}

func (s *OrderService) ViewDraft(ctx context.Context, draftID, userID string) (*DraftView, error) {
	d, err := s.GetDraft(ctx, draftID, userID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, d), nil
}

func (s *OrderService) view(ctx context.Context, d *domain.OrderDraft) *DraftView {
	v := &DraftView{Draft: d}
	c, err := s.catalog.Catalog(ctx)
	if err != nil {
		// Lines priced against an empty catalog count as zero until it loads.
		logger.WithContext(ctx, s.log).Warn("catalog unavailable for draft totals", zap.Error(err))
		c = domain.Catalog{}
		v.CatalogStale = true
	}
	v.Lines = cart.LineSubtotals(d.Items, c)
	v.Total = cart.ComputeTotal(d.Items, c).StringFixed(2)
	return v
}

// AddItem adds one unit of a pair offered by an active service.
func (s *OrderService) AddItem(ctx context.Context, draftID, userID, serviceID string, garment domain.GarmentType) (*DraftView, error) {
	price, err := s.catalog.Pricing(ctx, serviceID, garment)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, draftID, userID, func(d *domain.OrderDraft) error {
		b := cart.NewBuilder(d.Items)
		b.AddItem(serviceID, garment, price)
		d.Items = b.Lines()
		return nil
	})
}

func (s *OrderService) RemoveItem(ctx context.Context, draftID, userID, serviceID string, garment domain.GarmentType) (*DraftView, error) {
	return s.mutate(ctx, draftID, userID, func(d *domain.OrderDraft) error {
		b := cart.NewBuilder(d.Items)
		b.RemoveItem(serviceID, garment)
		d.Items = b.Lines()
		return nil
	})
}

func (s *OrderService) UpdateItem(ctx context.Context, draftID, userID string, u ItemUpdate) (*DraftView, error) {
	var price *domain.Pricing
	if u.Quantity != nil && *u.Quantity > 0 {
		p, err := s.catalog.Pricing(ctx, u.ServiceID, u.GarmentType)
		if err != nil {
			return nil, err
		}
		price = p
	}
	return s.mutate(ctx, draftID, userID, func(d *domain.OrderDraft) error {
		b := cart.NewBuilder(d.Items)
		if u.Quantity != nil {
			b.SetQuantity(u.ServiceID, u.GarmentType, *u.Quantity, price)
		}
		if u.IsExpress != nil {
			b.SetExpress(u.ServiceID, u.GarmentType, *u.IsExpress)
		}
		if u.Notes != nil {
			b.SetNotes(u.ServiceID, u.GarmentType, *u.Notes)
		}
		d.Items = b.Lines()
		return nil
	})
}

// SetSchedule stores pickup details. They are validated on submit.
func (s *OrderService) SetSchedule(ctx context.Context, draftID, userID string, sc Schedule) (*DraftView, error) {
	return s.mutate(ctx, draftID, userID, func(d *domain.OrderDraft) error {
		d.PickupDate = sc.PickupDate
		d.PickupTimeSlot = sc.PickupTimeSlot
		d.PickupAddressID = sc.PickupAddressID
		d.DeliveryAddressID = sc.DeliveryAddressID
		d.Notes = sc.Notes
		return nil
	})
}

func (s *OrderService) DiscardDraft(ctx context.Context, draftID, userID string) error {
	if _, err := s.GetDraft(ctx, draftID, userID); err != nil {
		return err
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// mutate applies fn to the draft through the store so concurrent edits of
// one draft are serialized.
func (s *OrderService) mutate(ctx context.Context, draftID, userID string, fn func(*domain.OrderDraft) error) (*DraftView, error) {
	d, err := s.drafts.Update(ctx, draftID, func(d *domain.OrderDraft) error {
		if d.UserID != userID {
			return apperr.ErrDraftNotFound
		}
		if err := fn(d); err != nil {
			return err
		}
		d.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrDraftNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update draft: %w", err)
	}
	return s.view(ctx, d), nil
}

// Submit turns a draft into an order. The draft survives every failure so
// the customer can retry without re-entering anything.
func (s *OrderService) Submit(ctx context.Context, draftID, userID string) (*domain.Order, error) {
	log := logger.WithContext(ctx, s.log).With(zap.String("draft_id", draftID))

	d, err := s.GetDraft(ctx, draftID, userID)
	if err != nil {
		return nil, err
	}

	if err := draft.Validate(d); err != nil {
		return nil, err
	}

	if s.online != nil && !s.online.Snapshot() {
		return nil, apperr.ErrOffline
	}

	profile, err := s.api.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if err := draft.ValidateAddress(profile); err != nil {
		return nil, err
	}

	sub, err := s.ledger.GetSubmission(ctx, d.IdempotencyKey)
	if err != nil && !errors.Is(err, ledger.ErrSubmissionNotFound) {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if sub != nil {
		log.Info("duplicate submission detected",
			zap.String("idempotency_key", d.IdempotencyKey),
			zap.String("order_id", sub.OrderID))
		order, err := s.api.GetOrder(ctx, sub.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load submitted order: %w", err)
		}
		s.discard(ctx, d.ID, log)
		return order, nil
	}

	order, err := s.api.CreateOrder(ctx, s.orderInput(d, profile), d.IdempotencyKey)
	if err != nil {
		log.Warn("order creation failed", zap.Error(err))
		if rejectedByAPI(err) {
			// The cached catalog may still offer what the API no longer does.
			s.catalog.Invalidate(ctx)
		}
		return nil, err
	}
	log = log.With(zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))

	err = s.ledger.RecordSubmission(ctx, ledger.Submission{
		IdempotencyKey: d.IdempotencyKey,
		DraftID:        d.ID,
		UserID:         d.UserID,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CreatedAt:      s.now().UTC(),
	})
	switch {
	case errors.Is(err, ledger.ErrDuplicateSubmission):
		log.Info("submission already recorded")
	case err != nil:
		log.Warn("failed to record submission", zap.Error(err))
	}

	if err := s.events.Publish(ctx, publisher.Event{
		Type:    publisher.EventOrderSubmitted,
		OrderID: order.ID,
		UserID:  d.UserID,
		Payload: map[string]any{
			"order_number": order.OrderNumber,
			"items":        len(d.Items),
			"total":        order.Total.String(),
		},
	}); err != nil {
		log.Warn("failed to publish order event", zap.Error(err))
	}

	s.discard(ctx, d.ID, log)
	log.Info("order submitted")
	return order, nil
}

// rejectedByAPI reports whether the API refused the order content itself.
func rejectedByAPI(err error) bool {
	var re *apperr.RemoteError
	if !errors.As(err, &re) {
		return false
	}
	return re.Status == http.StatusBadRequest || re.Status == http.StatusUnprocessableEntity
}

func (s *OrderService) orderInput(d *domain.OrderDraft, profile *domain.Profile) domain.CreateOrderInput {
	items := make([]domain.CreateOrderItemInput, 0, len(d.Items))
	for _, l := range d.Items {
		items = append(items, domain.CreateOrderItemInput{
			ServiceID:   l.ServiceID,
			GarmentType: l.GarmentType,
			Quantity:    l.Quantity,
			IsExpress:   l.IsExpress,
			Notes:       l.Notes,
		})
	}
	// Each user has one address; it backs both pickup and delivery.
	return domain.CreateOrderInput{
		BranchID:        s.branchID,
		Items:           items,
		PickupDate:      d.PickupDate,
		PickupTimeSlot:  d.PickupTimeSlot,
		PickupAddress:   profile.Address,
		DeliveryAddress: profile.Address,
		CustomerNotes:   d.Notes,
	}
}

func (s *OrderService) discard(ctx context.Context, draftID string, log *zap.Logger) {
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		log.Warn("failed to delete submitted draft", zap.Error(err))
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.api.GetOrder(ctx, orderID)
}

// CallbackURL is where the gateway sends the customer back after paying.
func (s *OrderService) CallbackURL(orderID string) string {
	return fmt.Sprintf("%s/dashboard/orders/%s?payment_verify=true", s.publicURL, url.PathEscape(orderID))
}

func (s *OrderService) InitializePayment(ctx context.Context, orderID string) (*domain.PaymentInit, error) {
	if s.online != nil && !s.online.Snapshot() {
		return nil, apperr.ErrOffline
	}
	return s.api.InitializePayment(ctx, orderID, s.CallbackURL(orderID))
}
