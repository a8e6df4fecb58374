package service

import (
	"context"
	"sync"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/domain"
	"github.com/fjod/go_laundry/internal/ledger"
	"github.com/fjod/go_laundry/internal/publisher"
	"github.com/shopspring/decimal"
)

// MockAPI implements OrderAPI for testing
type MockAPI struct {
	mu sync.Mutex

	Profile      *domain.Profile
	ProfileErr   error
	ProfileCalls int

	CreateErr         error
	CreateCalls       int
	CreatedInput      *domain.CreateOrderInput
	CreatedKey        string
	Orders            map[string]*domain.Order
	GetOrderCalls     int
	PaymentInit       *domain.PaymentInit
	PaymentCallbackTo string
}

func (m *MockAPI) CreateOrder(_ context.Context, in domain.CreateOrderInput, key string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.CreatedInput = &in
	m.CreatedKey = key
	return &domain.Order{
		ID:          "ord-1",
		OrderNumber: "WSH-0001",
		Status:      domain.OrderStatusPending,
		Total:       decimal.NewFromInt(1500),
	}, nil
}

func (m *MockAPI) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetOrderCalls++
	if o, ok := m.Orders[id]; ok {
		return o, nil
	}
	return nil, apperr.NewRemoteError(404, "Order not found")
}

func (m *MockAPI) GetProfile(context.Context) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProfileCalls++
	return m.Profile, m.ProfileErr
}

func (m *MockAPI) InitializePayment(_ context.Context, _ string, callbackURL string) (*domain.PaymentInit, error) {
	m.PaymentCallbackTo = callbackURL
	return m.PaymentInit, nil
}

// MockCatalog implements CatalogReader for testing
type MockCatalog struct {
	Services      []domain.Service
	Err           error
	Invalidations int
}

func (m *MockCatalog) Invalidate(context.Context) {
	m.Invalidations++
}

func (m *MockCatalog) Catalog(context.Context) (domain.Catalog, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return domain.NewCatalog(m.Services), nil
}

func (m *MockCatalog) Pricing(ctx context.Context, serviceID string, garment domain.GarmentType) (*domain.Pricing, error) {
	c, err := m.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	_, p, ok := c.Lookup(serviceID, garment)
	if !ok {
		return nil, apperr.ErrUnknownPair
	}
	return &p, nil
}

// MockLedger implements ledger.Ledger for testing
type MockLedger struct {
	ledger.NopLedger
	Existing    *ledger.Submission
	GetErr      error
	RecordErr   error
	Submissions []ledger.Submission
}

func (m *MockLedger) GetSubmission(context.Context, string) (*ledger.Submission, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if m.Existing == nil {
		return nil, ledger.ErrSubmissionNotFound
	}
	return m.Existing, nil
}

func (m *MockLedger) RecordSubmission(_ context.Context, s ledger.Submission) error {
	m.Submissions = append(m.Submissions, s)
	return m.RecordErr
}

// MockPublisher implements publisher.Publisher for testing
type MockPublisher struct {
	publisher.NoopPublisher
	Events []publisher.Event
}

func (m *MockPublisher) Publish(_ context.Context, e publisher.Event) error {
	m.Events = append(m.Events, e)
	return nil
}

type staticOnline bool

func (s staticOnline) Snapshot() bool { return bool(s) }
