// Package reconcile verifies a payment when a customer comes back from the
// gateway and refreshes the order from the API afterwards.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/domain"
	"github.com/fjod/go_laundry/internal/ledger"
	"github.com/fjod/go_laundry/internal/publisher"
	"go.uber.org/zap"
)

const (
	MsgVerified    = "payment verified successfully"
	MsgNotVerified = "payment could not be verified yet; it may take a moment to reflect"
)

type Verifier interface {
	VerifyPayment(ctx context.Context, reference string) (*domain.PaymentVerification, error)
}

type OrderFetcher interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// View receives the results of a verification. Calls are never made after
// the mount is unmounted.
type View interface {
	ShowOrder(o *domain.Order)
	Notify(n Notice)
	ReplaceURL(u url.URL)
}

type Reconciler struct {
	verifier Verifier
	orders   OrderFetcher
	ledger   ledger.Ledger
	events   publisher.Publisher
	timeout  time.Duration
	log      *zap.Logger
}

type Option func(*Reconciler)

func WithLedger(l ledger.Ledger) Option {
	return func(r *Reconciler) { r.ledger = l }
}

func WithPublisher(p publisher.Publisher) Option {
	return func(r *Reconciler) { r.events = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// WithTimeout bounds the whole verify and refetch sequence.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

func NewReconciler(verifier Verifier, orders OrderFetcher, opts ...Option) *Reconciler {
	r := &Reconciler{
		verifier: verifier,
		orders:   orders,
		ledger:   ledger.NopLedger{},
		events:   publisher.NoopPublisher{},
		timeout:  30 * time.Second,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount binds the reconciler to one view of one order.
func (r *Reconciler) Mount(orderID string, view View) *Mount {
	return r.MountContext(context.Background(), orderID, view)
}

// MountContext is Mount with the values of parent (credentials, trace) carried
// into the verification calls. Only Unmount cancels the work.
func (r *Reconciler) MountContext(parent context.Context, orderID string, view View) *Mount {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Mount{
		r:       r,
		orderID: orderID,
		view:    view,
		status:  StatusIdle,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

type Mount struct {
	r       *Reconciler
	orderID string
	view    View

	attempted atomic.Bool

	mu        sync.Mutex
	status    Status
	unmounted bool
	page      url.URL
	reported  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Trigger starts verification when u carries a payment return and this mount
// has not tried yet. It reports whether verification was started.
func (m *Mount) Trigger(u *url.URL) bool {
	if u == nil {
		return false
	}
	ret, ok := ParseReturn(u.Query())
	if !ok {
		return false
	}
	if !m.attempted.CompareAndSwap(false, true) {
		return false
	}

	m.mu.Lock()
	if m.unmounted {
		m.mu.Unlock()
		close(m.done)
		return false
	}
	m.transition(StatusVerifying)
	m.page = *u
	m.mu.Unlock()

	go m.run(ret, *u)
	return true
}

func (m *Mount) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Wait blocks until a started verification has finished or ctx is done.
func (m *Mount) Wait(ctx context.Context) error {
	if !m.attempted.Load() {
		return nil
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unmount cancels pending work. No view method is called once it returns.
func (m *Mount) Unmount() {
	m.mu.Lock()
	m.unmounted = true
	m.mu.Unlock()
	m.cancel()
}

// Release unmounts like Unmount and returns the status at that moment. When
// a verification was started but has not reported to the view yet, the view
// still gets the return parameters cleared and a notice that the payment may
// take a moment, so a reload never verifies the same return again.
func (m *Mount) Release() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.cancel()

	if m.unmounted {
		return m.status
	}
	m.unmounted = true
	if !m.attempted.Load() || m.reported || m.status == StatusIdle {
		return m.status
	}
	m.reported = true
	m.view.ReplaceURL(StripReturn(m.page))
	m.view.Notify(Notice{Level: NoticeWarning, Message: MsgNotVerified})
	m.r.log.Warn("payment verification still running at release", zap.String("order_id", m.orderID))
	return m.status
}

func (m *Mount) run(ret Return, current url.URL) {
	defer close(m.done)
	defer m.cancel()

	ctx, cancel := context.WithTimeout(m.ctx, m.r.timeout)
	defer cancel()
	log := m.r.log.With(zap.String("order_id", m.orderID), zap.String("reference", ret.Reference))

	verified, detail := m.verify(ctx, ret.Reference)

	var notice Notice
	if verified {
		order, err := m.r.orders.GetOrder(ctx, m.orderID)
		if err != nil {
			log.Warn("refetch after verification failed", zap.Error(err))
		} else {
			m.update(func() { m.view.ShowOrder(order) })
		}
		m.setStatus(StatusSucceeded)
		notice = Notice{Level: NoticeSuccess, Message: MsgVerified}
		log.Info("payment verified")
	} else {
		m.setStatus(StatusFailed)
		notice = Notice{Level: NoticeWarning, Message: MsgNotVerified}
		log.Warn("payment verification failed", zap.String("detail", detail))
	}

	stripped := StripReturn(current)
	m.update(func() {
		m.view.ReplaceURL(stripped)
		m.view.Notify(notice)
		m.reported = true
	})

	m.record(ret.Reference, verified, detail, log)
}

func (m *Mount) verify(ctx context.Context, reference string) (bool, string) {
	v, err := m.r.verifier.VerifyPayment(ctx, reference)
	switch {
	case errors.Is(err, apperr.ErrAlreadyVerified):
		return true, "already verified"
	case err != nil:
		return false, err.Error()
	case v == nil || !v.Verified:
		status := domain.PaymentStatus("unknown")
		if v != nil && v.Status != "" {
			status = v.Status
		}
		return false, fmt.Sprintf("payment status %s", status)
	}
	return true, ""
}

// record stores the attempt and emits an event. Failures here never reach the view.
func (m *Mount) record(reference string, verified bool, detail string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 5*time.Second)
	defer cancel()

	outcome, eventType := ledger.OutcomeFailed, publisher.EventPaymentVerificationFailed
	if verified {
		outcome, eventType = ledger.OutcomeVerified, publisher.EventPaymentVerified
	}

	if err := m.r.ledger.RecordVerification(ctx, ledger.Verification{
		Reference: reference,
		OrderID:   m.orderID,
		Outcome:   outcome,
		Detail:    detail,
	}); err != nil {
		log.Warn("failed to record verification", zap.Error(err))
	}

	if err := m.r.events.Publish(ctx, publisher.Event{
		Type:    eventType,
		OrderID: m.orderID,
		Payload: map[string]any{"reference": reference, "detail": detail},
	}); err != nil {
		log.Warn("failed to publish verification event", zap.Error(err))
	}
}

func (m *Mount) update(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted {
		return
	}
	fn()
}

func (m *Mount) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition(s)
}

// transition must be called with mu held.
func (m *Mount) transition(s Status) {
	if !m.status.CanTransitionTo(s) {
		m.r.log.Error("illegal reconcile transition",
			zap.String("from", m.status.String()),
			zap.String("to", s.String()))
		return
	}
	m.status = s
}
