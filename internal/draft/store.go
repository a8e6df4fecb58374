package draft

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/domain"
)

// Store keeps drafts for the lifetime of their flow. Implementations expire
// drafts after a period of inactivity; nothing outlives that window.
type Store interface {
	Get(ctx context.Context, id string) (*domain.OrderDraft, error)
	Save(ctx context.Context, d *domain.OrderDraft) error
	Delete(ctx context.Context, id string) error
	// Update applies fn to the stored draft and saves the result atomically.
	// Concurrent updates of one draft never overwrite each other. An error
	// from fn leaves the draft unchanged and is returned as is.
	Update(ctx context.Context, id string, fn func(*domain.OrderDraft) error) (*domain.OrderDraft, error)
}

type memoryEntry struct {
	draft     domain.OrderDraft
	expiresAt time.Time
}

type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	drafts map[string]memoryEntry
	now    func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:    ttl,
		drafts: make(map[string]memoryEntry),
		now:    time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.OrderDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.drafts[id]
	if !ok {
		return nil, apperr.ErrDraftNotFound
	}
	if m.now().After(e.expiresAt) {
		delete(m.drafts, id)
		return nil, apperr.ErrDraftNotFound
	}
	d := cloneDraft(e.draft)
	return &d, nil
}

func (m *MemoryStore) Save(_ context.Context, d *domain.OrderDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drafts[d.ID] = memoryEntry{draft: cloneDraft(*d), expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*domain.OrderDraft) error) (*domain.OrderDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.drafts[id]
	if !ok || m.now().After(e.expiresAt) {
		delete(m.drafts, id)
		return nil, apperr.ErrDraftNotFound
	}
	d := cloneDraft(e.draft)
	if err := fn(&d); err != nil {
		return nil, err
	}
	m.drafts[id] = memoryEntry{draft: cloneDraft(d), expiresAt: m.now().Add(m.ttl)}
	return &d, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.drafts, id)
	return nil
}

// Sweep drops expired drafts.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.drafts {
		if now.After(e.expiresAt) {
			delete(m.drafts, id)
			removed++
		}
	}
	return removed
}

func cloneDraft(d domain.OrderDraft) domain.OrderDraft {
	items := make([]domain.CartLine, len(d.Items))
	copy(items, d.Items)
	d.Items = items
	return d
}
