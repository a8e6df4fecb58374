// Package connectivity tracks whether the laundry API is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store holds the online flag. The zero value is not usable; use NewStore.
type Store struct {
	mu        sync.RWMutex
	online    bool
	nextID    int
	listeners map[int]func(bool)
}

func NewStore(online bool) *Store {
	return &Store{online: online, listeners: make(map[int]func(bool))}
}

func (s *Store) Snapshot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// Set updates the flag and notifies listeners when it changes.
func (s *Store) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}

// Subscribe registers fn for changes and returns a function that removes it.
func (s *Store) Subscribe(fn func(bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

// Prober polls the API health endpoint and feeds the result into a Store.
type Prober struct {
	checker  HealthChecker
	store    *Store
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewProber(checker HealthChecker, store *Store, interval time.Duration, log *zap.Logger) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Prober{checker: checker, store: store, interval: interval, timeout: timeout, log: log}
}

func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Probe performs a single health check.
func (p *Prober) Probe(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Health(checkCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Debug("health probe failed", zap.Error(err))
	}
	p.store.Set(err == nil)
}
