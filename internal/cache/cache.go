// Package cache memoizes whole analysis reports per ticker for a freshness window.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/selivandex/thesis-engine/pkg/models"
)

// Cache stores reports by uppercased ticker
type Cache interface {
	Get(ctx context.Context, ticker string) (*models.Report, bool)
	Put(ctx context.Context, ticker string, report *models.Report, ttl time.Duration) error
}

type entry struct {
	report    *models.Report
	expiresAt time.Time
}

// Memory is an in-process cache with an injectable clock
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates memory cache. now may be nil to use time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the report while it is fresh; a stale entry is removed
func (m *Memory) Get(_ context.Context, ticker string) (*models.Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[ticker]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, ticker)
		return nil, false
	}
	return e.report, true
}

// Put stores report until now+ttl, replacing any previous entry
func (m *Memory) Put(_ context.Context, ticker string, report *models.Report, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[ticker] = entry{report: report, expiresAt: m.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, fresh or not yet purged
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
