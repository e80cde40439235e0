package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock keeps named leases in memory and counts calls.
type MockDistributedLock struct {
	mu      sync.Mutex
	leases  map[string]time.Time
	holders map[string]string

	Owner string

	AcquireFn func(name string, ttl time.Duration) (bool, error)

	Acquired int
	Released int
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		leases:  make(map[string]time.Time),
		holders: make(map[string]string),
		Owner:   "mock-owner",
	}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireFn != nil {
		return m.AcquireFn(name, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if until, ok := m.leases[name]; ok && time.Now().Before(until) {
		return false, nil
	}
	m.leases[name] = time.Now().Add(ttl)
	m.holders[name] = m.Owner
	m.Acquired++
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[name] == m.Owner {
		delete(m.leases, name)
		delete(m.holders, name)
		m.Released++
	}
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[name] != m.Owner {
		return fmt.Errorf("lock %s not held", name)
	}
	m.leases[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return nil
}

// HoldElsewhere marks a lock as held by another instance.
func (m *MockDistributedLock) HoldElsewhere(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[name] = time.Now().Add(ttl)
	m.holders[name] = "other-instance"
}

// IsHeld reports whether any instance holds name.
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.leases[name]
	return ok && time.Now().Before(until)
}
