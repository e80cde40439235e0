package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

var _ driven.LinkStateStore = (*MockLinkStateStore)(nil)

// MockLinkStateStore is an in-memory LinkStateStore with call counters and
// optional failure hooks.
type MockLinkStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.PendingLinkState

	TTL time.Duration
	Now func() time.Time

	// Optional hooks
	CreateFn   func(subjectID string) (*domain.PendingLinkState, error)
	GetFn      func(token string) (*domain.PendingLinkState, error)
	MarkUsedFn func(token string) (bool, error)
	DeleteFn   func(token string) error

	CreateCalls   int
	MarkUsedCalls int
	DeleteCalls   int
}

// NewMockLinkStateStore creates a new MockLinkStateStore
func NewMockLinkStateStore() *MockLinkStateStore {
	return &MockLinkStateStore{
		states: make(map[string]*domain.PendingLinkState),
		TTL:    domain.DefaultLinkStateTTL,
		Now:    time.Now,
	}
}

func (m *MockLinkStateStore) Create(ctx context.Context, subjectID string) (*domain.PendingLinkState, error) {
	if m.CreateFn != nil {
		return m.CreateFn(subjectID)
	}
	state, err := domain.NewPendingLinkState(subjectID, m.TTL, m.Now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.states[state.Token] = state
	copied := *state
	return &copied, nil
}

func (m *MockLinkStateStore) Get(ctx context.Context, token string) (*domain.PendingLinkState, error) {
	if m.GetFn != nil {
		return m.GetFn(token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (m *MockLinkStateStore) MarkUsed(ctx context.Context, token string) (bool, error) {
	m.mu.Lock()
	m.MarkUsedCalls++
	m.mu.Unlock()

	if m.MarkUsedFn != nil {
		return m.MarkUsedFn(token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[token]
	if !ok || state.Used {
		return false, nil
	}
	state.Used = true
	return true, nil
}

func (m *MockLinkStateStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	m.DeleteCalls++
	m.mu.Unlock()

	if m.DeleteFn != nil {
		return m.DeleteFn(token)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, token)
	return nil
}

func (m *MockLinkStateStore) Cleanup(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	var removed int64
	for token, state := range m.states {
		if state.IsExpired(now) {
			delete(m.states, token)
			removed++
		}
	}
	return removed, nil
}

func (m *MockLinkStateStore) Ping(ctx context.Context) error {
	return nil
}

// Put stores a state directly (for test setup).
func (m *MockLinkStateStore) Put(state *domain.PendingLinkState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[state.Token] = &copied
}

// Has reports whether a token is still stored (for test assertions).
func (m *MockLinkStateStore) Has(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.states[token]
	return ok
}

// Len returns the number of stored states.
func (m *MockLinkStateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
