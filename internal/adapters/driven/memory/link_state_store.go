package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LinkStateStore = (*LinkStateStore)(nil)

// LinkStateStore keeps pending link states in process memory.
// Suitable for single-instance deployments; states do not survive restarts.
type LinkStateStore struct {
	mu     sync.Mutex
	states map[string]domain.PendingLinkState
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkStateStore creates a store issuing tokens valid for ttl.
func NewLinkStateStore(ttl time.Duration) *LinkStateStore {
	if ttl <= 0 {
		ttl = domain.DefaultLinkStateTTL
	}
	return &LinkStateStore{
		states: make(map[string]domain.PendingLinkState),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Create issues and stores a new token.
func (s *LinkStateStore) Create(ctx context.Context, subjectID string) (*domain.PendingLinkState, error) {
	state, err := domain.NewPendingLinkState(subjectID, s.ttl, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.states[state.Token] = *state
	s.mu.Unlock()

	return state, nil
}

// Get returns a copy of the stored state.
func (s *LinkStateStore) Get(ctx context.Context, token string) (*domain.PendingLinkState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

// MarkUsed flips used under the store lock.
func (s *LinkStateStore) MarkUsed(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[token]
	if !ok || state.Used {
		return false, nil
	}
	state.Used = true
	s.states[token] = state
	return true, nil
}

// Delete removes a token if present.
func (s *LinkStateStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.states, token)
	s.mu.Unlock()
	return nil
}

// Cleanup drops every expired state.
func (s *LinkStateStore) Cleanup(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for token, state := range s.states {
		if state.IsExpired(now) {
			delete(s.states, token)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (s *LinkStateStore) Ping(ctx context.Context) error {
	return nil
}
