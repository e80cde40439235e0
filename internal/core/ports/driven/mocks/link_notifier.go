package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

var _ driven.LinkNotifier = (*MockLinkNotifier)(nil)

// MockLinkNotifier records notifications. Notified receives each mapping.
type MockLinkNotifier struct {
	mu       sync.Mutex
	notified []*domain.IdentityMapping

	Err      error
	Notified chan *domain.IdentityMapping
}

// NewMockLinkNotifier creates a notifier with a buffered Notified channel.
func NewMockLinkNotifier() *MockLinkNotifier {
	return &MockLinkNotifier{Notified: make(chan *domain.IdentityMapping, 16)}
}

func (m *MockLinkNotifier) NotifyLinked(ctx context.Context, mapping *domain.IdentityMapping) error {
	m.mu.Lock()
	m.notified = append(m.notified, mapping)
	m.mu.Unlock()

	select {
	case m.Notified <- mapping:
	default:
	}
	return m.Err
}

// Count returns how many notifications were sent.
func (m *MockLinkNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notified)
}
