package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

var _ driven.IdentityMappingStore = (*MockIdentityMappingStore)(nil)

// MockIdentityMappingStore is an in-memory IdentityMappingStore for testing
type MockIdentityMappingStore struct {
	mu       sync.RWMutex
	mappings map[string]*domain.IdentityMapping

	UpsertFn          func(subjectID, externalAccountID string, now time.Time) (*domain.IdentityMapping, error)
	SaveCredentialsFn func(subjectID string, creds *domain.ProviderCredentials) error

	UpsertCalls int
}

// NewMockIdentityMappingStore creates a new MockIdentityMappingStore
func NewMockIdentityMappingStore() *MockIdentityMappingStore {
	return &MockIdentityMappingStore{
		mappings: make(map[string]*domain.IdentityMapping),
	}
}

func (m *MockIdentityMappingStore) Upsert(ctx context.Context, subjectID, externalAccountID string, now time.Time) (*domain.IdentityMapping, error) {
	m.mu.Lock()
	m.UpsertCalls++
	m.mu.Unlock()

	if m.UpsertFn != nil {
		return m.UpsertFn(subjectID, externalAccountID, now)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.mappings {
		if other.ExternalAccountID == externalAccountID && other.SubjectID != subjectID {
			return nil, domain.ErrExternalAccountTaken
		}
	}

	mapping, ok := m.mappings[subjectID]
	if !ok {
		mapping = &domain.IdentityMapping{SubjectID: subjectID, CreatedAt: now}
		m.mappings[subjectID] = mapping
	}
	mapping.ExternalAccountID = externalAccountID
	mapping.LastUsedAt = now
	mapping.Active = true

	copied := *mapping
	return &copied, nil
}

func (m *MockIdentityMappingStore) GetBySubject(ctx context.Context, subjectID string) (*domain.IdentityMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mapping, ok := m.mappings[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *mapping
	return &copied, nil
}

func (m *MockIdentityMappingStore) GetByExternalAccount(ctx context.Context, externalAccountID string) (*domain.IdentityMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mapping := range m.mappings {
		if mapping.ExternalAccountID == externalAccountID {
			copied := *mapping
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIdentityMappingStore) SaveCredentials(ctx context.Context, subjectID string, creds *domain.ProviderCredentials) error {
	if m.SaveCredentialsFn != nil {
		return m.SaveCredentialsFn(subjectID, creds)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.mappings[subjectID]
	if !ok {
		return domain.ErrNotFound
	}
	mapping.Credentials = creds
	return nil
}

func (m *MockIdentityMappingStore) Deactivate(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapping, ok := m.mappings[subjectID]
	if !ok {
		return domain.ErrNotFound
	}
	mapping.Active = false
	return nil
}

func (m *MockIdentityMappingStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored mappings.
func (m *MockIdentityMappingStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mappings)
}
