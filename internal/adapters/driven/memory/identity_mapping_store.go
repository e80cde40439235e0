package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IdentityMappingStore = (*IdentityMappingStore)(nil)

// IdentityMappingStore keeps mappings in process memory with a secondary
// index enforcing one subject per external account.
type IdentityMappingStore struct {
	mu        sync.RWMutex
	bySubject map[string]domain.IdentityMapping
	byAccount map[string]string
}

// NewIdentityMappingStore creates an empty store.
func NewIdentityMappingStore() *IdentityMappingStore {
	return &IdentityMappingStore{
		bySubject: make(map[string]domain.IdentityMapping),
		byAccount: make(map[string]string),
	}
}

// Upsert creates or re-links the mapping for subjectID.
func (s *IdentityMappingStore) Upsert(ctx context.Context, subjectID, externalAccountID string, now time.Time) (*domain.IdentityMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byAccount[externalAccountID]; ok && owner != subjectID {
		return nil, domain.ErrExternalAccountTaken
	}

	mapping, exists := s.bySubject[subjectID]
	if !exists {
		mapping = domain.IdentityMapping{SubjectID: subjectID, CreatedAt: now}
	} else if mapping.ExternalAccountID != externalAccountID {
		delete(s.byAccount, mapping.ExternalAccountID)
		mapping.Credentials = nil
	}

	mapping.ExternalAccountID = externalAccountID
	mapping.LastUsedAt = now
	mapping.Active = true

	s.bySubject[subjectID] = mapping
	s.byAccount[externalAccountID] = subjectID

	return &mapping, nil
}

// GetBySubject returns the mapping for subjectID.
func (s *IdentityMappingStore) GetBySubject(ctx context.Context, subjectID string) (*domain.IdentityMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapping, ok := s.bySubject[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &mapping, nil
}

// GetByExternalAccount returns the mapping owning externalAccountID.
func (s *IdentityMappingStore) GetByExternalAccount(ctx context.Context, externalAccountID string) (*domain.IdentityMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subjectID, ok := s.byAccount[externalAccountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	mapping := s.bySubject[subjectID]
	return &mapping, nil
}

// SaveCredentials attaches provider credentials to a mapping.
func (s *IdentityMappingStore) SaveCredentials(ctx context.Context, subjectID string, creds *domain.ProviderCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.bySubject[subjectID]
	if !ok {
		return domain.ErrNotFound
	}
	if creds != nil {
		copied := *creds
		creds = &copied
	}
	mapping.Credentials = creds
	s.bySubject[subjectID] = mapping
	return nil
}

// Deactivate marks a mapping inactive.
func (s *IdentityMappingStore) Deactivate(ctx context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.bySubject[subjectID]
	if !ok {
		return domain.ErrNotFound
	}
	mapping.Active = false
	s.bySubject[subjectID] = mapping
	return nil
}

// Ping always succeeds.
func (s *IdentityMappingStore) Ping(ctx context.Context) error {
	return nil
}
