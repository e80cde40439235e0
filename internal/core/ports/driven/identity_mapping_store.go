package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
)

// IdentityMappingStore persists subject to external account bindings.
type IdentityMappingStore interface {
	// Upsert creates the mapping for subjectID with CreatedAt=LastUsedAt=now,
	// or overwrites ExternalAccountID and LastUsedAt on an existing one.
	// CreatedAt is never changed after creation. The mapping becomes active.
	// Returns domain.ErrExternalAccountTaken if another subject owns the account.
	Upsert(ctx context.Context, subjectID, externalAccountID string, now time.Time) (*domain.IdentityMapping, error)

	// GetBySubject returns domain.ErrNotFound if the subject has no mapping.
	GetBySubject(ctx context.Context, subjectID string) (*domain.IdentityMapping, error)

	// GetByExternalAccount returns domain.ErrNotFound if the account is unbound.
	GetByExternalAccount(ctx context.Context, externalAccountID string) (*domain.IdentityMapping, error)

	// SaveCredentials attaches provider credentials to an existing mapping.
	SaveCredentials(ctx context.Context, subjectID string, creds *domain.ProviderCredentials) error

	// Deactivate soft-disables a mapping.
	// Returns domain.ErrNotFound if the subject has no mapping.
	Deactivate(ctx context.Context, subjectID string) error

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error
}
