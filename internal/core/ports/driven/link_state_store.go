package driven

import (
	"context"

	"github.com/custodia-labs/accountlink/internal/core/domain"
)

// LinkStateStore holds pending link states between the link request and the
// provider callback. Records are independent; implementations only need
// per-token atomicity.
type LinkStateStore interface {
	// Create issues a new token bound to subjectID and persists it.
	// The returned record is the single source of the token value.
	Create(ctx context.Context, subjectID string) (*domain.PendingLinkState, error)

	// Get looks a token up without side effects.
	// Returns domain.ErrNotFound if the token does not exist.
	// Expired records are still returned; callers decide on expiry.
	Get(ctx context.Context, token string) (*domain.PendingLinkState, error)

	// MarkUsed atomically flips used from false to true.
	// Returns true only for the one caller that performed the flip.
	// Returns false, nil when the token is absent or already used.
	MarkUsed(ctx context.Context, token string) (bool, error)

	// Delete removes a token. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// Cleanup removes expired records and reports how many were dropped.
	// Expiry is also evaluated lazily, so sweeping is optional.
	Cleanup(ctx context.Context) (int64, error)

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error
}
