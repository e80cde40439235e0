package driven

import (
	"context"

	"github.com/custodia-labs/accountlink/internal/core/domain"
)

// LinkNotifier tells the bot user that a link completed. Best effort.
type LinkNotifier interface {
	NotifyLinked(ctx context.Context, mapping *domain.IdentityMapping) error
}
