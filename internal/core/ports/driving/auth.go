package driving

import (
	"context"

	"github.com/custodia-labs/accountlink/internal/core/domain"
)

// AuthService authenticates bot API callers.
type AuthService interface {
	// IssueToken exchanges a bot API key for a bearer token.
	IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error)

	// ValidateToken validates a bearer token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
