package driven

import "github.com/custodia-labs/accountlink/internal/core/domain"

// AuthAdapter handles the cryptographic side of bot API authentication.
type AuthAdapter interface {
	// API key operations
	HashAPIKey(key string) (string, error)
	VerifyAPIKey(key, hash string) bool

	// Token operations
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}

