package domain

import "time"

// TokenClaims is the payload of a bot API token.
type TokenClaims struct {
	// Client names the bot or service holding the token.
	Client    string `json:"client"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// IsExpired checks if the claims have expired at now.
func (c *TokenClaims) IsExpired(now time.Time) bool {
	return now.Unix() > c.ExpiresAt
}

// AuthContext identifies the authenticated bot API caller for a request.
type AuthContext struct {
	Client string `json:"client"`
}

// TokenRequest exchanges a bot API key for a bearer token.
type TokenRequest struct {
	Client string `json:"client" validate:"required,max=64"`
	APIKey string `json:"api_key" validate:"required"`
}

// TokenResponse is returned after a successful key exchange.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
