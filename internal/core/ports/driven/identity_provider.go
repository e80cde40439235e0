package driven

import (
	"context"
	"time"
)

// ProviderToken is the result of exchanging an authorization code.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scopes       []string
}

// ProviderProfile is the subset of the provider user profile we rely on.
type ProviderProfile struct {
	// Email identifies the external account. Always non-empty.
	Email         string
	VerifiedEmail bool
	Name          string
	Picture       string
}

// IdentityProvider talks to the external OAuth2 identity provider.
// Exchange and FetchProfile perform network I/O and honour ctx deadlines.
type IdentityProvider interface {
	// AuthCodeURL builds the consent URL carrying state as the anti-forgery value.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*ProviderToken, error)

	// FetchProfile retrieves the account profile for an access token.
	// A response without an email is an error.
	FetchProfile(ctx context.Context, accessToken string) (*ProviderProfile, error)
}
