package mocks

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

var _ driven.IdentityProvider = (*MockIdentityProvider)(nil)

// MockIdentityProvider is a scripted IdentityProvider.
// By default every code exchanges to AccessToken and the profile has Email.
type MockIdentityProvider struct {
	mu sync.Mutex

	AccessToken string
	Email       string

	ExchangeFn     func(ctx context.Context, code string) (*driven.ProviderToken, error)
	FetchProfileFn func(ctx context.Context, accessToken string) (*driven.ProviderProfile, error)

	ExchangeCalls     int
	FetchProfileCalls int
	LastCode          string
	LastAccessToken   string
}

// NewMockIdentityProvider creates a provider returning accessToken and email.
func NewMockIdentityProvider(accessToken, email string) *MockIdentityProvider {
	return &MockIdentityProvider{AccessToken: accessToken, Email: email}
}

func (m *MockIdentityProvider) AuthCodeURL(state string) string {
	return "https://provider.test/auth?state=" + url.QueryEscape(state)
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string) (*driven.ProviderToken, error) {
	m.mu.Lock()
	m.ExchangeCalls++
	m.LastCode = code
	m.mu.Unlock()

	if m.ExchangeFn != nil {
		return m.ExchangeFn(ctx, code)
	}
	if code == "" {
		return nil, errors.New("empty code")
	}
	return &driven.ProviderToken{AccessToken: m.AccessToken, TokenType: "Bearer"}, nil
}

func (m *MockIdentityProvider) FetchProfile(ctx context.Context, accessToken string) (*driven.ProviderProfile, error) {
	m.mu.Lock()
	m.FetchProfileCalls++
	m.LastAccessToken = accessToken
	m.mu.Unlock()

	if m.FetchProfileFn != nil {
		return m.FetchProfileFn(ctx, accessToken)
	}
	if accessToken != m.AccessToken {
		return nil, errors.New("unknown access token")
	}
	return &driven.ProviderProfile{Email: m.Email, VerifiedEmail: true}, nil
}

// Calls returns the exchange and profile call counts.
func (m *MockIdentityProvider) Calls() (exchange, profile int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExchangeCalls, m.FetchProfileCalls
}
