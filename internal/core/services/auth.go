package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
	"github.com/custodia-labs/accountlink/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// DefaultTokenTTL is the lifetime of bot API tokens.
const DefaultTokenTTL = time.Hour

// AuthServiceConfig holds configuration for the bot API auth service.
type AuthServiceConfig struct {
	Adapter driven.AuthAdapter

	// Clients maps a client name to the hash of its API key.
	Clients map[string]string

	TokenTTL time.Duration
	Now      func() time.Time
}

// authService implements the AuthService interface
type authService struct {
	authAdapter driven.AuthAdapter
	clients     map[string]string
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg AuthServiceConfig) driving.AuthService {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &authService{
		authAdapter: cfg.Adapter,
		clients:     cfg.Clients,
		tokenTTL:    ttl,
		now:         now,
	}
}

// IssueToken checks a client's API key and signs a bearer token for it
func (s *authService) IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error) {
	if req.Client == "" || req.APIKey == "" {
		return nil, domain.ErrInvalidInput
	}

	hash, ok := s.clients[req.Client]
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if !s.authAdapter.VerifyAPIKey(req.APIKey, hash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	token, err := s.authAdapter.GenerateToken(&domain.TokenClaims{
		Client:    req.Client,
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken validates a bearer token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if errors.Is(err, domain.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	if claims.IsExpired(s.now()) {
		return nil, domain.ErrTokenExpired
	}

	// Tokens die with their client
	if _, ok := s.clients[claims.Client]; !ok {
		return nil, domain.ErrUnauthorized
	}

	return &domain.AuthContext{Client: claims.Client}, nil
}
