package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultLinkStateTTL is how long a pending link token stays valid.
	DefaultLinkStateTTL = 10 * time.Minute

	// LinkTokenBytes is the amount of randomness behind each link token.
	LinkTokenBytes = 32

	// MaxSubjectIDLength bounds the bot-side identifier accepted from clients.
	MaxSubjectIDLength = 64
)

// PendingLinkState is a short-lived, single-use record created when a bot user
// asks to link an account. The token doubles as the OAuth state parameter.
type PendingLinkState struct {
	Token     string    `json:"token"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
}

// NewPendingLinkState issues a fresh token for subjectID valid for ttl.
func NewPendingLinkState(subjectID string, ttl time.Duration, now time.Time) (*PendingLinkState, error) {
	if ttl <= 0 {
		ttl = DefaultLinkStateTTL
	}
	token, err := NewLinkToken()
	if err != nil {
		return nil, err
	}
	return &PendingLinkState{
		Token:     token,
		SubjectID: subjectID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// IsExpired reports whether the state is past its expiry at now.
func (s *PendingLinkState) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// NewLinkToken returns a URL-safe token carrying LinkTokenBytes of randomness.
func NewLinkToken() (string, error) {
	b := make([]byte, LinkTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ShortToken returns a prefix of a token that is safe to put in logs.
func ShortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}

// IdentityMapping binds a bot subject to an external provider account.
type IdentityMapping struct {
	SubjectID         string    `json:"subject_id"`
	ExternalAccountID string    `json:"external_account_id"`
	CreatedAt         time.Time `json:"created_at"`
	LastUsedAt        time.Time `json:"last_used_at"`
	Active            bool      `json:"active"`

	// Credentials holds provider tokens kept for later API access.
	// Never serialised.
	Credentials *ProviderCredentials `json:"-"`
}

// ProviderCredentials are the long-lived provider grants stored with a mapping.
type ProviderCredentials struct {
	RefreshToken string     `json:"refresh_token"`
	Scopes       []string   `json:"scopes,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

// IsEmpty reports whether there is nothing worth persisting.
func (c *ProviderCredentials) IsEmpty() bool {
	return c == nil || c.RefreshToken == ""
}

// ValidateSubjectID checks a bot-side identifier supplied by a client.
func ValidateSubjectID(subjectID string) error {
	trimmed := strings.TrimSpace(subjectID)
	if trimmed == "" {
		return fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > MaxSubjectIDLength {
		return fmt.Errorf("%w: subject id exceeds %d characters", ErrInvalidInput, MaxSubjectIDLength)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: subject id contains control characters", ErrInvalidInput)
		}
	}
	return nil
}
