package driving

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
)

// LinkService drives the account linking flow.
type LinkService interface {
	// RequestLink issues a link token for subjectID and returns the provider
	// authorization URL carrying that token as its state parameter.
	RequestLink(ctx context.Context, subjectID string) (*LinkResponse, error)

	// HandleCallback validates and consumes the token in req.State, exchanges the
	// code and commits the mapping. Failures are returned as *LinkError.
	HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)

	// GetMapping returns the mapping for a subject.
	GetMapping(ctx context.Context, subjectID string) (*domain.IdentityMapping, error)

	// DeactivateMapping soft-disables the mapping for a subject.
	DeactivateMapping(ctx context.Context, subjectID string) error
}

// LinkResponse contains the authorization URL and the token embedded in it.
// @Description Response containing the provider authorization URL
type LinkResponse struct {
	// AuthorizationURL is where the bot user should be sent.
	AuthorizationURL string `json:"authorizationUrl" example:"https://accounts.google.com/o/oauth2/auth?client_id=..."`

	// Token is the same value as the state parameter inside AuthorizationURL.
	Token string `json:"token" example:"bXlfbGlua190b2tlbl92YWx1ZQ"`

	// ExpiresAt is when the token stops being accepted.
	ExpiresAt time.Time `json:"expiresAt" example:"2024-01-15T10:10:00Z"`
}

// CallbackRequest represents the redirect from the identity provider.
// @Description OAuth callback parameters from provider redirect
type CallbackRequest struct {
	// Code is the authorization code from the provider.
	Code string `json:"code" example:"4/0AX4XfWh"`

	// State is the link token issued by RequestLink.
	State string `json:"state" example:"bXlfbGlua190b2tlbl92YWx1ZQ"`

	// Error is set if the provider returned an error.
	Error string `json:"error,omitempty" example:"access_denied"`

	// ErrorDescription provides details about the error.
	ErrorDescription string `json:"error_description,omitempty" example:"The user denied access"`
}

// CallbackResult describes a committed link.
// @Description Result of a successful link
type CallbackResult struct {
	Mapping *domain.IdentityMapping `json:"mapping"`

	// Message provides a human-readable status message.
	Message string `json:"message" example:"Linked u@x.com"`
}

// Link error codes
const (
	CodeInvalidState         = "invalid_state"
	CodeExpiredState         = "expired_state"
	CodeStateAlreadyUsed     = "state_already_used"
	CodeAuthorizationDenied  = "authorization_denied"
	CodeTokenExchangeFailed  = "token_exchange_failed"
	CodeProfileFetchFailed   = "profile_fetch_failed"
	CodeAccountAlreadyLinked = "account_already_linked"
	CodeCommitFailed         = "commit_failed"
	CodeStoreUnavailable     = "store_unavailable"
)

// LinkError is the tagged failure outcome of a callback.
type LinkError struct {
	Code        string `json:"error" example:"invalid_state"`
	Description string `json:"error_description" example:"Invalid or expired authentication state"`

	// Err is the underlying cause, if any. Not exposed to clients.
	Err error `json:"-"`
}

func (e *LinkError) Error() string {
	msg := e.Code
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// Is matches any LinkError carrying the same code.
func (e *LinkError) Is(target error) bool {
	var t *LinkError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus maps the error to a response status.
func (e *LinkError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidState, CodeExpiredState, CodeStateAlreadyUsed, CodeAuthorizationDenied:
		return http.StatusBadRequest
	case CodeAccountAlreadyLinked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WithCause returns a copy of e wrapping err.
func (e *LinkError) WithCause(err error) *LinkError {
	return &LinkError{Code: e.Code, Description: e.Description, Err: err}
}

// Callback failures
var (
	ErrInvalidState         = &LinkError{Code: CodeInvalidState, Description: "Invalid or expired authentication state"}
	ErrExpiredState         = &LinkError{Code: CodeExpiredState, Description: "Your authentication session has expired"}
	ErrStateAlreadyUsed     = &LinkError{Code: CodeStateAlreadyUsed, Description: "This authentication link has already been used"}
	ErrAuthorizationDenied  = &LinkError{Code: CodeAuthorizationDenied, Description: "Authorization was not granted"}
	ErrTokenExchangeFailed  = &LinkError{Code: CodeTokenExchangeFailed, Description: "Failed to exchange authorization code for tokens"}
	ErrProfileFetchFailed   = &LinkError{Code: CodeProfileFetchFailed, Description: "Failed to fetch account profile"}
	ErrAccountAlreadyLinked = &LinkError{Code: CodeAccountAlreadyLinked, Description: "This account is already linked to another user"}
	ErrCommitFailed         = &LinkError{Code: CodeCommitFailed, Description: "Failed to save the account link"}
	ErrStoreUnavailable     = &LinkError{Code: CodeStoreUnavailable, Description: "Link state storage is unavailable"}
)
