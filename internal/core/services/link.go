package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
	"github.com/custodia-labs/accountlink/internal/core/ports/driving"
)

// Ensure linkService implements LinkService
var _ driving.LinkService = (*linkService)(nil)

const (
	defaultProviderTimeout = 10 * time.Second
	defaultNotifyTimeout   = 10 * time.Second
	cleanupTimeout         = 5 * time.Second
)

// LinkServiceConfig holds configuration for the link service.
type LinkServiceConfig struct {
	// StateStore holds pending link tokens.
	StateStore driven.LinkStateStore

	// MappingStore persists committed subject to account bindings.
	MappingStore driven.IdentityMappingStore

	// Provider is the external identity provider.
	Provider driven.IdentityProvider

	// Notifier is optional. When set, bot users are told about new links.
	Notifier driven.LinkNotifier

	Logger *slog.Logger

	// ProviderTimeout bounds each call to the provider (default: 10s).
	ProviderTimeout time.Duration

	// NotifyTimeout bounds a single notification (default: 10s).
	NotifyTimeout time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// linkService implements the LinkService interface.
type linkService struct {
	stateStore      driven.LinkStateStore
	mappingStore    driven.IdentityMappingStore
	provider        driven.IdentityProvider
	notifier        driven.LinkNotifier
	logger          *slog.Logger
	providerTimeout time.Duration
	notifyTimeout   time.Duration
	now             func() time.Time
}

// NewLinkService creates a new link service.
func NewLinkService(cfg LinkServiceConfig) driving.LinkService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	providerTimeout := cfg.ProviderTimeout
	if providerTimeout <= 0 {
		providerTimeout = defaultProviderTimeout
	}

	notifyTimeout := cfg.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &linkService{
		stateStore:      cfg.StateStore,
		mappingStore:    cfg.MappingStore,
		provider:        cfg.Provider,
		notifier:        cfg.Notifier,
		logger:          logger,
		providerTimeout: providerTimeout,
		notifyTimeout:   notifyTimeout,
		now:             now,
	}
}

// RequestLink issues a token bound to subjectID and builds the provider URL
// around it. The store generates the token; the URL and the response carry
// that same value.
func (s *linkService) RequestLink(ctx context.Context, subjectID string) (*driving.LinkResponse, error) {
	subjectID = strings.TrimSpace(subjectID)
	if err := domain.ValidateSubjectID(subjectID); err != nil {
		return nil, err
	}

	state, err := s.stateStore.Create(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("create link state: %w", err)
	}

	s.logger.InfoContext(ctx, "link requested",
		"subject_id", subjectID,
		"state", domain.ShortToken(state.Token),
		"expires_at", state.ExpiresAt,
	)

	return &driving.LinkResponse{
		AuthorizationURL: s.provider.AuthCodeURL(state.Token),
		Token:            state.Token,
		ExpiresAt:        state.ExpiresAt,
	}, nil
}

// HandleCallback runs the callback state machine:
// lookup, expiry, single use, mark used, exchange, profile, commit.
// Once the token has been found it is deleted on every way out.
func (s *linkService) HandleCallback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResult, error) {
	log := s.logger.With("state", domain.ShortToken(req.State))

	if req.State == "" {
		log.WarnContext(ctx, "callback without state")
		return nil, driving.ErrInvalidState
	}

	state, err := s.stateStore.Get(ctx, req.State)
	if errors.Is(err, domain.ErrNotFound) {
		log.WarnContext(ctx, "callback with unknown state")
		return nil, driving.ErrInvalidState
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to look up link state", "error", err)
		return nil, driving.ErrStoreUnavailable.WithCause(err)
	}

	defer s.cleanup(ctx, log, req.State)

	log = log.With("subject_id", state.SubjectID)

	if state.IsExpired(s.now()) {
		log.WarnContext(ctx, "callback with expired state", "expired_at", state.ExpiresAt)
		return nil, driving.ErrExpiredState
	}
	if state.Used {
		log.WarnContext(ctx, "callback replayed an already used state")
		return nil, driving.ErrStateAlreadyUsed
	}

	marked, err := s.stateStore.MarkUsed(ctx, req.State)
	if err != nil {
		log.ErrorContext(ctx, "failed to mark link state used", "error", err)
		return nil, driving.ErrStoreUnavailable.WithCause(err)
	}
	if !marked {
		log.WarnContext(ctx, "lost race for link state")
		return nil, driving.ErrStateAlreadyUsed
	}

	if req.Error != "" {
		log.WarnContext(ctx, "provider denied authorization", "provider_error", req.Error)
		return nil, &driving.LinkError{
			Code:        driving.CodeAuthorizationDenied,
			Description: driving.ErrAuthorizationDenied.Description,
			Err:         fmt.Errorf("provider returned %s: %s", req.Error, req.ErrorDescription),
		}
	}

	token, err := s.exchange(ctx, req.Code)
	if err != nil {
		log.ErrorContext(ctx, "token exchange failed", "error", err)
		return nil, driving.ErrTokenExchangeFailed.WithCause(err)
	}

	profile, err := s.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		log.ErrorContext(ctx, "profile fetch failed", "error", err)
		return nil, driving.ErrProfileFetchFailed.WithCause(err)
	}

	mapping, err := s.mappingStore.Upsert(ctx, state.SubjectID, profile.Email, s.now())
	if errors.Is(err, domain.ErrExternalAccountTaken) {
		log.WarnContext(ctx, "external account already linked to another subject")
		return nil, driving.ErrAccountAlreadyLinked.WithCause(err)
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to commit identity mapping", "error", err)
		return nil, driving.ErrCommitFailed.WithCause(err)
	}

	s.saveCredentials(ctx, log, mapping, token)

	log.InfoContext(ctx, "account linked", "external_account_id", mapping.ExternalAccountID)

	s.notify(ctx, log, mapping)

	return &driving.CallbackResult{
		Mapping: mapping,
		Message: fmt.Sprintf("Linked %s", mapping.ExternalAccountID),
	}, nil
}

// GetMapping returns the mapping for a subject.
func (s *linkService) GetMapping(ctx context.Context, subjectID string) (*domain.IdentityMapping, error) {
	subjectID = strings.TrimSpace(subjectID)
	if err := domain.ValidateSubjectID(subjectID); err != nil {
		return nil, err
	}
	return s.mappingStore.GetBySubject(ctx, subjectID)
}

// DeactivateMapping soft-disables the mapping for a subject.
func (s *linkService) DeactivateMapping(ctx context.Context, subjectID string) error {
	subjectID = strings.TrimSpace(subjectID)
	if err := domain.ValidateSubjectID(subjectID); err != nil {
		return err
	}
	if err := s.mappingStore.Deactivate(ctx, subjectID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "identity mapping deactivated", "subject_id", subjectID)
	return nil
}

func (s *linkService) exchange(ctx context.Context, code string) (*driven.ProviderToken, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("provider returned no access token")
	}
	return token, nil
}

func (s *linkService) fetchProfile(ctx context.Context, accessToken string) (*driven.ProviderProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	profile, err := s.provider.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.Email == "" {
		return nil, errors.New("profile has no email")
	}
	return profile, nil
}

// cleanup deletes the token even if the request context is already gone.
func (s *linkService) cleanup(ctx context.Context, log *slog.Logger, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.stateStore.Delete(ctx, token); err != nil {
		log.ErrorContext(ctx, "failed to delete link state", "error", err)
	}
}

func (s *linkService) saveCredentials(ctx context.Context, log *slog.Logger, mapping *domain.IdentityMapping, token *driven.ProviderToken) {
	if token.RefreshToken == "" {
		return
	}

	creds := &domain.ProviderCredentials{
		RefreshToken: token.RefreshToken,
		Scopes:       token.Scopes,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		creds.Expiry = &expiry
	}

	if err := s.mappingStore.SaveCredentials(ctx, mapping.SubjectID, creds); err != nil {
		log.WarnContext(ctx, "failed to store provider credentials", "error", err)
		return
	}
	mapping.Credentials = creds
}

func (s *linkService) notify(ctx context.Context, log *slog.Logger, mapping *domain.IdentityMapping) {
	if s.notifier == nil {
		return
	}

	notified := *mapping
	notified.Credentials = nil
	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyLinked(ctx, &notified); err != nil {
			log.WarnContext(ctx, "failed to notify linked subject", "error", err)
		}
	}()
}
