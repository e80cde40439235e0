package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driving"
	"github.com/custodia-labs/accountlink/internal/metrics"
)

// readyCheckTimeout bounds each dependency ping in /ready.
const readyCheckTimeout = 2 * time.Second

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// ValidationErrorResponse lists invalid request fields
// @Description Request validation failure
type ValidationErrorResponse struct {
	Error  string            `json:"error" example:"invalid request"`
	Fields map[string]string `json:"fields"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports each dependency check
// @Description Readiness status per dependency
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// RootResponse identifies the service at /
// @Description Service banner
type RootResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message" example:"account link service is running"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// linkQuery is the validated input of /link.
type linkQuery struct {
	SubjectID string `query:"subjectId" validate:"required,max=64"`
}

// Health endpoints

// handleRoot godoc
// @Summary      Service status
// @Tags         Health
// @Produce      json
// @Success      200  {object}  RootResponse
// @Router       / [get]
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Status: "ok", Message: "account link service is running"})
}

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the configured stores and lock backend
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		err := check.Ping(ctx)
		cancel()

		if err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Link flow

// handleLink godoc
// @Summary      Start account linking
// @Description  Issues a single-use link token for a bot subject and returns the Google consent URL carrying it.
// @Description  Browsers (Accept: text/html) or format=html get an auto-redirect page instead of JSON.
// @Tags         Linking
// @Produce      json,html
// @Param        subjectId         query     string  false  "Bot subject id (Telegram user id)"
// @Param        telegram_user_id  query     string  false  "Alias of subjectId"
// @Param        format            query     string  false  "json or html"
// @Success      200  {object}  driving.LinkResponse
// @Failure      400  {object}  ValidationErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /link [get]
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	subjectID := query.Get("subjectId")
	if subjectID == "" {
		subjectID = query.Get("telegram_user_id")
	}

	in := linkQuery{SubjectID: strings.TrimSpace(subjectID)}
	if err := s.validator.ValidateStruct(in); err != nil {
		metrics.LinkRequestsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:  "invalid request",
			Fields: FormatValidationError(err),
		})
		return
	}

	resp, err := s.linkService.RequestLink(r.Context(), in.SubjectID)
	if errors.Is(err, domain.ErrInvalidInput) {
		metrics.LinkRequestsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		metrics.LinkRequestsTotal.WithLabelValues("error").Inc()
		s.logger.ErrorContext(r.Context(), "failed to create link", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create link")
		return
	}

	metrics.LinkRequestsTotal.WithLabelValues("issued").Inc()

	if prefersHTML(r, false) {
		writeHTML(w, http.StatusOK, redirectPage(resp.AuthorizationURL))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCallback godoc
// @Summary      OAuth callback
// @Description  Receives the provider redirect, consumes the link token and commits the identity mapping.
// @Description  Responds with an HTML page unless the client asks for JSON.
// @Tags         Linking
// @Produce      html,json
// @Param        state              query     string  true   "Link token"
// @Param        code               query     string  false  "Authorization code"
// @Param        error              query     string  false  "Provider error"
// @Param        error_description  query     string  false  "Provider error details"
// @Success      200  {object}  driving.CallbackResult
// @Failure      400  {object}  driving.LinkError  "invalid_state, expired_state, state_already_used, authorization_denied"
// @Failure      409  {object}  driving.LinkError  "account_already_linked"
// @Failure      500  {object}  driving.LinkError  "token_exchange_failed, profile_fetch_failed, commit_failed, store_unavailable"
// @Router       /callback [get]
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := driving.CallbackRequest{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	html := prefersHTML(r, true)

	result, err := s.linkService.HandleCallback(r.Context(), req)
	if err != nil {
		le := asLinkError(err)
		metrics.CallbacksTotal.WithLabelValues(le.Code).Inc()

		if html {
			writeHTML(w, le.HTTPStatus(), failurePage(le))
			return
		}
		writeJSON(w, le.HTTPStatus(), le)
		return
	}

	metrics.CallbacksTotal.WithLabelValues("success").Inc()

	if html {
		writeHTML(w, http.StatusOK, successPage(result.Mapping.ExternalAccountID))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// asLinkError recovers the tagged failure, falling back to a generic one.
func asLinkError(err error) *driving.LinkError {
	var le *driving.LinkError
	if errors.As(err, &le) {
		return le
	}
	return &driving.LinkError{
		Code:        "internal_error",
		Description: "Unexpected error while linking the account",
		Err:         err,
	}
}

// Bot API

// handleIssueToken godoc
// @Summary      Issue bot API token
// @Description  Exchanges a bot client name and API key for a bearer token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.TokenRequest  true  "Client credentials"
// @Success      200      {object}  domain.TokenResponse
// @Failure      400      {object}  ValidationErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Router       /api/v1/auth/token [post]
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:  "invalid request",
			Fields: FormatValidationError(err),
		})
		return
	}

	resp, err := s.authService.IssueToken(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid request")
		default:
			s.logger.ErrorContext(r.Context(), "failed to issue token", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to issue token")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetMapping godoc
// @Summary      Get identity mapping
// @Description  Returns the linked external account for a bot subject
// @Tags         Mappings
// @Produce      json
// @Security     BearerAuth
// @Param        subjectId  path      string  true  "Bot subject id"
// @Success      200        {object}  domain.IdentityMapping
// @Failure      400        {object}  ErrorResponse
// @Failure      401        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /api/v1/mappings/{subjectId} [get]
func (s *Server) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	mapping, err := s.linkService.GetMapping(r.Context(), r.PathValue("subjectId"))
	if err != nil {
		s.writeMappingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

// handleDeactivateMapping godoc
// @Summary      Deactivate identity mapping
// @Description  Soft-disables the mapping for a bot subject; a later link reactivates it
// @Tags         Mappings
// @Produce      json
// @Security     BearerAuth
// @Param        subjectId  path      string  true  "Bot subject id"
// @Success      200        {object}  StatusResponse
// @Failure      401        {object}  ErrorResponse
// @Failure      404        {object}  ErrorResponse
// @Router       /api/v1/mappings/{subjectId}/deactivate [post]
func (s *Server) handleDeactivateMapping(w http.ResponseWriter, r *http.Request) {
	if err := s.linkService.DeactivateMapping(r.Context(), r.PathValue("subjectId")); err != nil {
		s.writeMappingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "deactivated"})
}

func (s *Server) writeMappingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "mapping not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "mapping lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
