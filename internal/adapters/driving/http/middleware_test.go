package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/logger"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "valid bearer token",
			header:   "Bearer abc123",
			expected: "abc123",
		},
		{
			name:     "bearer with extra spaces",
			header:   "Bearer   token-with-spaces   ",
			expected: "token-with-spaces",
		},
		{
			name:     "lowercase bearer",
			header:   "bearer token123",
			expected: "token123",
		},
		{
			name:     "empty header",
			header:   "",
			expected: "",
		},
		{
			name:     "no bearer prefix",
			header:   "token123",
			expected: "",
		},
		{
			name:     "basic auth",
			header:   "Basic dXNlcjpwYXNz",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			result := extractBearerToken(req)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetAuthContext(t *testing.T) {
	if GetAuthContext(context.Background()) != nil {
		t.Error("expected nil for context without auth")
	}

	authCtx := &domain.AuthContext{Client: "telegram-bot"}
	ctx := context.WithValue(context.Background(), authContextKey, authCtx)

	result := GetAuthContext(ctx)
	if result == nil {
		t.Fatal("expected auth context to be returned")
	}
	if result.Client != "telegram-bot" {
		t.Errorf("expected client telegram-bot, got %s", result.Client)
	}
}

func TestRequestIDMiddleware_Generates(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logger.RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	NewRequestIDMiddleware().Handler(handler).ServeHTTP(rr, req)

	if seen == "" {
		t.Fatal("expected request id in context")
	}
	if got := rr.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("expected response header %q, got %q", seen, got)
	}
}

func TestRequestIDMiddleware_ReusesIncoming(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logger.RequestIDFromContext(r.Context())
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	NewRequestIDMiddleware().Handler(handler).ServeHTTP(rr, req)

	if seen != "req-42" {
		t.Errorf("expected incoming id to be reused, got %q", seen)
	}
}

func TestRequestIDMiddleware_RejectsOversized(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logger.RequestIDFromContext(r.Context())
	})

	incoming := strings.Repeat("x", maxRequestIDLength+1)
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rr := httptest.NewRecorder()
	NewRequestIDMiddleware().Handler(handler).ServeHTTP(rr, req)

	if seen == incoming || seen == "" {
		t.Errorf("expected a generated id, got %q", seen)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "info", Format: "json", Service: "test"}, &buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	chain := NewRequestIDMiddleware().Handler(NewLoggingMiddleware(log).Handler(handler))

	req := httptest.NewRequest("GET", "/callback?state=secret-token&code=secret-code", nil)
	req.Header.Set(RequestIDHeader, "req-log")
	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, req)

	out := buf.String()
	if !strings.Contains(out, `"status":418`) {
		t.Errorf("expected status in log, got %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-log"`) {
		t.Errorf("expected request id in log, got %s", out)
	}
	if !strings.Contains(out, `"path":"/callback"`) {
		t.Errorf("expected path in log, got %s", out)
	}
	if strings.Contains(out, "secret-token") || strings.Contains(out, "secret-code") {
		t.Errorf("query string leaked into log: %s", out)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	middleware := NewRecoveryMiddleware(logger.New(logger.DefaultConfig(), &buf))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	// Should not panic
	middleware.Handler(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "test panic") {
		t.Errorf("expected panic to be logged, got %s", buf.String())
	}
}

func TestCORSMiddleware(t *testing.T) {
	middleware := NewCORSMiddleware([]string{"https://example.com"})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()

	middleware.Handler(handler).ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Errorf("expected CORS origin header to be set")
	}
	if rr.Header().Get("Vary") != "Origin" {
		t.Errorf("expected Vary: Origin, got %q", rr.Header().Get("Vary"))
	}

	// Preflight
	req = httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://example.com")
	rr = httptest.NewRecorder()

	middleware.Handler(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for preflight, got %d", rr.Code)
	}
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	middleware := NewCORSMiddleware([]string{"*"})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://bot.example.org")
	rr := httptest.NewRecorder()

	middleware.Handler(handler).ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "https://bot.example.org" {
		t.Errorf("expected origin to be echoed, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	middleware := NewCORSMiddleware([]string{"https://example.com"})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()

	middleware.Handler(handler).ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS header for disallowed origin")
	}
}

func TestResponseWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rw.statusCode)
	}
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected underlying status 404, got %d", rr.Code)
	}
}

func TestAuthMiddleware_Authenticate_MissingToken(t *testing.T) {
	middleware := NewAuthMiddleware(&mockAuthService{})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest("GET", "/api/v1/mappings/42", nil)
	rr := httptest.NewRecorder()

	middleware.Authenticate(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestAuthMiddleware_Authenticate_Success(t *testing.T) {
	authService := &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			if token != "good-token" {
				t.Errorf("unexpected token %q", token)
			}
			return &domain.AuthContext{Client: "telegram-bot"}, nil
		},
	}
	middleware := NewAuthMiddleware(authService)

	var got *domain.AuthContext
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuthContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/v1/mappings/42", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()

	middleware.Authenticate(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if got == nil || got.Client != "telegram-bot" {
		t.Errorf("expected auth context for telegram-bot, got %+v", got)
	}
}

func TestAuthMiddleware_Authenticate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"expired", domain.ErrTokenExpired, "token expired"},
		{"wrapped expired", errors.Join(errors.New("parse"), domain.ErrTokenExpired), "token expired"},
		{"invalid", domain.ErrTokenInvalid, "invalid token"},
		{"other", errors.New("boom"), "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authService := &mockAuthService{
				validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
					return nil, tt.err
				},
			}

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			})

			req := httptest.NewRequest("GET", "/api/v1/mappings/42", nil)
			req.Header.Set("Authorization", "Bearer some-token")
			rr := httptest.NewRecorder()

			NewAuthMiddleware(authService).Authenticate(handler).ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.message) {
				t.Errorf("expected %q in body, got %s", tt.message, rr.Body.String())
			}
		})
	}
}
