package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, userinfo http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-123",
			"refresh_token": "refresh-456",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "openid email",
		})
	})
	mux.HandleFunc("GET /userinfo", userinfo)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()

	p, err := NewProvider(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://bot.example.com/callback",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		HTTPClient:   srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func profileHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestNewProvider_RequiresCredentials(t *testing.T) {
	tests := []Config{
		{ClientSecret: "s", RedirectURL: "https://x"},
		{ClientID: "c", RedirectURL: "https://x"},
		{ClientID: "c", ClientSecret: "s"},
	}
	for i, cfg := range tests {
		if _, err := NewProvider(cfg); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p, err := NewProvider(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://bot.example.com/callback",
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	raw := p.AuthCodeURL("state-token")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host: got %q", u.Host)
	}

	q := u.Query()
	want := map[string]string{
		"state":                  "state-token",
		"client_id":              "client-id",
		"redirect_uri":           "https://bot.example.com/callback",
		"response_type":          "code",
		"access_type":            "offline",
		"prompt":                 "consent",
		"include_granted_scopes": "true",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
	if scope := q.Get("scope"); !strings.Contains(scope, "userinfo.email") || !strings.HasPrefix(scope, "openid") {
		t.Errorf("scope: got %q", scope)
	}
}

func TestProvider_Exchange(t *testing.T) {
	srv := newTestServer(t, profileHandler(t, `{}`))
	p := newTestProvider(t, srv)

	before := time.Now()
	tok, err := p.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok.AccessToken != "access-123" || tok.RefreshToken != "refresh-456" {
		t.Errorf("unexpected token: %+v", tok)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("token type: got %q", tok.TokenType)
	}
	if tok.Expiry.Before(before.Add(59 * time.Minute)) {
		t.Errorf("expiry too early: %v", tok.Expiry)
	}
	if len(tok.Scopes) != 2 || tok.Scopes[0] != "openid" {
		t.Errorf("scopes: got %v", tok.Scopes)
	}
}

func TestProvider_ExchangeRejected(t *testing.T) {
	srv := newTestServer(t, profileHandler(t, `{}`))
	p := newTestProvider(t, srv)

	if _, err := p.Exchange(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected exchange error")
	}
}

func TestProvider_FetchProfile(t *testing.T) {
	srv := newTestServer(t, profileHandler(t,
		`{"email":"user@example.com","verified_email":true,"name":"Test User","picture":"https://img"}`))
	p := newTestProvider(t, srv)

	profile, err := p.FetchProfile(context.Background(), "access-123")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if profile.Email != "user@example.com" || !profile.VerifiedEmail {
		t.Errorf("unexpected profile: %+v", profile)
	}
	if profile.Name != "Test User" || profile.Picture != "https://img" {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestProvider_FetchProfileErrors(t *testing.T) {
	srv := newTestServer(t, profileHandler(t, `{"name":"No Email"}`))
	p := newTestProvider(t, srv)

	if _, err := p.FetchProfile(context.Background(), "access-123"); !errors.Is(err, ErrNoEmail) {
		t.Errorf("missing email: expected ErrNoEmail, got %v", err)
	}

	_, err := p.FetchProfile(context.Background(), "wrong-token")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("bad token: expected 401 error, got %v", err)
	}
}

func TestProvider_FetchProfileHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	p := newTestProvider(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := p.FetchProfile(ctx, "access-123"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
