package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"eventmail/internal/app"
	"eventmail/internal/config"
)

func testDeps(t *testing.T, cfg *config.Config) *app.Deps {
	t.Helper()
	d, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func testConfig(env string) *config.Config {
	return &config.Config{
		Environment: env,
		Server:      config.ServerConfig{Port: "0", PublicURL: "https://app.eventmail.test"},
		Email: config.EmailConfig{
			SendGridAPIKey: "SG.test",
			BaseURL:        "http://127.0.0.1:1",
			FromAddress:    "no-reply@eventmail.app",
			FromName:       "EventMail",
		},
	}
}

func TestNewServer_RequiresKeyOutsideLocal(t *testing.T) {
	cfg := testConfig("prod")
	_, err := newServer(cfg, testDeps(t, cfg))
	assert.ErrorContains(t, err, "API_KEY_HASH")
}

func TestNewServer_LocalWithoutKey(t *testing.T) {
	cfg := testConfig("local")
	srv, err := newServer(cfg, testDeps(t, cfg))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/emails/activation", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "recipient is required")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/deliveries?email=a@b.co", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewServer_WithKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("k-123"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := testConfig("prod")
	cfg.Security.APIKeyHash = config.SecretString(hash)
	srv, err := newServer(cfg, testDeps(t, cfg))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/emails/activation", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/emails/activation", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer k-123")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_InvalidKeyHash(t *testing.T) {
	cfg := testConfig("prod")
	cfg.Security.APIKeyHash = "not-bcrypt"
	_, err := newServer(cfg, testDeps(t, cfg))
	assert.Error(t, err)
}
