package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"eventmail/internal/core"
	"eventmail/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// providerFunc adapts a function to external.EmailProvider.
type providerFunc func(ctx context.Context, in types.SendInput) (string, error)

func (f providerFunc) Send(ctx context.Context, in types.SendInput) (string, error) { return f(ctx, in) }

type stubQueue struct {
	mu    sync.Mutex
	reqs  []types.MailRequest
	msgID string
	err   error
}

func (q *stubQueue) Enqueue(_ context.Context, req types.MailRequest) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reqs = append(q.reqs, req)
	return q.msgID, q.err
}

type stubRecorder struct {
	mu   sync.Mutex
	recs []*types.DeliveryRecord
	err  error
}

func (r *stubRecorder) Record(_ context.Context, rec *types.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return r.err
}

// serve routes req through a chi router with the request id middleware, the
// way the API server mounts handlers under /v1.
func serve(t *testing.T, register func(chi.Router), method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(core.RequestIDMiddleware)
	r.Route("/v1", register)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Request-Id", "req-test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) core.ErrorDetail {
	t.Helper()
	var env core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}
