package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHealth(t *testing.T, probes ...HealthProbe) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()
	srv := newTestServer(t)
	srv.Config.Build.Version = "1.2.3"
	srv.HealthProbes = probes

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func okProbe(name string) HealthProbe {
	return ProbeFunc{ProbeName: name, Fn: func(context.Context) error { return nil }}
}

func TestHandleHealth_NoProbes(t *testing.T) {
	rec, resp := runHealth(t)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	rec, resp := runHealth(t, okProbe("database"), okProbe("queue"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Components["database"].Status)
	assert.Equal(t, "healthy", resp.Components["queue"].Status)
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	bad := ProbeFunc{ProbeName: "database", Fn: func(context.Context) error { return errors.New("connection refused") }}
	rec, resp := runHealth(t, okProbe("queue"), bad)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "connection refused", resp.Components["database"].Message)
	assert.Equal(t, "healthy", resp.Components["queue"].Status)
}

func TestHandleHealth_PanickingProbe(t *testing.T) {
	bad := ProbeFunc{ProbeName: "database", Fn: func(context.Context) error { panic("nil pool") }}
	rec, resp := runHealth(t, bad)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, resp.Components["database"].Message, "probe panicked")
}

func TestHandleHealth_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := ProbeFunc{ProbeName: "queue", Fn: func(ctx context.Context) error {
		<-release
		return nil
	}}

	start := time.Now()
	rec, resp := runHealth(t, slow)

	assert.Less(t, time.Since(start), healthCheckTimeout+time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "health check timed out", resp.Components["queue"].Message)
}
