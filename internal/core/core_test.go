package core

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"eventmail/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(&config.Config{Environment: "local"}, discardLogger())
	require.NoError(t, err)
	return srv
}

func decodeError(t *testing.T, body *bytes.Buffer) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp.Error
}
