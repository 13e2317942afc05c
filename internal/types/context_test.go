package types

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_123")
	assert.Equal(t, "req_123", GetRequestID(ctx))
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestLoggerFromContext(t *testing.T) {
	assert.Nil(t, LoggerFromContext(context.Background()))

	logger := NewSlogAdapter(slog.Default())
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
}

func TestSlogAdapterWithReturnsLogger(t *testing.T) {
	var l Logger = NewSlogAdapter(nil)
	child := l.With("kind", "activation")

	_, ok := child.(*SlogAdapter)
	assert.True(t, ok)
}
