package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	ctx = ContextWithCorrelationID(ctx, "corr-123")
	ctx = ContextWithRequestID(ctx, "req-456")
	ctx = ContextWithSessionID(ctx, "game-789")

	corr, ok := CorrelationIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "corr-123", corr)

	req, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-456", req)

	sess, ok := SessionIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "game-789", sess)
}

func TestMissingContextValues(t *testing.T) {
	ctx := context.Background()

	_, ok := CorrelationIDFromContext(ctx)
	assert.False(t, ok)
	_, ok = RequestIDFromContext(ctx)
	assert.False(t, ok)
	_, ok = SessionIDFromContext(ctx)
	assert.False(t, ok)
}

func TestGenerateIDs(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"correlation", GenerateCorrelationID, "corr_"},
		{"request", GenerateRequestID, "req_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1, id2 := tt.gen(), tt.gen()
			assert.True(t, strings.HasPrefix(id1, tt.prefix), id1)
			assert.NotEqual(t, id1, id2)
			assert.Len(t, strings.Split(id1, "_"), 2)
		})
	}
}
