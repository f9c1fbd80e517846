package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dmmcquay/goban-mcp/internal/config"
	"github.com/dmmcquay/goban-mcp/internal/logging"
	"github.com/dmmcquay/goban-mcp/internal/metrics"
	"github.com/dmmcquay/goban-mcp/internal/ratelimit"
)

// counterValue sums every series of a counter family whose labels include
// want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func request(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func TestWrapToolOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMiddleware(logging.NewNop(), metrics.NewPrometheusCollector(reg), nil)

	tests := []struct {
		name      string
		handler   ToolHandler
		wantErr   bool
		status    string
		errorType string
	}{
		{
			name: "success",
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("done"), nil
			},
			status: "success",
		},
		{
			name: "rejection",
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("KoViolation: illegal move at (4,4): ko"), nil
			},
			status:    "rejected",
			errorType: "KoViolation",
		},
		{
			name: "failure",
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("broken")
			},
			wantErr:   true,
			status:    "error",
			errorType: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.WrapTool(tt.name, tt.handler)(context.Background(), request(nil))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, 1.0, counterValue(t, reg, "goban_mcp_tool_calls_total",
				map[string]string{"tool": tt.name, "status": tt.status}))
			if tt.errorType != "" {
				assert.Equal(t, 1.0, counterValue(t, reg, "goban_mcp_tool_errors_total",
					map[string]string{"tool": tt.name, "error_type": tt.errorType}))
			}
		})
	}
}

func TestWrapToolContext(t *testing.T) {
	m := NewMiddleware(logging.NewNop(), nil, nil)

	var correlationIDs, requestIDs []string
	handler := m.WrapTool("probe", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cid, ok := logging.CorrelationIDFromContext(ctx)
		require.True(t, ok)
		rid, ok := logging.RequestIDFromContext(ctx)
		require.True(t, ok)
		correlationIDs = append(correlationIDs, cid)
		requestIDs = append(requestIDs, rid)
		return mcp.NewToolResultText("ok"), nil
	})

	_, err := handler(context.Background(), request(nil))
	require.NoError(t, err)
	_, err = handler(logging.ContextWithCorrelationID(context.Background(), "upstream"), request(nil))
	require.NoError(t, err)

	require.Len(t, correlationIDs, 2)
	assert.NotEmpty(t, correlationIDs[0])
	assert.Equal(t, "upstream", correlationIDs[1], "an existing correlation id is kept")
	assert.NotEqual(t, requestIDs[0], requestIDs[1])
}

func TestWrapToolLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.NewWithCore(core, zap.NewAtomicLevelAt(zapcore.DebugLevel))
	m := NewMiddleware(logger, nil, nil)

	handler := m.WrapTool("placeStone", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("OccupiedCell: intersection is occupied"), nil
	})
	_, err := handler(ContextWithClientID(context.Background(), "claude"), request(nil))
	require.NoError(t, err)

	entries := logs.FilterMessage("Tool request rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "placeStone", fields["tool"])
	assert.Equal(t, "claude", fields["client"])
	assert.Equal(t, "OccupiedCell", fields["kind"])
	assert.Contains(t, fields, "correlation_id")
}

func TestWrapToolRateLimiting(t *testing.T) {
	reg := prometheus.NewRegistry()
	limiter := ratelimit.NewLimiter(&config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      2,
	}, logging.NewNop())
	defer limiter.Close()

	m := NewMiddleware(logging.NewNop(), metrics.NewPrometheusCollector(reg), limiter)

	calls := 0
	handler := m.WrapTool("showBoard", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		calls++
		return mcp.NewToolResultText("board"), nil
	})

	for i := 0; i < 2; i++ {
		result, err := handler(context.Background(), request(nil))
		require.NoError(t, err)
		assert.False(t, result.IsError, "call %d", i+1)
	}

	result, err := handler(context.Background(), request(nil))
	require.NoError(t, err, "rate limiting is reported as a tool error, not a protocol error")
	assert.True(t, result.IsError)
	assert.Equal(t, KindRateLimited, resultKind(result))
	assert.Equal(t, 2, calls)

	assert.Equal(t, 1.0, counterValue(t, reg, "goban_mcp_rate_limit_hits_total",
		map[string]string{"scope": "global", "tool": "showBoard"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "goban_mcp_tool_calls_total",
		map[string]string{"status": "rate_limited"}))
}

func TestWrapToolPerClientLimits(t *testing.T) {
	limiter := ratelimit.NewLimiter(&config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 600,
		BurstSize:      100,
		PerToolLimits:  map[string]int{"aimove": 6},
	}, logging.NewNop())
	defer limiter.Close()

	m := NewMiddleware(logging.NewNop(), nil, limiter)
	handler := m.WrapTool("aiMove", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("move"), nil
	})

	// The tool-wide bucket holds one token: 100 * 6 / 600.
	result, err := handler(context.Background(), request(map[string]interface{}{"clientID": "a"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = handler(context.Background(), request(map[string]interface{}{"clientID": "b"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "tool rate limit exceeded for tool aiMove")
}

func TestExtractClientID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		args map[string]interface{}
		want string
	}{
		{"context wins", ContextWithClientID(context.Background(), "ctx"), map[string]interface{}{"clientID": "arg"}, "ctx"},
		{"argument", context.Background(), map[string]interface{}{"clientID": "arg"}, "arg"},
		{"non-string argument", context.Background(), map[string]interface{}{"clientID": 7.0}, "anonymous"},
		{"nothing", context.Background(), nil, "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractClientID(tt.ctx, request(tt.args)))
		})
	}
}

func TestResultKind(t *testing.T) {
	assert.Equal(t, "SuicideMove", resultKind(mcp.NewToolResultError("SuicideMove: illegal move at (0,0): suicide")))
	assert.Equal(t, "unknown", resultKind(mcp.NewToolResultError("something went wrong: badly")))
	assert.Equal(t, "unknown", resultKind(mcp.NewToolResultError("no kind")))
	assert.Equal(t, "unknown", resultKind(&mcp.CallToolResult{}))
}
