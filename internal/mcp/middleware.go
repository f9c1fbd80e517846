package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmmcquay/goban-mcp/internal/logging"
	"github.com/dmmcquay/goban-mcp/internal/metrics"
	"github.com/dmmcquay/goban-mcp/internal/ratelimit"
)

// Middleware wraps MCP tool handlers with common functionality like rate limiting, metrics, and logging.
type Middleware struct {
	logger      logging.ContextLogger
	metrics     *metrics.PrometheusCollector
	rateLimiter *ratelimit.Limiter
}

// NewMiddleware creates a new middleware instance. metrics and rateLimiter
// may be nil.
func NewMiddleware(logger logging.ContextLogger, metrics *metrics.PrometheusCollector, rateLimiter *ratelimit.Limiter) *Middleware {
	return &Middleware{
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rateLimiter,
	}
}

// ToolHandler is the function signature for MCP tool handlers.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// WrapTool wraps a tool handler with middleware functionality. Every call
// gets fresh correlation and request IDs in its context.
func (m *Middleware) WrapTool(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		if _, ok := logging.CorrelationIDFromContext(ctx); !ok {
			ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
		}
		ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())

		clientID := extractClientID(ctx, request)
		logger := m.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"tool":   toolName,
			"client": clientID,
		})

		logger.Debug("Tool request received", "arguments", request.Params.Arguments)

		err := m.rateLimiter.Allow(clientID, toolName)
		if err != nil {
			scope := "unknown"
			var limitErr *ratelimit.LimitError
			if errors.As(err, &limitErr) {
				scope = string(limitErr.Scope)
			}
			m.metrics.RecordRateLimit(scope, toolName)
			m.metrics.RecordToolCall(toolName, "rate_limited", "RateLimited", time.Since(start))
			return mcp.NewToolResultError(KindRateLimited + ": " + err.Error()), nil
		}
		if m.rateLimiter != nil {
			m.metrics.RecordRateLimit("", toolName)
		}

		result, err := handler(ctx, request)
		duration := time.Since(start)

		switch {
		case err != nil:
			logger.Error("Tool request failed", "error", err, "duration", duration)
			m.metrics.RecordToolCall(toolName, "error", "internal", duration)
		case result != nil && result.IsError:
			kind := resultKind(result)
			logger.Info("Tool request rejected", "kind", kind, "duration", duration)
			m.metrics.RecordToolCall(toolName, "rejected", kind, duration)
		default:
			logger.Info("Tool request completed", "duration", duration)
			m.metrics.RecordToolCall(toolName, "success", "", duration)
		}

		return result, err
	}
}

type clientIDKey struct{}

// ContextWithClientID tags ctx with the caller's identity for rate limiting.
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// extractClientID attempts to extract a client identifier from the context or request.
func extractClientID(ctx context.Context, request mcp.CallToolRequest) string {
	if clientID, ok := ctx.Value(clientIDKey{}).(string); ok && clientID != "" {
		return clientID
	}

	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		if clientID, ok := args["clientID"].(string); ok && clientID != "" {
			return clientID
		}
	}

	return "anonymous"
}

// resultKind reads the kind prefix that ToolsHandler.fail puts on rejections.
func resultKind(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "unknown"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "unknown"
	}
	kind, _, found := strings.Cut(text.Text, ":")
	if !found || strings.ContainsAny(kind, " \n") {
		return "unknown"
	}
	return kind
}
