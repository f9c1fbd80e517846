package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmmcquay/goban-mcp/internal/config"
	"github.com/dmmcquay/goban-mcp/internal/logging"
)

// ErrRateLimited is matched by every rejection from Allow.
var ErrRateLimited = errors.New("rate limit exceeded")

// Scope names the bucket that rejected a call.
type Scope string

const (
	ScopeGlobal     Scope = "global"
	ScopeTool       Scope = "tool"
	ScopeClient     Scope = "client"
	ScopeClientTool Scope = "client_tool"
)

// LimitError describes a rejected call.
type LimitError struct {
	Scope      Scope
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	msg := string(e.Scope) + " rate limit exceeded"
	if e.Scope == ScopeTool || e.Scope == ScopeClientTool {
		msg += " for tool " + e.Tool
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter.Round(time.Millisecond))
	}
	return msg
}

func (e *LimitError) Unwrap() error { return ErrRateLimited }

const (
	cleanupInterval = 5 * time.Minute
	staleTimeout    = 30 * time.Minute
)

// Limiter manages rate limiting for tool calls. A nil *Limiter allows
// everything.
type Limiter struct {
	logger       logging.ContextLogger
	config       *config.RateLimitConfig
	now          func() time.Time
	globalBucket *TokenBucket
	toolBuckets  map[string]*TokenBucket
	clientLimits map[string]*clientRateLimit
	mu           sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// clientRateLimit tracks rate limits for a specific client.
type clientRateLimit struct {
	globalBucket *TokenBucket
	toolBuckets  map[string]*TokenBucket
	lastSeen     time.Time
}

// NewLimiter creates a new rate limiter, or nil if cfg disables limiting.
func NewLimiter(cfg *config.RateLimitConfig, logger logging.ContextLogger) *Limiter {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	l := newLimiter(cfg, logger, time.Now)
	go l.cleanupStaleClients()
	return l
}

func newLimiter(cfg *config.RateLimitConfig, logger logging.ContextLogger, now func() time.Time) *Limiter {
	limits := make(map[string]int, len(cfg.PerToolLimits))
	for tool, limit := range cfg.PerToolLimits {
		limits[strings.ToLower(tool)] = limit
	}
	normalized := *cfg
	normalized.PerToolLimits = limits

	l := &Limiter{
		logger:       logger,
		config:       &normalized,
		now:          now,
		toolBuckets:  make(map[string]*TokenBucket),
		clientLimits: make(map[string]*clientRateLimit),
		stop:         make(chan struct{}),
	}
	l.globalBucket = l.globalBucketFor()
	for tool := range limits {
		l.toolBuckets[tool] = l.toolBucketFor(tool)
	}
	return l
}

func (l *Limiter) globalBucketFor() *TokenBucket {
	return newTokenBucketAt(l.config.BurstSize, float64(l.config.RequestsPerMin)/60.0, l.now())
}

// toolBucketFor keeps the global burst-to-rate ratio for a per-tool limit.
func (l *Limiter) toolBucketFor(tool string) *TokenBucket {
	limit := l.config.PerToolLimits[tool]
	burst := 1
	if l.config.RequestsPerMin > 0 {
		burst = (l.config.BurstSize * limit) / l.config.RequestsPerMin
	}
	if burst < 1 {
		burst = 1
	}
	return newTokenBucketAt(burst, float64(limit)/60.0, l.now())
}

// Allow takes one token from every bucket that applies to the call, or none
// of them. Rejections are *LimitError values matching ErrRateLimited.
func (l *Limiter) Allow(clientID, toolName string) error {
	if l == nil {
		return nil
	}

	now := l.now()
	tool := strings.ToLower(toolName)

	l.mu.Lock()
	defer l.mu.Unlock()

	taken := make([]*TokenBucket, 0, 4)
	reject := func(scope Scope, b *TokenBucket) error {
		for _, t := range taken {
			t.Refund(1)
		}
		l.logger.Warn("Rate limit exceeded",
			"scope", string(scope),
			"client", clientID,
			"tool", toolName,
		)
		return &LimitError{Scope: scope, Tool: toolName, RetryAfter: b.RetryAfter(1, now)}
	}

	if !l.globalBucket.AllowN(1, now) {
		return reject(ScopeGlobal, l.globalBucket)
	}
	taken = append(taken, l.globalBucket)

	if b, ok := l.toolBuckets[tool]; ok {
		if !b.AllowN(1, now) {
			return reject(ScopeTool, b)
		}
		taken = append(taken, b)
	}

	if clientID == "" {
		return nil
	}

	client, ok := l.clientLimits[clientID]
	if !ok {
		client = &clientRateLimit{
			globalBucket: l.globalBucketFor(),
			toolBuckets:  make(map[string]*TokenBucket),
		}
		l.clientLimits[clientID] = client
	}
	client.lastSeen = now

	if !client.globalBucket.AllowN(1, now) {
		return reject(ScopeClient, client.globalBucket)
	}
	taken = append(taken, client.globalBucket)

	if _, limited := l.config.PerToolLimits[tool]; limited {
		b, ok := client.toolBuckets[tool]
		if !ok {
			b = l.toolBucketFor(tool)
			client.toolBuckets[tool] = b
		}
		if !b.AllowN(1, now) {
			return reject(ScopeClientTool, b)
		}
	}

	return nil
}

// Reset resets all rate limit buckets to full capacity.
func (l *Limiter) Reset() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.globalBucket.Reset()
	for _, bucket := range l.toolBuckets {
		bucket.Reset()
	}
	for _, client := range l.clientLimits {
		client.globalBucket.Reset()
		for _, bucket := range client.toolBuckets {
			bucket.Reset()
		}
	}
}

// Close stops the background cleanup.
func (l *Limiter) Close() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupStaleClients() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.removeStaleClients()
		}
	}
}

// removeStaleClients drops clients idle for longer than staleTimeout.
func (l *Limiter) removeStaleClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for clientID, client := range l.clientLimits {
		if now.Sub(client.lastSeen) > staleTimeout {
			delete(l.clientLimits, clientID)
			removed++
			l.logger.Debug("Removed stale client rate limit tracking", "client", clientID)
		}
	}
	return removed
}

// Status is a snapshot of limiter state for the health endpoint.
type Status struct {
	Enabled        bool                  `json:"enabled"`
	RequestsPerMin int                   `json:"requestsPerMin,omitempty"`
	BurstSize      int                   `json:"burstSize,omitempty"`
	GlobalTokens   float64               `json:"globalTokens,omitempty"`
	ActiveClients  int                   `json:"activeClients"`
	ToolLimits     map[string]ToolStatus `json:"toolLimits,omitempty"`
}

type ToolStatus struct {
	Limit  int     `json:"limit"`
	Tokens float64 `json:"tokens"`
}

// GetStatus returns the current status of rate limits for monitoring.
func (l *Limiter) GetStatus() Status {
	if l == nil {
		return Status{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	status := Status{
		Enabled:        true,
		RequestsPerMin: l.config.RequestsPerMin,
		BurstSize:      l.config.BurstSize,
		GlobalTokens:   l.globalBucket.TokensAt(now),
		ActiveClients:  len(l.clientLimits),
		ToolLimits:     make(map[string]ToolStatus, len(l.toolBuckets)),
	}
	for tool, bucket := range l.toolBuckets {
		status.ToolLimits[tool] = ToolStatus{Limit: l.config.PerToolLimits[tool], Tokens: bucket.TokensAt(now)}
	}
	return status
}
