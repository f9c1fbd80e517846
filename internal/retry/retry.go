// Package retry reruns an operation whose result went stale or failed
// transiently, with optional exponential backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// Config defines retry behavior configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts including the first
	// (0 = infinite).
	MaxAttempts int
	// InitialDelay is the delay before the second attempt. Zero retries
	// immediately.
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// Jitter adds randomness to retry delays (0-1).
	Jitter float64
	// OnRetry, if set, is called before every retry with the attempt that
	// just failed (starting at 1) and its error.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 0,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// ForStaleResults recomputes up to retries extra times without waiting.
func ForStaleResults(retries int) Config {
	if retries < 0 {
		retries = 0
	}
	return Config{MaxAttempts: retries + 1}
}

// ErrExhausted wraps the last error once every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Run returns the unwrapped err
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Manager handles retry logic with exponential backoff.
type Manager struct {
	config Config
}

// NewManager creates a new retry manager.
func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
	}
}

// Run calls fn until it succeeds, returns a Permanent error, the attempts
// run out, or ctx is done. fn receives the 1-based attempt number.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}

		if m.config.MaxAttempts > 0 && attempt >= m.config.MaxAttempts {
			return errors.Join(ErrExhausted, err)
		}

		if m.config.OnRetry != nil {
			m.config.OnRetry(attempt, err)
		}

		delay := m.calculateDelay(attempt)
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// calculateDelay calculates the delay after the given failed attempt.
func (m *Manager) calculateDelay(attempt int) time.Duration {
	if m.config.InitialDelay <= 0 {
		return 0
	}

	delay := float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(attempt-1))

	if m.config.MaxDelay > 0 && delay > float64(m.config.MaxDelay) {
		delay = float64(m.config.MaxDelay)
	}

	if m.config.Jitter > 0 {
		jitter := delay * m.config.Jitter
		// Random value between -jitter and +jitter using crypto/rand
		maxJitter := int64(jitter * 2)
		if maxJitter > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
			if err == nil {
				delay += float64(n.Int64()) - jitter
			}
		}
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// NextDelay returns the delay that would follow the given failed attempt.
func (m *Manager) NextDelay(attempt int) time.Duration {
	return m.calculateDelay(attempt)
}
