package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/goban-mcp/internal/logging"
)

func newTestChecker() *Checker {
	return NewChecker(logging.NewNop(), "1.0.0", "abc123")
}

func TestNewChecker(t *testing.T) {
	checker := newTestChecker()
	assert.Equal(t, "1.0.0", checker.version)
	assert.Equal(t, "abc123", checker.gitCommit)
	assert.Empty(t, checker.checks)

	resp := checker.CheckHealth(context.Background())
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Components)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus Status
		components map[string]Status
	}{
		{
			name: "all healthy",
			checks: map[string]Check{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return nil },
			},
			wantStatus: StatusHealthy,
			components: map[string]Status{"a": StatusHealthy, "b": StatusHealthy},
		},
		{
			name: "one unhealthy",
			checks: map[string]Check{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return errors.New("boom") },
			},
			wantStatus: StatusUnhealthy,
			components: map[string]Status{"a": StatusHealthy, "b": StatusUnhealthy},
		},
		{
			name: "degraded",
			checks: map[string]Check{
				"a": func(context.Context) error { return fmt.Errorf("near capacity: %w", ErrDegraded) },
				"b": func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			components: map[string]Status{"a": StatusDegraded, "b": StatusHealthy},
		},
		{
			name: "unhealthy wins over degraded",
			checks: map[string]Check{
				"a": func(context.Context) error { return ErrDegraded },
				"b": func(context.Context) error { return errors.New("down") },
			},
			wantStatus: StatusUnhealthy,
			components: map[string]Status{"a": StatusDegraded, "b": StatusUnhealthy},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newTestChecker()
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			resp := checker.CheckHealth(context.Background())
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.Len(t, resp.Components, len(tt.components))
			assert.Equal(t, "a", resp.Components[0].Name, "components are sorted")
			for _, c := range resp.Components {
				assert.Equal(t, tt.components[c.Name], c.Status, c.Name)
				if c.Status != StatusHealthy {
					assert.NotEmpty(t, c.Message)
				}
			}
		})
	}
}

func TestCheckHealthTimeout(t *testing.T) {
	checker := newTestChecker()

	// Ignores its context entirely.
	release := make(chan struct{})
	defer close(release)
	checker.RegisterCheck("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp := checker.CheckHealth(ctx)
	assert.Less(t, time.Since(start), CheckTimeout)

	require.Len(t, resp.Components, 1)
	assert.Equal(t, StatusUnhealthy, resp.Components[0].Status)
	assert.Contains(t, resp.Components[0].Message, "deadline exceeded")
}

func TestLivenessHandler(t *testing.T) {
	checker := newTestChecker()
	checker.RegisterCheck("down", func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code, "liveness ignores component checks")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "abc123", resp.GitCommit)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		check    Check
		wantCode int
		want     Status
	}{
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, StatusHealthy},
		{"degraded is still ready", func(context.Context) error { return ErrDegraded }, http.StatusOK, StatusDegraded},
		{"unhealthy", func(context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newTestChecker()
			checker.RegisterCheck("engine", tt.check)

			rec := httptest.NewRecorder()
			checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestConcurrentHealthChecks(t *testing.T) {
	checker := newTestChecker()
	var calls atomic.Int32
	checker.RegisterCheck("counter", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			checker.RegisterCheck(fmt.Sprintf("extra-%d", i), func(context.Context) error { return nil })
			checker.CheckHealth(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(10), calls.Load())
}

func TestEngineSelfTest(t *testing.T) {
	require.NoError(t, EngineSelfTest(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, EngineSelfTest(ctx), context.Canceled)
}

func TestSessionCapacity(t *testing.T) {
	tests := []struct {
		count, limit int
		degraded     bool
	}{
		{0, 10, false},
		{8, 10, false},
		{9, 10, true},
		{10, 10, true},
		{5, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d of %d", tt.count, tt.limit), func(t *testing.T) {
			count := tt.count
			err := SessionCapacity(func() int { return count }, tt.limit)(context.Background())
			if tt.degraded {
				assert.ErrorIs(t, err, ErrDegraded)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
