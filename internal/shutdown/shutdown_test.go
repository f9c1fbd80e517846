package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/goban-mcp/internal/logging"
)

func TestShutdownOrder(t *testing.T) {
	manager := NewManager(logging.NewNop())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"logger", "sessions", "limiter", "http"} {
		name := name
		manager.Register(name, func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, manager.Shutdown(time.Second))
	assert.Equal(t, []string{"http", "limiter", "sessions", "logger"}, order)

	select {
	case <-manager.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestShutdownErrors(t *testing.T) {
	manager := NewManager(logging.NewNop())
	errBoom := errors.New("boom")

	var after atomic.Bool
	manager.Register("second", func(ctx context.Context) error {
		after.Store(true)
		return nil
	})
	manager.Register("first", func(ctx context.Context) error { return errBoom })

	err := manager.Shutdown(time.Second)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "first: boom")
	assert.True(t, after.Load(), "a failing component does not stop the rest")
}

func TestShutdownRunsOnce(t *testing.T) {
	manager := NewManager(logging.NewNop())
	var calls atomic.Int32
	manager.Register("component", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, manager.Shutdown(time.Second))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestShutdownTimeout(t *testing.T) {
	manager := NewManager(logging.NewNop())

	var skipped atomic.Bool
	manager.Register("skipped", func(ctx context.Context) error {
		skipped.Store(true)
		return nil
	})
	release := make(chan struct{})
	defer close(release)
	manager.Register("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	err := manager.Shutdown(50 * time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, skipped.Load(), "components after the deadline are skipped")
}

func TestHandleSignals(t *testing.T) {
	manager := NewManager(logging.NewNop())
	var stopped atomic.Bool
	manager.Register("component", func(ctx context.Context) error {
		stopped.Store(true)
		return nil
	})

	stop := manager.HandleSignals(time.Second)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-manager.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not start on SIGTERM")
	}
	assert.True(t, stopped.Load())
}

func TestHandleSignalsStop(t *testing.T) {
	manager := NewManager(logging.NewNop())
	stop := manager.HandleSignals(time.Second)
	stop()
	stop()

	select {
	case <-manager.Done():
		t.Fatal("shutdown should not have started")
	default:
	}
}
