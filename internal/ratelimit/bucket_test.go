package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTokenBucket(t *testing.T) {
	t.Run("starts full", func(t *testing.T) {
		b := newTokenBucketAt(10, 1.0, epoch)
		assert.Equal(t, 10, b.capacity)
		assert.InDelta(t, 10.0, b.TokensAt(epoch), 1e-9)
	})

	t.Run("AllowN", func(t *testing.T) {
		b := newTokenBucketAt(5, 1.0, epoch)

		assert.True(t, b.AllowN(3, epoch))
		assert.False(t, b.AllowN(3, epoch))
		assert.InDelta(t, 2.0, b.TokensAt(epoch), 1e-9, "a rejection consumes nothing")
		assert.True(t, b.AllowN(2, epoch))
		assert.False(t, b.AllowN(1, epoch))
	})

	t.Run("refills over time up to capacity", func(t *testing.T) {
		b := newTokenBucketAt(5, 2.0, epoch)
		assert.True(t, b.AllowN(5, epoch))

		assert.InDelta(t, 1.0, b.TokensAt(epoch.Add(500*time.Millisecond)), 1e-9)
		assert.InDelta(t, 5.0, b.TokensAt(epoch.Add(time.Minute)), 1e-9)
	})

	t.Run("clock going backwards adds nothing", func(t *testing.T) {
		b := newTokenBucketAt(5, 1.0, epoch)
		assert.True(t, b.AllowN(5, epoch))
		assert.False(t, b.AllowN(1, epoch.Add(-time.Hour)))
	})

	t.Run("Refund", func(t *testing.T) {
		b := newTokenBucketAt(3, 1.0, epoch)
		assert.True(t, b.AllowN(2, epoch))
		b.Refund(1)
		assert.InDelta(t, 2.0, b.TokensAt(epoch), 1e-9)
		b.Refund(10)
		assert.InDelta(t, 3.0, b.TokensAt(epoch), 1e-9)
	})

	t.Run("RetryAfter", func(t *testing.T) {
		b := newTokenBucketAt(2, 4.0, epoch)
		assert.Zero(t, b.RetryAfter(1, epoch))

		assert.True(t, b.AllowN(2, epoch))
		assert.Equal(t, 250*time.Millisecond, b.RetryAfter(1, epoch))
		assert.InDelta(t, 0.0, b.TokensAt(epoch), 1e-9, "RetryAfter consumes nothing")
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewTokenBucket(5, 1.0)
		assert.True(t, b.Allow(5))
		b.Reset()
		assert.True(t, b.Allow(5))
	})
}

func TestTokenBucketConcurrency(t *testing.T) {
	b := NewTokenBucket(100, 0)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if b.Allow(1) {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), allowed.Load())
}
