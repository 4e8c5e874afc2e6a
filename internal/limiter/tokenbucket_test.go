package limiter_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/koopa0/classic-pong/internal/limiter"
)

func TestTokenBucket_Burst(t *testing.T) {
	start := time.Unix(0, 0)
	tb := limiter.NewTokenBucket(10, 5, start)

	for i := range 5 {
		assert.True(t, tb.AllowAt(start), "request %d within burst", i)
	}
	assert.False(t, tb.AllowAt(start), "bucket drained")
}

func TestTokenBucket_Refill(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		allowed int
	}{
		{name: "no time passed", elapsed: 0, allowed: 0},
		{name: "one token", elapsed: 100 * time.Millisecond, allowed: 1},
		{name: "three tokens", elapsed: 300 * time.Millisecond, allowed: 3},
		{name: "capped at burst", elapsed: time.Hour, allowed: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Unix(0, 0)
			tb := limiter.NewTokenBucket(10, 5, start)
			for range 5 {
				tb.AllowAt(start)
			}

			now := start.Add(tt.elapsed)
			got := 0
			for tb.AllowAt(now) {
				got++
			}
			assert.Equal(t, tt.allowed, got)
		})
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	tb := limiter.NewTokenBucket(0, 5, time.Now())
	assert.Nil(t, tb)
	for range 1000 {
		assert.True(t, tb.Allow())
	}
	assert.Zero(t, tb.Tokens())
}

func TestTokenBucket_Concurrent(t *testing.T) {
	now := time.Now()
	tb := limiter.NewTokenBucket(1, 100, now)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if tb.AllowAt(now) {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), allowed.Load())
}
