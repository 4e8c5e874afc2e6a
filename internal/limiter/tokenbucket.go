// Package limiter 提供每條連線的入站訊息限流。
package limiter

import (
	"sync"
	"time"
)

// TokenBucket 令牌桶
//
// 桶以 rate 個/秒 的速度補充，最多存 burst 個。每則入站訊息取一個令牌，
// 取不到就丟棄該訊息。
type TokenBucket struct {
	mu         sync.Mutex
	burst      float64
	tokens     float64
	rate       float64 // 每秒補充的令牌數
	lastRefill time.Time
}

// NewTokenBucket 建立令牌桶，初始為滿
//
// rate <= 0 時返回 nil；nil 桶允許所有訊息。
func NewTokenBucket(rate float64, burst int, now time.Time) *TokenBucket {
	if rate <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		burst:      float64(burst),
		tokens:     float64(burst),
		rate:       rate,
		lastRefill: now,
	}
}

// Allow 以目前時間取一個令牌
func (tb *TokenBucket) Allow() bool {
	return tb.AllowAt(time.Now())
}

// AllowAt 以指定時間取一個令牌
func (tb *TokenBucket) AllowAt(now time.Time) bool {
	if tb == nil {
		return true
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastRefill); elapsed > 0 {
		tb.tokens = min(tb.burst, tb.tokens+elapsed.Seconds()*tb.rate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Tokens 目前令牌數（監控用）
func (tb *TokenBucket) Tokens() float64 {
	if tb == nil {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}
