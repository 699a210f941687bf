// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metatool

import (
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting for meta-tool calls.
type RateLimiter struct {
	chainBucket *tokenBucket
	callBucket  *tokenBucket
}

// tokenBucket implements a simple token bucket algorithm.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter with specified limits.
// chainsPerMinute bounds call_tool_chain invocations, which may spin up a
// JS sandbox; callsPerMinute bounds every meta-tool call.
func NewRateLimiter(chainsPerMinute, callsPerMinute int) *RateLimiter {
	return &RateLimiter{
		chainBucket: &tokenBucket{
			tokens:     float64(chainsPerMinute),
			maxTokens:  float64(chainsPerMinute),
			refillRate: float64(chainsPerMinute) / 60.0,
			lastRefill: time.Now(),
		},
		callBucket: &tokenBucket{
			tokens:     float64(callsPerMinute),
			maxTokens:  float64(callsPerMinute),
			refillRate: float64(callsPerMinute) / 60.0,
			lastRefill: time.Now(),
		},
	}
}

// AllowChain checks if a call_tool_chain invocation is allowed.
func (rl *RateLimiter) AllowChain() bool {
	return rl.chainBucket.take(1)
}

// AllowCall checks if any meta-tool call is allowed.
func (rl *RateLimiter) AllowCall() bool {
	return rl.callBucket.take(1)
}

func (tb *tokenBucket) take(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
