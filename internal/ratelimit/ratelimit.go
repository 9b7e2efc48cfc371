// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit throttles outbound calls to the extraction backend.
//
// The limiter keeps a sliding log of recent grant times: an acquisition is
// admitted only while fewer than quota grants fall inside the trailing
// window. No trailing window interval ever contains more than quota
// admissions, including the initial burst after startup.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mlpulse/skill-pulse/pkg/types"
)

const (
	defaultQuota  = 15
	defaultWindow = 60 * time.Second
)

// now is the clock source. Tests override this to run against fake time.
var now = time.Now

// Limiter admits callers under a rolling quota. A single Limiter instance is
// shared by all extraction workers; it is safe for concurrent use. State is
// process-local and resets on restart.
type Limiter struct {
	mu     sync.Mutex
	quota  int
	window time.Duration
	grants []time.Time // grant times inside the trailing window, oldest first
}

// New builds a Limiter from cfg, applying defaults for zero values.
func New(cfg types.RateLimitConfig) *Limiter {
	quota := cfg.Quota
	if quota <= 0 {
		quota = defaultQuota
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		quota:  quota,
		window: window,
		grants: make([]time.Time, 0, quota),
	}
}

// Acquire blocks until an admission is possible or ctx is cancelled. Each
// successful return records one grant in the admission log.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		t := now()
		l.prune(t)
		if len(l.grants) < l.quota {
			l.grants = append(l.grants, t)
			l.mu.Unlock()
			return nil
		}
		// The next slot opens when the oldest logged grant ages out.
		wait := l.grants[0].Add(l.window).Sub(t)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("waiting for rate limit slot: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// Remaining returns how many acquisitions would be admitted right now
// without blocking.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(now())
	return l.quota - len(l.grants)
}

// prune drops grants that have aged out of the trailing window.
// Caller must hold l.mu.
func (l *Limiter) prune(t time.Time) {
	i := 0
	for i < len(l.grants) && t.Sub(l.grants[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}
