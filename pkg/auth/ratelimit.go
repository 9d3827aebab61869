package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether an authenticated request may proceed.
// Implementations return ErrTooManyRequests to reject.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds the per-minute budget for one service tier.
type TierConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter counts requests per caller in fixed one-minute
// windows, in memory. Callers sharing a tenant share a budget, so one
// tenant's keys cannot multiply its quota; callers without a tenant are
// budgeted by subject.
//
// A zero or negative budget means unlimited. The limiter fails open on
// unknown tiers with no default budget configured.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int

	mu      sync.Mutex
	windows map[string]*window
	sweepAt time.Time
}

type window struct {
	count    int
	openedAt time.Time
}

// NewInProcessLimiter creates a limiter with per-tier budgets and a
// fallback budget for tiers not in the map.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		windows:    make(map[string]*window),
		sweepAt:    time.Now(),
	}
}

// Allow admits the request unless the caller's window is exhausted.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = "default"
	}

	rpm := l.defaultRPM
	if tc, ok := l.tiers[tier]; ok {
		rpm = tc.RequestsPerMinute
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.TenantID()
	if key == "" {
		key = identity.Subject
	}
	key += ":" + tier

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.windows[key]
	if !ok || now.Sub(w.openedAt) >= time.Minute {
		l.windows[key] = &window{count: 1, openedAt: now}
		return nil
	}

	w.count++
	if w.count > rpm {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops windows expired long enough that the caller would get a
// fresh one anyway. Keeps the map from growing with churned keys.
func (l *InProcessLimiter) sweep(now time.Time) {
	if now.Sub(l.sweepAt) < 10*time.Minute {
		return
	}
	l.sweepAt = now
	for key, w := range l.windows {
		if now.Sub(w.openedAt) >= time.Minute {
			delete(l.windows, key)
		}
	}
}
