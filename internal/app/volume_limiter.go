package app

import (
	"time"

	"github.com/dkeye/RoonController/internal/core"
)

// VolumeLimiter is a per-session sliding window over volume changes.
// Not safe for concurrent use; the orchestrator loop owns it.
type VolumeLimiter struct {
	history  map[core.SessionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewVolumeLimiter(limit int, interval time.Duration) *VolumeLimiter {
	return &VolumeLimiter{
		history:  make(map[core.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records an attempt and reports whether it fits in the window.
// A limit below one disables limiting.
func (rl *VolumeLimiter) Allow(sid core.SessionID) bool {
	if rl.limit < 1 {
		return true
	}
	now := rl.now()
	fresh := rl.fresh(sid, now)
	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}
	rl.history[sid] = append(fresh, now)
	return true
}

// RetryAfter is how long until sid has room in its window again.
func (rl *VolumeLimiter) RetryAfter(sid core.SessionID) time.Duration {
	if rl.limit < 1 {
		return 0
	}
	now := rl.now()
	fresh := rl.fresh(sid, now)
	if len(fresh) < rl.limit {
		return 0
	}
	return fresh[0].Add(rl.interval).Sub(now)
}

func (rl *VolumeLimiter) Forget(sid core.SessionID) {
	delete(rl.history, sid)
}

func (rl *VolumeLimiter) fresh(sid core.SessionID, now time.Time) []time.Time {
	windowStart := now.Add(-rl.interval)
	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}
