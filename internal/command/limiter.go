package command

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-key token bucket: one command per interval per key, with a
// burst of one.
type Limiter struct {
	mu      sync.Mutex
	every   time.Duration
	entries map[string]*limiterEntry
	now     func() time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLimiter returns a limiter allowing one event per every. A non-positive
// every disables limiting.
func NewLimiter(every time.Duration) *Limiter {
	return &Limiter{
		every:   every,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow consumes a token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.every <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(l.every), 1)}
		l.entries[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Prune forgets keys not seen for idle and returns how many were dropped.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	n := 0
	for k, e := range l.entries {
		if e.seen.Before(cutoff) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CooldownKey scopes cooldowns per command and user.
func CooldownKey(command, userID string) string {
	return command + ":" + userID
}
