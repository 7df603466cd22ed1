package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps per-identity windows in process. Counts are not shared
// between instances.
type MemoryLimiter struct {
	rule    Rule
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(rule Rule) *MemoryLimiter {
	return &MemoryLimiter{
		rule:    rule,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Rule() Rule {
	return l.rule
}

func (l *MemoryLimiter) Allow(_ context.Context, identity string) (*Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.rule.Window)}
		l.windows[identity] = w
	}
	w.count++

	return decide(l.rule, w.count, w.resetAt.Sub(now)), nil
}

// Sweep drops windows that have already reset.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for identity, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, identity)
			removed++
		}
	}
	return removed
}

func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartSweeper runs Sweep on every interval until ctx is done.
func (l *MemoryLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				logrus.WithFields(logrus.Fields{
					"limiter": l.rule.Name,
					"removed": removed,
				}).Debug("Expired rate limit windows removed")
			}
		}
	}
}
