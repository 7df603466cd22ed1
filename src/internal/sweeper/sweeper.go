package sweeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"loadhub-core-svc/src/internal/metrics"

	"github.com/sirupsen/logrus"
)

const defaultInterval = 15 * time.Minute

// Expirer is the operation the sweeper drives.
type Expirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Sweeper periodically reverts loads whose acceptance window has lapsed.
// Runs never overlap within a process; concurrent runs across instances are
// safe because the underlying update is conditional per document.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	timeout  time.Duration
	metrics  metrics.Recorder
	running  atomic.Bool
}

func New(expirer Expirer, interval time.Duration, recorder metrics.Recorder) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		timeout:  interval / 2,
		metrics:  recorder,
	}
}

// Start runs one sweep immediately and then one per interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	logrus.WithField("interval", s.interval.String()).Info("Expiration sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Expiration sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Errors and panics are logged and counted;
// the next tick retries.
func (s *Sweeper) RunOnce(ctx context.Context) (count int64, err error) {
	if !s.running.CompareAndSwap(false, true) {
		logrus.Warn("Previous expiration sweep still running, skipping")
		return 0, nil
	}
	defer s.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expiration sweep panicked: %v", r)
		}
		if err != nil {
			s.metrics.RecordSweepFailure()
			logrus.WithError(err).Error("Expiration sweep failed")
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	count, err = s.expirer.ExpireStale(runCtx)
	if err != nil {
		return 0, err
	}

	entry := logrus.WithFields(logrus.Fields{
		"expired":     count,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	if count > 0 {
		entry.Info("Stale load acceptances reverted to OPEN")
	} else {
		entry.Debug("No stale load acceptances found")
	}
	return count, nil
}
