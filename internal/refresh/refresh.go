// Package refresh reclassifies every pond on a fixed interval so the
// snapshot follows new acquisitions.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
)

// Classifier produces a classification snapshot.
type Classifier interface {
	ClassifyAll(ctx context.Context) (domain.Classification, error)
}

// Config controls the loop. An Interval of zero classifies once, retrying
// until the first success.
type Config struct {
	Interval     time.Duration
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// DefaultConfig refreshes daily and retries failures from 30s up to 10m.
func DefaultConfig() Config {
	return Config{
		Interval:     24 * time.Hour,
		RetryInitial: 30 * time.Second,
		RetryMax:     10 * time.Minute,
	}
}

// Loop runs ClassifyAll on a schedule.
type Loop struct {
	classifier Classifier
	cfg        Config
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Loop. A nil clock means the real clock.
func New(c Classifier, cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{classifier: c, cfg: cfg, clock: clock, logger: logger, metrics: metrics}
}

func (l *Loop) retryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.RetryInitial
	b.MaxInterval = l.cfg.RetryMax
	b.MaxElapsedTime = 0
	b.Clock = l.clock
	b.Reset()
	return b
}

// Run classifies immediately, then after every interval, until ctx is
// cancelled. A failed run is retried with exponential backoff instead of
// waiting for the next interval.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("refresh loop started", "interval", l.cfg.Interval)
	l.metrics.RefreshRunning.Set(1)
	defer l.metrics.RefreshRunning.Set(0)

	retry := l.retryPolicy()
	for {
		wait := l.cfg.Interval
		if _, err := l.classifier.ClassifyAll(ctx); err != nil {
			if ctx.Err() != nil {
				l.logger.Info("refresh loop stopping", "reason", ctx.Err())
				return nil
			}
			wait = retry.NextBackOff()
			l.metrics.RefreshFailures.Inc()
			l.logger.Error("scheduled classification failed", "error", err, "retry_in", wait)
		} else {
			retry.Reset()
			if l.cfg.Interval == 0 {
				l.logger.Info("refresh loop done")
				return nil
			}
		}

		if !l.sleep(ctx, wait) {
			l.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	timer := l.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
