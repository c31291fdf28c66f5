package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"flowscope/internal/metrics"
	"flowscope/internal/store"
)

// Pruner deletes health samples older than a cutoff.
type Pruner interface {
	DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (store.Pruned, error)
}

// Invalidator drops per-user state derived from samples.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// Expirer drops expired cache entries.
type Expirer interface {
	RemoveExpired() int
}

// Sweeper periodically enforces the sample retention window and purges
// expired cache entries.
type Sweeper struct {
	pruner   Pruner
	expirers []Expirer
	invalid  Invalidator
	window   time.Duration
	interval time.Duration
	logger   *zap.Logger
	metrics  *metrics.Registry
	now      func() time.Time
}

// NewSweeper creates a sweeper. weeks <= 0 keeps samples forever; the
// expirers are still purged on every tick.
func NewSweeper(
	pruner Pruner,
	weeks int,
	interval time.Duration,
	reg *metrics.Registry,
	logger *zap.Logger,
	expirers ...Expirer,
) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	var window time.Duration
	if weeks > 0 {
		window = time.Duration(weeks) * 7 * 24 * time.Hour
	}
	return &Sweeper{
		pruner:   pruner,
		expirers: expirers,
		window:   window,
		interval: interval,
		logger:   logger,
		metrics:  reg,
		now:      time.Now,
	}
}

// InvalidateWith registers inv to be told about every user that lost samples.
func (s *Sweeper) InvalidateWith(inv Invalidator) {
	s.invalid = inv
}

// Enabled reports whether Start has anything to do.
func (s *Sweeper) Enabled() bool {
	return s.interval > 0 && (s.window > 0 || len(s.expirers) > 0)
}

// Start runs the sweep loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.logger.Debug("retention sweeper stopped")
			return
		}
	}
}

// RunOnce performs a single sweep and returns how many samples were removed.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	s.metrics.Inc(metrics.RetentionRunsTotal)

	expired := 0
	for _, e := range s.expirers {
		expired += e.RemoveExpired()
	}
	if expired > 0 {
		s.logger.Debug("purged expired cache entries", zap.Int("count", expired))
	}

	if s.window <= 0 || s.pruner == nil {
		return 0
	}

	cutoff := s.now().Add(-s.window)
	pruned, err := s.pruner.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0
	}
	if s.invalid != nil {
		for _, id := range pruned.UserIDs {
			s.invalid.Invalidate(ctx, id)
		}
	}

	removed := pruned.Samples
	if removed > 0 {
		s.metrics.Add(metrics.RetentionRemovedTotal, int64(removed))
		s.logger.Info("retention sweeper removed old samples",
			zap.Int("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed
}
