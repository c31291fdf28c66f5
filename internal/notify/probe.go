package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Prober periodically checks unhealthy endpoints so they can recover
// without waiting for the next critical report.
type Prober struct {
	notifier *Notifier
	interval time.Duration
	path     string
	logger   *zap.Logger
}

func NewProber(n *Notifier, policy ProbePolicy, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		notifier: n,
		interval: policy.Interval,
		path:     policy.Path,
		logger:   logger,
	}
}

// Start runs the probe loop until ctx is cancelled. A zero interval returns at once.
func (p *Prober) Start(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			p.logger.Debug("endpoint prober stopped")
			return
		}
	}
}

// RunOnce probes every unhealthy endpoint once.
func (p *Prober) RunOnce(ctx context.Context) {
	manager := p.notifier.Manager()
	for _, ep := range manager.Unhealthy() {
		resp, err := p.notifier.client.R().
			SetContext(ctx).
			Get(ep + p.path)
		if err != nil || resp.IsError() {
			manager.MarkFailure(ep)
			continue
		}
		manager.MarkSuccess(ep)
		if manager.IsHealthy(ep) {
			p.logger.Info("notify endpoint recovered", zap.String("endpoint", ep))
		}
	}
}
