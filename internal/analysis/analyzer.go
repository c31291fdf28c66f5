package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flowscope/internal/metrics"
	"flowscope/internal/risk"
	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

// Result is the three-state verdict of one analysis run.
type Result struct {
	Status         vitals.Status `json:"status"`
	Recommendation string        `json:"recommendation"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Analyzer classifies a window of samples for a user.
type Analyzer interface {
	Analyze(ctx context.Context, userID int64, samples []store.HealthSample) (Result, error)
}

// Mode selects the Analyzer implementation.
type Mode string

const (
	ModeRandom Mode = "random"
	ModeRules  Mode = "rules"
	ModeRemote Mode = "remote"
)

// Config configures NewFromConfig.
type Config struct {
	Mode Mode
	// Seed fixes the random draw; 0 seeds from the clock.
	Seed    int64
	Remote  RemoteConfig
	Metrics *metrics.Registry
}

// NewFromConfig builds the configured analyzer wrapped with metrics.
func NewFromConfig(cfg Config, agg *risk.Aggregator, logger *zap.Logger) (Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var a Analyzer
	switch cfg.Mode {
	case ModeRandom, "":
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		logger.Warn("using random placeholder analyzer", zap.Int64("seed", seed))
		a = NewRandomAnalyzer(seed)
	case ModeRules:
		a = NewRuleAnalyzer(agg)
	case ModeRemote:
		remote, err := NewRemoteAnalyzer(cfg.Remote, logger)
		if err != nil {
			return nil, err
		}
		a = remote
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", cfg.Mode)
	}

	logger.Info("analyzer ready", zap.String("mode", string(cfg.Mode)))
	return WithMetrics(a, cfg.Metrics), nil
}

type instrumented struct {
	next    Analyzer
	metrics *metrics.Registry
}

// WithMetrics counts runs per resulting status and failures.
func WithMetrics(a Analyzer, reg *metrics.Registry) Analyzer {
	if reg == nil {
		return a
	}
	return &instrumented{next: a, metrics: reg}
}

func (i *instrumented) Analyze(ctx context.Context, userID int64, samples []store.HealthSample) (Result, error) {
	res, err := i.next.Analyze(ctx, userID, samples)
	if err != nil {
		i.metrics.Inc(metrics.AnalysisErrorsTotal)
		return Result{}, err
	}
	i.metrics.Inc(metrics.WithStatus(metrics.AnalysesTotal, string(res.Status)))
	return res, nil
}
