package analysis

import (
	"context"
	"time"

	"flowscope/internal/risk"
	"flowscope/internal/store"
)

// RuleAnalyzer is the deterministic analyzer: per-category risk items
// folded with the risk aggregator's worst-of rule.
type RuleAnalyzer struct {
	agg *risk.Aggregator
	now func() time.Time
}

func NewRuleAnalyzer(agg *risk.Aggregator) *RuleAnalyzer {
	if agg == nil {
		agg = risk.NewAggregator(risk.Messages{})
	}
	return &RuleAnalyzer{agg: agg, now: time.Now}
}

func (r *RuleAnalyzer) Analyze(ctx context.Context, _ int64, samples []store.HealthSample) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	summary := r.agg.Evaluate(samples)
	return Result{
		Status:         summary.Status,
		Recommendation: summary.Recommendation,
		Timestamp:      r.now().UTC(),
	}, nil
}
