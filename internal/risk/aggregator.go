package risk

import (
	"github.com/samber/lo"

	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

// Aggregator turns per-category items into an overall verdict.
type Aggregator struct {
	messages Messages
	rules    []Rule
}

// NewAggregator creates an aggregator. Blank messages fall back to the defaults.
func NewAggregator(messages Messages) *Aggregator {
	return &Aggregator{
		messages: messages.withDefaults(),
		rules:    DefaultRules,
	}
}

// Messages returns the effective templates.
func (a *Aggregator) Messages() Messages {
	return a.messages
}

// Aggregate applies worst-of escalation: any critical item makes the whole
// summary critical and flags an emergency, otherwise any concerning item
// makes it concerning. No items means healthy.
func (a *Aggregator) Aggregate(items []AnalysisItem) Summary {
	status := vitals.StatusHealthy
	switch {
	case lo.ContainsBy(items, func(i AnalysisItem) bool { return i.Status == vitals.StatusCritical }):
		status = vitals.StatusCritical
	case lo.ContainsBy(items, func(i AnalysisItem) bool { return i.Status == vitals.StatusConcerning }):
		status = vitals.StatusConcerning
	}

	if items == nil {
		items = []AnalysisItem{}
	}

	summary := Summary{
		Status:         status,
		Recommendation: a.messages.For(status),
		RiskLevel:      status.RiskLevel(),
		Items:          items,
	}
	if status == vitals.StatusCritical {
		summary.Emergency = true
		summary.EmergencyMessage = a.messages.Emergency
	}
	return summary
}

// Assess runs every rule over the window. Categories without readings are omitted.
func (a *Aggregator) Assess(samples []store.HealthSample) []AnalysisItem {
	return Assess(samples, a.rules...)
}

// Evaluate is Assess followed by Aggregate.
func (a *Aggregator) Evaluate(samples []store.HealthSample) Summary {
	return a.Aggregate(a.Assess(samples))
}

// Assess runs rules (DefaultRules when none are given) over samples.
func Assess(samples []store.HealthSample, rules ...Rule) []AnalysisItem {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	items := make([]AnalysisItem, 0, len(rules))
	for _, rule := range rules {
		if it, ok := rule(samples); ok {
			items = append(items, it)
		}
	}
	return items
}
