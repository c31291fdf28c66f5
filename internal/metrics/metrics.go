package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Storage
	UsersCreatedTotal   MetricKey = "users_created_total"
	SamplesCreatedTotal MetricKey = "samples_created_total"
	ReportsCreatedTotal MetricKey = "reports_created_total"

	// Analysis, suffixed per status by WithStatus
	AnalysesTotal       MetricKey = "analyses_total"
	AnalysisErrorsTotal MetricKey = "analysis_errors_total"

	// Vitals cache
	CacheHitsTotal   MetricKey = "vitals_cache_hits_total"
	CacheMissesTotal MetricKey = "vitals_cache_misses_total"

	// Retention
	RetentionRunsTotal    MetricKey = "retention_runs_total"
	RetentionRemovedTotal MetricKey = "retention_samples_removed_total"

	// Critical report notifications
	NotifyAttemptsTotal MetricKey = "notify_attempts_total"
	NotifySuccessTotal  MetricKey = "notify_success_total"
	NotifyFailureTotal  MetricKey = "notify_failure_total"
	NotifyRetriesTotal  MetricKey = "notify_retries_total"
	EndpointsUnhealthy  MetricKey = "notify_endpoints_unhealthy"

	// HTTP
	HTTPRequestsTotal    MetricKey = "http_requests_total"
	HTTPErrorsTotal      MetricKey = "http_errors_total"
	HTTPRateLimitedTotal MetricKey = "http_rate_limited_total"
)

// WithStatus derives a per-status key, e.g. analyses_total{status="critical"}.
func WithStatus(key MetricKey, status string) MetricKey {
	return MetricKey(string(key) + `{status="` + status + `"}`)
}

// Registry stores all counters.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta. Negative deltas are allowed for gauges.
// A nil registry discards the update.
func (r *Registry) Add(key MetricKey, delta int64) {
	if r == nil {
		return
	}
	atomic.AddInt64(r.counter(key), delta)
}

// Set overwrites a gauge value.
func (r *Registry) Set(key MetricKey, value int64) {
	if r == nil {
		return
	}
	atomic.StoreInt64(r.counter(key), value)
}

func (r *Registry) counter(key MetricKey) *int64 {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()
	if ok {
		return ptr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another writer may have created it meanwhile
	if ptr, ok = r.counters[key]; ok {
		return ptr
	}
	ptr = new(int64)
	r.counters[key] = ptr
	return ptr
}
