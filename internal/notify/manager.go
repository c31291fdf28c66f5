package notify

import (
	"sort"
	"sync"

	"flowscope/internal/metrics"
)

// EndpointState is the health state of a webhook endpoint.
type EndpointState int

const (
	Healthy EndpointState = iota
	Unhealthy
)

func (s EndpointState) String() string {
	if s == Unhealthy {
		return "unhealthy"
	}
	return "healthy"
}

// Endpoint tracks the health of one webhook URL.
type Endpoint struct {
	URL          string
	State        EndpointState
	FailureCount int
	SuccessCount int
}

// EndpointManager tracks consecutive delivery outcomes per endpoint.
type EndpointManager struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	policy    HealthPolicy
	metrics   *metrics.Registry
}

func NewEndpointManager(policy HealthPolicy, reg *metrics.Registry) *EndpointManager {
	return &EndpointManager{
		endpoints: make(map[string]*Endpoint),
		policy:    policy,
		metrics:   reg,
	}
}

// Add registers an endpoint as healthy. Re-adding is a no-op.
func (m *EndpointManager) Add(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.endpoints[url]; !exists {
		m.endpoints[url] = &Endpoint{URL: url, State: Healthy}
	}
}

func (m *EndpointManager) MarkFailure(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep, ok := m.endpoints[url]
	if !ok {
		return
	}
	ep.FailureCount++
	ep.SuccessCount = 0
	if ep.State == Healthy && ep.FailureCount >= m.policy.FailureThreshold {
		ep.State = Unhealthy
		m.metrics.Add(metrics.EndpointsUnhealthy, 1)
	}
}

func (m *EndpointManager) MarkSuccess(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ep, ok := m.endpoints[url]
	if !ok {
		return
	}
	ep.SuccessCount++
	ep.FailureCount = 0
	if ep.State == Unhealthy && ep.SuccessCount >= m.policy.SuccessThreshold {
		ep.State = Healthy
		m.metrics.Add(metrics.EndpointsUnhealthy, -1)
	}
}

func (m *EndpointManager) IsHealthy(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ep, ok := m.endpoints[url]
	return ok && ep.State == Healthy
}

// Healthy lists endpoints currently eligible for delivery, sorted.
func (m *EndpointManager) Healthy() []string {
	return m.filter(Healthy)
}

// Unhealthy lists endpoints waiting to be probed back, sorted.
func (m *EndpointManager) Unhealthy() []string {
	return m.filter(Unhealthy)
}

func (m *EndpointManager) filter(state EndpointState) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.endpoints))
	for url, ep := range m.endpoints {
		if ep.State == state {
			out = append(out, url)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of every endpoint, sorted by URL.
func (m *EndpointManager) Snapshot() []Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		out = append(out, *ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
