package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"flowscope/internal/metrics"
)

func TestEndpointManager_Transitions(t *testing.T) {
	reg := metrics.NewRegistry()
	m := NewEndpointManager(HealthPolicy{FailureThreshold: 2, SuccessThreshold: 2}, reg)
	m.Add("http://a")
	m.Add("http://a")

	assert.True(t, m.IsHealthy("http://a"))

	m.MarkFailure("http://a")
	assert.True(t, m.IsHealthy("http://a"))

	m.MarkFailure("http://a")
	assert.False(t, m.IsHealthy("http://a"))
	assert.Equal(t, []string{"http://a"}, m.Unhealthy())
	assert.Equal(t, int64(1), reg.Get(metrics.EndpointsUnhealthy))

	// extra failures do not double count
	m.MarkFailure("http://a")
	assert.Equal(t, int64(1), reg.Get(metrics.EndpointsUnhealthy))

	m.MarkSuccess("http://a")
	assert.False(t, m.IsHealthy("http://a"))

	m.MarkSuccess("http://a")
	assert.True(t, m.IsHealthy("http://a"))
	assert.Equal(t, int64(0), reg.Get(metrics.EndpointsUnhealthy))
}

func TestEndpointManager_SuccessResetsFailures(t *testing.T) {
	m := NewEndpointManager(HealthPolicy{FailureThreshold: 2, SuccessThreshold: 1}, nil)
	m.Add("http://a")

	m.MarkFailure("http://a")
	m.MarkSuccess("http://a")
	m.MarkFailure("http://a")

	assert.True(t, m.IsHealthy("http://a"))
}

func TestEndpointManager_Unknown(t *testing.T) {
	m := NewEndpointManager(HealthPolicy{FailureThreshold: 1, SuccessThreshold: 1}, nil)

	m.MarkFailure("http://nope")
	m.MarkSuccess("http://nope")
	assert.False(t, m.IsHealthy("http://nope"))
	assert.Empty(t, m.Snapshot())
}

func TestEndpointManager_HealthySorted(t *testing.T) {
	m := NewEndpointManager(HealthPolicy{FailureThreshold: 1, SuccessThreshold: 1}, nil)
	m.Add("http://c")
	m.Add("http://a")
	m.Add("http://b")
	m.MarkFailure("http://b")

	assert.Equal(t, []string{"http://a", "http://c"}, m.Healthy())

	snap := m.Snapshot()
	assert.Len(t, snap, 3)
	assert.Equal(t, "http://b", snap[1].URL)
	assert.Equal(t, Unhealthy, snap[1].State)
	assert.Equal(t, "unhealthy", snap[1].State.String())
}
