package notify

import "time"

// RetryPolicy controls redelivery of a notification to one endpoint.
type RetryPolicy struct {
	MaxRetries  int           // max retry attempts after the first
	BaseBackoff time.Duration // initial backoff duration
	MaxBackoff  time.Duration // upper bound on backoff
	JitterFn    func(time.Duration) time.Duration
}

// HealthPolicy defines when an endpoint is considered down or recovered.
type HealthPolicy struct {
	FailureThreshold int // consecutive failures to mark unhealthy
	SuccessThreshold int // consecutive successes to mark healthy again
}

// ProbePolicy drives the background liveness check of unhealthy endpoints.
// A zero Interval disables probing.
type ProbePolicy struct {
	Interval time.Duration
	Path     string
}

type Policy struct {
	Retry   RetryPolicy
	Timeout time.Duration // per delivery attempt
	Health  HealthPolicy
	Probe   ProbePolicy
}

func DefaultPolicy() Policy {
	return Policy{
		Retry: RetryPolicy{
			MaxRetries:  3,
			BaseBackoff: 100 * time.Millisecond,
			MaxBackoff:  2 * time.Second,
			JitterFn:    func(d time.Duration) time.Duration { return d / 2 },
		},
		Timeout: 2 * time.Second,
		Health: HealthPolicy{
			FailureThreshold: 3,
			SuccessThreshold: 2,
		},
		Probe: ProbePolicy{
			Interval: 30 * time.Second,
			Path:     "/healthz",
		},
	}
}
