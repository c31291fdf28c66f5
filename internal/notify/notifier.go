package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"flowscope/internal/metrics"
	"flowscope/internal/store"
)

// EventCriticalReport is the event name of a critical report notification.
const EventCriticalReport = "report.critical"

// Payload is the JSON body posted to every endpoint.
type Payload struct {
	Event   string       `json:"event"`
	Message string       `json:"message,omitempty"`
	Report  store.Report `json:"report"`
	SentAt  time.Time    `json:"sentAt"`
}

// Notifier fans critical reports out to webhook endpoints.
//
// Notify never blocks the caller: each healthy endpoint gets its own
// goroutine that retries with backoff and reports the outcome to the
// EndpointManager.
type Notifier struct {
	manager *EndpointManager
	client  *resty.Client
	policy  Policy
	message string
	logger  *zap.Logger
	metrics *metrics.Registry

	wg sync.WaitGroup
}

// NewNotifier registers endpoints and prepares the HTTP client.
// message is attached to every payload.
func NewNotifier(endpoints []string, policy Policy, message string, reg *metrics.Registry, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	manager := NewEndpointManager(policy.Health, reg)
	for _, ep := range endpoints {
		manager.Add(ep)
	}

	client := resty.New().
		SetTimeout(policy.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Notifier{
		manager: manager,
		client:  client,
		policy:  policy,
		message: message,
		logger:  logger,
		metrics: reg,
	}
}

// Manager exposes endpoint health.
func (n *Notifier) Manager() *EndpointManager {
	return n.manager
}

// Notify delivers report asynchronously. The request context only
// contributes values; cancellation of the caller does not abort delivery.
func (n *Notifier) Notify(ctx context.Context, report store.Report) {
	payload := Payload{
		Event:   EventCriticalReport,
		Message: n.message,
		Report:  report,
		SentAt:  time.Now().UTC(),
	}

	base := context.WithoutCancel(ctx)
	for _, ep := range n.manager.Healthy() {
		n.wg.Add(1)
		go func(ep string) {
			defer n.wg.Done()
			n.deliver(base, ep, payload)
		}(ep)
	}
}

func (n *Notifier) deliver(ctx context.Context, endpoint string, payload Payload) {
	err := Retry(ctx, n.policy.Retry, func() error {
		n.metrics.Inc(metrics.NotifyAttemptsTotal)
		return n.post(ctx, endpoint, payload)
	}, func(attempt int, err error) {
		n.metrics.Inc(metrics.NotifyRetriesTotal)
		n.logger.Debug("retrying notification",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})

	if err != nil {
		n.manager.MarkFailure(endpoint)
		n.metrics.Inc(metrics.NotifyFailureTotal)
		n.logger.Warn("notification failed",
			zap.String("endpoint", endpoint),
			zap.Int64("report_id", payload.Report.ID),
			zap.Error(err),
		)
		return
	}

	n.manager.MarkSuccess(endpoint)
	n.metrics.Inc(metrics.NotifySuccessTotal)
	n.logger.Debug("notification delivered",
		zap.String("endpoint", endpoint),
		zap.Int64("report_id", payload.Report.ID),
	)
}

func (n *Notifier) post(ctx context.Context, endpoint string, payload Payload) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected response %s", resp.Status())
	}
	return nil
}

// Close waits for in-flight deliveries or until ctx is done.
func (n *Notifier) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
