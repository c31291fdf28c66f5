package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

// RemoteConfig points at an external inference service.
type RemoteConfig struct {
	URL     string
	Timeout time.Duration
	Retries int
	// Token is sent as a bearer token when set.
	Token string
}

type remoteRequest struct {
	UserID     int64                `json:"userId"`
	DataPoints []store.HealthSample `json:"dataPoints"`
}

type remoteResponse struct {
	Status         string    `json:"status"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp"`
}

// RemoteAnalyzer delegates to an HTTP service that honors the same
// three-state contract.
type RemoteAnalyzer struct {
	httpClient *resty.Client
	logger     *zap.Logger
	now        func() time.Time
}

func NewRemoteAnalyzer(cfg RemoteConfig, logger *zap.Logger) (*RemoteAnalyzer, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote analyzer: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &RemoteAnalyzer{httpClient: client, logger: logger, now: time.Now}, nil
}

func (r *RemoteAnalyzer) Analyze(ctx context.Context, userID int64, samples []store.HealthSample) (Result, error) {
	if samples == nil {
		samples = []store.HealthSample{}
	}

	var out remoteResponse
	resp, err := r.httpClient.R().
		SetContext(ctx).
		SetBody(remoteRequest{UserID: userID, DataPoints: samples}).
		SetResult(&out).
		Post("/analyze")
	if err != nil {
		r.logger.Error("remote analysis call failed", zap.Int64("user_id", userID), zap.Error(err))
		return Result{}, fmt.Errorf("remote analysis: %w", err)
	}
	if resp.IsError() {
		r.logger.Error("remote analysis returned error",
			zap.Int64("user_id", userID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return Result{}, fmt.Errorf("remote analysis: unexpected status %d", resp.StatusCode())
	}

	status, err := vitals.ParseStatus(out.Status)
	if err != nil {
		return Result{}, fmt.Errorf("remote analysis: %w", err)
	}

	ts := out.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	return Result{Status: status, Recommendation: out.Recommendation, Timestamp: ts.UTC()}, nil
}
