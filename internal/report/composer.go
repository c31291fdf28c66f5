package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"flowscope/internal/analysis"
	"flowscope/internal/apperr"
	"flowscope/internal/risk"
	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

const (
	DefaultWindowSamples = 28
	DefaultTitle         = "Monthly Health Summary"

	// EmptySummary is the summary of a report generated over no samples.
	EmptySummary = "No health data available for this period."
)

// EmptyPolicy decides what Generate does when the user has no samples.
type EmptyPolicy string

const (
	// EmptyReport persists a healthy report with no samples.
	EmptyReport EmptyPolicy = "report"
	// EmptyError fails with a NotFoundError.
	EmptyError EmptyPolicy = "error"
)

// Payload is the JSON stored in Report.ReportData.
type Payload struct {
	HealthData []store.HealthSample `json:"healthData"`
	Analysis   analysis.Result      `json:"analysis"`
	VitalStats *vitals.VitalStats   `json:"vitalStats,omitempty"`
	RiskAreas  []risk.AnalysisItem  `json:"riskAreas"`
}

// Notifier receives every critical report after it is persisted.
type Notifier interface {
	Notify(ctx context.Context, r store.Report)
}

type Options struct {
	WindowSamples int
	EmptyPolicy   EmptyPolicy
}

// Composer turns a window of recent samples into a persisted Report.
type Composer struct {
	store    store.Store
	analyzer analysis.Analyzer
	agg      *risk.Aggregator
	notifier Notifier
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewComposer wires a composer. notifier may be nil.
func NewComposer(
	st store.Store,
	analyzer analysis.Analyzer,
	agg *risk.Aggregator,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
) *Composer {
	if opts.WindowSamples <= 0 {
		opts.WindowSamples = DefaultWindowSamples
	}
	if opts.EmptyPolicy == "" {
		opts.EmptyPolicy = EmptyReport
	}
	if agg == nil {
		agg = risk.NewAggregator(risk.Messages{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		store:    st,
		analyzer: analyzer,
		agg:      agg,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate analyzes the user's latest window of samples and persists the report.
func (c *Composer) Generate(ctx context.Context, userID int64, title string) (store.Report, error) {
	title = strings.TrimSpace(title)
	if err := validate(userID, title); err != nil {
		return store.Report{}, err
	}

	if _, err := c.store.GetUser(ctx, userID); err != nil {
		return store.Report{}, apperr.Internal("get user", err)
	}

	samples, err := c.store.GetSamplesForUser(ctx, userID, c.opts.WindowSamples)
	if err != nil {
		return store.Report{}, apperr.Internal("load samples", err)
	}
	if len(samples) == 0 && c.opts.EmptyPolicy == EmptyError {
		return store.Report{}, apperr.NotFound("health data for user", userID)
	}

	draft, err := c.ComposeFrom(ctx, userID, title, samples)
	if err != nil {
		return store.Report{}, err
	}

	saved, err := c.store.CreateReport(ctx, draft)
	if err != nil {
		return store.Report{}, apperr.Internal("save report", err)
	}

	c.logger.Info("report generated",
		zap.Int64("report_id", saved.ID),
		zap.Int64("user_id", userID),
		zap.String("status", string(saved.HealthStatus)),
		zap.Int("samples", len(samples)),
	)

	if saved.HealthStatus == vitals.StatusCritical && c.notifier != nil {
		c.notifier.Notify(ctx, saved)
	}
	return saved, nil
}

// ComposeFrom builds the unsaved report for samples, newest first.
// An empty window yields a healthy report without calling the analyzer.
func (c *Composer) ComposeFrom(ctx context.Context, userID int64, title string, samples []store.HealthSample) (store.Report, error) {
	title = strings.TrimSpace(title)
	if err := validate(userID, title); err != nil {
		return store.Report{}, err
	}
	if samples == nil {
		samples = []store.HealthSample{}
	}

	now := c.now().UTC()
	payload := Payload{
		HealthData: samples,
		RiskAreas:  c.agg.Assess(samples),
	}

	var (
		status  vitals.Status
		summary string
	)
	if len(samples) == 0 {
		status, summary = vitals.StatusHealthy, EmptySummary
		payload.Analysis = analysis.Result{Status: status, Recommendation: summary, Timestamp: now}
	} else {
		res, err := c.analyzer.Analyze(ctx, userID, samples)
		if err != nil {
			return store.Report{}, apperr.Internal("analyze samples", err)
		}
		if !res.Status.Valid() {
			return store.Report{}, apperr.Internal("analyze samples", fmt.Errorf("analyzer returned status %q", res.Status))
		}
		status, summary = res.Status, res.Recommendation
		payload.Analysis = res

		latest := vitals.NewVitalStats(samples[0].Reading())
		payload.VitalStats = &latest
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return store.Report{}, apperr.Internal("encode report payload", err)
	}

	return store.Report{
		UserID:       userID,
		Title:        title,
		Summary:      summary,
		HealthStatus: status,
		CreatedAt:    now,
		ReportData:   data,
	}, nil
}

func validate(userID int64, title string) error {
	var fields []apperr.FieldError
	if userID <= 0 {
		fields = append(fields, apperr.FieldError{Field: "userId", Message: "must be a positive integer"})
	}
	if title == "" {
		fields = append(fields, apperr.FieldError{Field: "title", Message: "is required"})
	}
	if len(fields) > 0 {
		return apperr.Invalid("Invalid report data", fields...)
	}
	return nil
}

// DecodePayload parses a report's payload. Reports created directly through
// the API may carry arbitrary JSON; unknown shapes decode to a zero Payload.
func DecodePayload(r store.Report) (Payload, error) {
	var p Payload
	if len(r.ReportData) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(r.ReportData, &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload of report %d: %w", r.ID, err)
	}
	return p, nil
}
