package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"flowscope/internal/analysis"
	"flowscope/internal/apperr"
	"flowscope/internal/assistant"
	"flowscope/internal/cache"
	"flowscope/internal/logs"
	"flowscope/internal/metrics"
	"flowscope/internal/report"
	"flowscope/internal/risk"
	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

// Deps are the collaborators of Handler. Store, Composer, Analyzer and
// Aggregator are required; the rest fall back to no-op or default values.
type Deps struct {
	Store      store.Store
	Composer   *report.Composer
	Analyzer   analysis.Analyzer
	Aggregator *risk.Aggregator
	Vitals     *cache.VitalsCache
	Assistant  assistant.Responder
	Metrics    *metrics.Registry
	Ring       *logs.Ring
	Logger     *zap.Logger

	// RiskWindow is the default sample count for GET /api/risk.
	RiskWindow   int
	MaxBodyBytes int64
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store     store.Store
	composer  *report.Composer
	analyzer  analysis.Analyzer
	risk      *risk.Aggregator
	vitals    *cache.VitalsCache
	assistant assistant.Responder
	metrics   *metrics.Registry
	ring      *logs.Ring
	logger    *zap.Logger
	validate  *validator.Validate

	riskWindow int
	maxBody    int64
	now        func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		store:      d.Store,
		composer:   d.Composer,
		analyzer:   d.Analyzer,
		risk:       d.Aggregator,
		vitals:     d.Vitals,
		assistant:  d.Assistant,
		metrics:    d.Metrics,
		ring:       d.Ring,
		logger:     d.Logger,
		validate:   newValidator(),
		riskWindow: d.RiskWindow,
		maxBody:    d.MaxBodyBytes,
		now:        time.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.vitals == nil {
		h.vitals = cache.NewVitalsCache(cache.NopKV{}, 0, d.Metrics, h.logger)
	}
	if h.assistant == nil {
		h.assistant = assistant.NewCannedResponder(nil)
	}
	if h.riskWindow <= 0 {
		h.riskWindow = report.DefaultWindowSamples
	}
	if h.maxBody <= 0 {
		h.maxBody = DefaultMaxBodyBytes
	}
	return h
}

/* ---------------- GET /api/users/{id} ---------------- */

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Invalid user ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

/* ---------------- GET /api/health-data/latest/{userId} ---------------- */

func (h *Handler) GetLatestHealthData(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId", "Invalid user ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	sample, err := h.store.GetLatestSample(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "Failed to load health data")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

/* ---------------- GET /api/health-data/{userId}?limit=N ---------------- */

func (h *Handler) ListHealthData(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId", "Invalid user ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	limit, err := queryLimit(r, 0)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	samples, err := h.store.GetSamplesForUser(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err, "Failed to load health data")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

/* ---------------- GET /api/health-data/{userId}/range ---------------- */

func (h *Handler) GetHealthDataRange(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("view") != "range" {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Not found"})
		return
	}
	userID, err := pathID(r, "userId", "Invalid user ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	q := r.URL.Query()
	startRaw, endRaw := q.Get("startTime"), q.Get("endTime")
	if startRaw == "" || endRaw == "" {
		h.fail(w, r, apperr.Invalid("Start time and end time are required"), "")
		return
	}
	start, errStart := parseTime(startRaw)
	end, errEnd := parseTime(endRaw)
	if errStart != nil || errEnd != nil {
		h.fail(w, r, apperr.Invalid("Invalid date format"), "")
		return
	}

	samples, err := h.store.GetSamplesInRange(r.Context(), userID, start, end)
	if err != nil {
		h.fail(w, r, err, "Failed to load health data")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// parseTime accepts RFC 3339 timestamps and bare dates.
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

/* ---------------- POST /api/health-data ---------------- */

type createSampleRequest struct {
	UserID                 int64            `json:"userId" validate:"required,gt=0"`
	Timestamp              *time.Time       `json:"timestamp" validate:"required"`
	ECGData                []store.ECGPoint `json:"ecgData"`
	HeartRate              *int             `json:"heartRate" validate:"omitempty,gte=0"`
	BloodOxygen            *int             `json:"bloodOxygen" validate:"omitempty,gte=0,lte=100"`
	BloodPressureSystolic  *int             `json:"bloodPressureSystolic" validate:"omitempty,gte=0"`
	BloodPressureDiastolic *int             `json:"bloodPressureDiastolic" validate:"omitempty,gte=0"`
	RespiratoryRate        *int             `json:"respiratoryRate" validate:"omitempty,gte=0"`
	RecoveryRate           *int             `json:"recoveryRate" validate:"omitempty,gte=0"`
	HealthStatus           string           `json:"healthStatus" validate:"omitempty,oneof=healthy concerning critical"`
}

func (req createSampleRequest) sample() store.HealthSample {
	s := store.HealthSample{
		UserID:                 req.UserID,
		Timestamp:              req.Timestamp.UTC(),
		ECGData:                req.ECGData,
		HeartRate:              req.HeartRate,
		BloodOxygen:            req.BloodOxygen,
		BloodPressureSystolic:  req.BloodPressureSystolic,
		BloodPressureDiastolic: req.BloodPressureDiastolic,
		RespiratoryRate:        req.RespiratoryRate,
		RecoveryRate:           req.RecoveryRate,
		HealthStatus:           vitals.Status(req.HealthStatus),
	}
	if s.HealthStatus == "" {
		s.HealthStatus = vitals.ReadingStatus(s.Reading())
	}
	return s
}

func (h *Handler) CreateHealthData(w http.ResponseWriter, r *http.Request) {
	var req createSampleRequest
	if err := h.decode(w, r, &req, "Invalid health data"); err != nil {
		h.fail(w, r, err, "")
		return
	}

	created, err := h.store.CreateHealthSample(r.Context(), req.sample())
	if err != nil {
		h.fail(w, r, err, "Failed to create health data")
		return
	}
	h.vitals.Invalidate(r.Context(), created.UserID)

	writeJSON(w, http.StatusCreated, created)
}

/* ---------------- GET /api/reports/{userId}?limit=N ---------------- */

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId", "Invalid user ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	limit, err := queryLimit(r, 0)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	reports, err := h.store.GetReportsForUser(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err, "Failed to load reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

/* ---------------- GET /api/reports/detail/{id} ---------------- */

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Invalid report ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	rep, err := h.store.GetReportByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

/* ---------------- GET /api/reports/detail/{id}/export ---------------- */

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Invalid report ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	rep, err := h.store.GetReportByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to load report")
		return
	}

	data, err := report.ExportXLSX(rep, h.logger)
	if err != nil {
		h.fail(w, r, err, "Failed to export report")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.ExportFilename(rep)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

/* ---------------- POST /api/reports ---------------- */

type createReportRequest struct {
	UserID       int64           `json:"userId" validate:"required,gt=0"`
	Title        string          `json:"title" validate:"required,max=200"`
	Summary      string          `json:"summary" validate:"required"`
	HealthStatus string          `json:"healthStatus" validate:"required,oneof=healthy concerning critical"`
	CreatedAt    *time.Time      `json:"createdAt" validate:"required"`
	ReportData   json.RawMessage `json:"reportData"`
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := h.decode(w, r, &req, "Invalid report data"); err != nil {
		h.fail(w, r, err, "")
		return
	}

	created, err := h.store.CreateReport(r.Context(), store.Report{
		UserID:       req.UserID,
		Title:        strings.TrimSpace(req.Title),
		Summary:      req.Summary,
		HealthStatus: vitals.Status(req.HealthStatus),
		CreatedAt:    req.CreatedAt.UTC(),
		ReportData:   req.ReportData,
	})
	if err != nil {
		h.fail(w, r, err, "Failed to create report")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

/* ---------------- POST /api/reports/generate ---------------- */

type generateReportRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Title  string `json:"title" validate:"max=200"`
}

func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req generateReportRequest
	if err := h.decode(w, r, &req, "Invalid report request"); err != nil {
		h.fail(w, r, err, "")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = report.DefaultTitle
	}

	rep, err := h.composer.Generate(r.Context(), req.UserID, title)
	if err != nil {
		h.fail(w, r, err, "Failed to generate report")
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

/* ---------------- POST /api/analyze ---------------- */

type analyzeRequest struct {
	UserID     int64                `json:"userId" validate:"required,gt=0"`
	DataPoints []store.HealthSample `json:"dataPoints" validate:"required"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := h.decode(w, r, &req, "Invalid analysis request"); err != nil {
		h.fail(w, r, err, "")
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), req.UserID, req.DataPoints)
	if err != nil {
		h.fail(w, r, apperr.Internal("analyze", err), "Analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

/* ---------------- GET /api/vitals/{userId} ---------------- */

type vitalsResponse struct {
	UserID int64             `json:"userId"`
	Status vitals.Status     `json:"status"`
	Vitals vitals.VitalStats `json:"vitals"`
}

func (h *Handler) GetVitals(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId", "Invalid user ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	stats, err := h.vitals.GetOrLoad(r.Context(), userID, func(ctx context.Context) (vitals.VitalStats, error) {
		latest, err := h.store.GetLatestSample(ctx, userID)
		if err != nil {
			return vitals.VitalStats{}, err
		}
		return vitals.NewVitalStats(latest.Reading()), nil
	})
	if err != nil {
		h.fail(w, r, err, "Failed to load vitals")
		return
	}
	writeJSON(w, http.StatusOK, vitalsResponse{UserID: userID, Status: stats.Overall(), Vitals: stats})
}

/* ---------------- GET /api/risk/{userId}?limit=N ---------------- */

type riskResponse struct {
	UserID  int64 `json:"userId"`
	Samples int   `json:"samples"`
	Score   int   `json:"score"`
	risk.Summary
}

func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId", "Invalid user ID")
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	limit, err := queryLimit(r, h.riskWindow)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		h.fail(w, r, err, "Failed to load user")
		return
	}
	samples, err := h.store.GetSamplesForUser(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err, "Failed to load health data")
		return
	}

	summary := h.risk.Evaluate(samples)
	statuses := lo.Map(summary.Items, func(it risk.AnalysisItem, _ int) vitals.Status { return it.Status })
	writeJSON(w, http.StatusOK, riskResponse{
		UserID:  userID,
		Samples: len(samples),
		Score:   risk.Score(statuses),
		Summary: summary,
	})
}

/* ---------------- GET /api/classify?metric=..&value=.. ---------------- */

type classifyResponse struct {
	Metric vitals.Metric `json:"metric"`
	Values []float64     `json:"values"`
	Status vitals.Status `json:"status"`
	Label  string        `json:"label"`
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric := vitals.Metric(q.Get("metric"))

	values := make([]float64, 0, len(q["value"]))
	for _, raw := range q["value"] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.fail(w, r, apperr.Invalid("Invalid classification request",
				apperr.FieldError{Field: "value", Message: "must be a number"}), "")
			return
		}
		values = append(values, v)
	}

	status, err := vitals.Classify(metric, values...)
	if err != nil {
		h.fail(w, r, apperr.Invalid("Invalid classification request",
			apperr.FieldError{Field: "metric", Message: err.Error()}), "")
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Metric: metric, Values: values, Status: status, Label: status.Label()})
}

/* ---------------- POST /api/chat ---------------- */

type chatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type chatResponse struct {
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := h.decode(w, r, &req, "Invalid chat message"); err != nil {
		h.fail(w, r, err, "")
		return
	}

	reply, err := h.assistant.Reply(r.Context(), req.Message)
	if err != nil {
		h.fail(w, r, err, "Assistant unavailable")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, Timestamp: h.now().UTC()})
}
