package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowscope/internal/metrics"
	"flowscope/internal/risk"
	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

func intPtr(v int) *int { return &v }

func TestDrawStatus_Bands(t *testing.T) {
	cases := []struct {
		draw float64
		want vitals.Status
		rec  string
	}{
		{0, vitals.StatusHealthy, randomHealthy},
		{0.69, vitals.StatusHealthy, randomHealthy},
		{0.7, vitals.StatusConcerning, randomConcerning},
		{0.89, vitals.StatusConcerning, randomConcerning},
		{0.9, vitals.StatusCritical, randomCritical},
		{0.999, vitals.StatusCritical, randomCritical},
	}
	for _, c := range cases {
		status, rec := drawStatus(c.draw)
		assert.Equal(t, c.want, status, "draw %v", c.draw)
		assert.Equal(t, c.rec, rec)
	}
}

func TestRandomAnalyzer_Distribution(t *testing.T) {
	a := NewRandomAnalyzer(42)
	counts := map[vitals.Status]int{}

	const n = 20000
	for i := 0; i < n; i++ {
		res, err := a.Analyze(context.Background(), 1, nil)
		require.NoError(t, err)
		counts[res.Status]++
	}

	assert.InDelta(t, 0.7, float64(counts[vitals.StatusHealthy])/n, 0.02)
	assert.InDelta(t, 0.2, float64(counts[vitals.StatusConcerning])/n, 0.02)
	assert.InDelta(t, 0.1, float64(counts[vitals.StatusCritical])/n, 0.02)
}

func TestRandomAnalyzer_SeedIsReproducible(t *testing.T) {
	a := NewRandomAnalyzerWithSource(rand.New(rand.NewSource(7)))
	b := NewRandomAnalyzerWithSource(rand.New(rand.NewSource(7)))

	for i := 0; i < 50; i++ {
		ra, err := a.Analyze(context.Background(), 1, nil)
		require.NoError(t, err)
		rb, err := b.Analyze(context.Background(), 1, nil)
		require.NoError(t, err)
		assert.Equal(t, ra.Status, rb.Status)
	}
}

func TestRandomAnalyzer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRandomAnalyzer(1).Analyze(ctx, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRuleAnalyzer(t *testing.T) {
	a := NewRuleAnalyzer(nil)
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	res, err := a.Analyze(context.Background(), 1, []store.HealthSample{
		{HeartRate: intPtr(72), BloodOxygen: intPtr(97)},
	})
	require.NoError(t, err)
	assert.Equal(t, vitals.StatusHealthy, res.Status)
	assert.Equal(t, risk.DefaultMessages().Healthy, res.Recommendation)
	assert.Equal(t, fixed, res.Timestamp)

	res, err = a.Analyze(context.Background(), 1, []store.HealthSample{
		{HeartRate: intPtr(72)},
		{BloodOxygen: intPtr(85)},
	})
	require.NoError(t, err)
	assert.Equal(t, vitals.StatusCritical, res.Status)

	res, err = a.Analyze(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, vitals.StatusHealthy, res.Status)
}

func TestRemoteAnalyzer_Success(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(body), "healthStatus")
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"concerning","recommendation":"check in"}`))
	}))
	defer srv.Close()

	a, err := NewRemoteAnalyzer(RemoteConfig{URL: srv.URL, Token: "secret"}, zap.NewNop())
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), 3, []store.HealthSample{{UserID: 3, HeartRate: intPtr(80)}})
	require.NoError(t, err)

	assert.Equal(t, vitals.StatusConcerning, res.Status)
	assert.Equal(t, "check in", res.Recommendation)
	assert.False(t, res.Timestamp.IsZero())
	assert.Equal(t, int64(3), got.UserID)
	require.Len(t, got.DataPoints, 1)
	assert.Equal(t, 80, *got.DataPoints[0].HeartRate)
}

func TestRemoteAnalyzer_RejectsUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"fine"}`))
	}))
	defer srv.Close()

	a, err := NewRemoteAnalyzer(RemoteConfig{URL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestRemoteAnalyzer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a, err := NewRemoteAnalyzer(RemoteConfig{URL: srv.URL, Retries: 0}, nil)
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestNewRemoteAnalyzer_RequiresURL(t *testing.T) {
	_, err := NewRemoteAnalyzer(RemoteConfig{}, nil)
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	a, err := NewFromConfig(Config{Mode: ModeRules}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &RuleAnalyzer{}, a)

	a, err = NewFromConfig(Config{Seed: 3}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &RandomAnalyzer{}, a)

	_, err = NewFromConfig(Config{Mode: ModeRemote}, nil, nil)
	assert.Error(t, err)

	_, err = NewFromConfig(Config{Mode: "oracle"}, nil, nil)
	assert.Error(t, err)
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, int64, []store.HealthSample) (Result, error) {
	return Result{}, errors.New("boom")
}

func TestWithMetrics(t *testing.T) {
	reg := metrics.NewRegistry()

	a := WithMetrics(NewRuleAnalyzer(nil), reg)
	_, err := a.Analyze(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reg.Get(metrics.WithStatus(metrics.AnalysesTotal, "healthy")))

	_, err = WithMetrics(failingAnalyzer{}, reg).Analyze(context.Background(), 1, nil)
	assert.Error(t, err)
	assert.Equal(t, int64(1), reg.Get(metrics.AnalysisErrorsTotal))
}
