package report

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flowscope/internal/analysis"
	"flowscope/internal/apperr"
	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, userID int64, samples []store.HealthSample) (analysis.Result, error) {
	args := m.Called(ctx, userID, samples)
	return args.Get(0).(analysis.Result), args.Error(1)
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []store.Report
}

func (n *recordingNotifier) Notify(_ context.Context, r store.Report) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
}

func intPtr(v int) *int { return &v }

var fixedNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T, opts Options) (*Composer, *store.MemoryStore, *mockAnalyzer, *recordingNotifier, store.User) {
	t.Helper()
	st := store.NewMemoryStore(store.Options{}, nil)
	u, err := st.CreateUser(context.Background(), store.User{Username: "demo", Email: "john.doe@example.com"})
	require.NoError(t, err)

	an := &mockAnalyzer{}
	notifier := &recordingNotifier{}
	c := NewComposer(st, an, nil, notifier, opts, zap.NewNop())
	c.now = func() time.Time { return fixedNow }
	return c, st, an, notifier, u
}

func addSamples(t *testing.T, st store.Store, userID int64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := st.CreateHealthSample(context.Background(), store.HealthSample{
			UserID:                 userID,
			Timestamp:              fixedNow.Add(-time.Duration(i) * time.Hour),
			HeartRate:              intPtr(70 + i%5),
			BloodOxygen:            intPtr(97),
			BloodPressureSystolic:  intPtr(118),
			BloodPressureDiastolic: intPtr(75),
			HealthStatus:           vitals.StatusHealthy,
		})
		require.NoError(t, err)
	}
}

func TestGenerate_PersistsAnalysis(t *testing.T) {
	c, st, an, notifier, u := setup(t, Options{})
	addSamples(t, st, u.ID, 3)

	an.On("Analyze", mock.Anything, u.ID, mock.MatchedBy(func(s []store.HealthSample) bool { return len(s) == 3 })).
		Return(analysis.Result{Status: vitals.StatusConcerning, Recommendation: "watch it", Timestamp: fixedNow}, nil).
		Once()

	r, err := c.Generate(context.Background(), u.ID, "  Monthly Health Summary ")
	require.NoError(t, err)

	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, "Monthly Health Summary", r.Title)
	assert.Equal(t, vitals.StatusConcerning, r.HealthStatus)
	assert.Equal(t, "watch it", r.Summary)
	assert.Equal(t, fixedNow, r.CreatedAt)

	p, err := DecodePayload(r)
	require.NoError(t, err)
	assert.Len(t, p.HealthData, 3)
	assert.Equal(t, vitals.StatusConcerning, p.Analysis.Status)
	require.NotNil(t, p.VitalStats)
	assert.Equal(t, "118/75", p.VitalStats.BloodPressure.Value)
	assert.NotEmpty(t, p.RiskAreas)

	saved, err := st.GetReportByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(r.ReportData), string(saved.ReportData))

	assert.Empty(t, notifier.reports)
	an.AssertExpectations(t)
}

func TestGenerate_UsesLatestWindow(t *testing.T) {
	c, st, an, _, u := setup(t, Options{WindowSamples: 2})
	addSamples(t, st, u.ID, 5)

	var got []store.HealthSample
	an.On("Analyze", mock.Anything, u.ID, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(2).([]store.HealthSample) }).
		Return(analysis.Result{Status: vitals.StatusHealthy, Recommendation: "ok"}, nil)

	_, err := c.Generate(context.Background(), u.ID, "t")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, fixedNow, got[0].Timestamp)
	assert.Equal(t, fixedNow.Add(-time.Hour), got[1].Timestamp)
}

func TestGenerate_DefaultWindowIs28(t *testing.T) {
	c, st, an, _, u := setup(t, Options{})
	addSamples(t, st, u.ID, 30)

	an.On("Analyze", mock.Anything, u.ID, mock.MatchedBy(func(s []store.HealthSample) bool { return len(s) == 28 })).
		Return(analysis.Result{Status: vitals.StatusHealthy}, nil).Once()

	_, err := c.Generate(context.Background(), u.ID, "t")
	require.NoError(t, err)
	an.AssertExpectations(t)
}

func TestGenerate_CriticalNotifies(t *testing.T) {
	c, st, an, notifier, u := setup(t, Options{})
	addSamples(t, st, u.ID, 1)

	an.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(analysis.Result{Status: vitals.StatusCritical, Recommendation: "now"}, nil)

	r, err := c.Generate(context.Background(), u.ID, "t")
	require.NoError(t, err)

	require.Len(t, notifier.reports, 1)
	assert.Equal(t, r.ID, notifier.reports[0].ID)
}

func TestGenerate_EmptyWindowPolicies(t *testing.T) {
	t.Run("report", func(t *testing.T) {
		c, _, an, _, u := setup(t, Options{})

		r, err := c.Generate(context.Background(), u.ID, "t")
		require.NoError(t, err)

		assert.Equal(t, vitals.StatusHealthy, r.HealthStatus)
		assert.Equal(t, EmptySummary, r.Summary)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(r.ReportData, &raw))
		assert.JSONEq(t, `[]`, string(raw["healthData"]))
		an.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("error", func(t *testing.T) {
		c, _, _, _, u := setup(t, Options{EmptyPolicy: EmptyError})

		_, err := c.Generate(context.Background(), u.ID, "t")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestGenerate_Validation(t *testing.T) {
	c, _, _, _, _ := setup(t, Options{})

	_, err := c.Generate(context.Background(), 0, "")
	require.True(t, apperr.IsValidation(err))

	var v *apperr.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Len(t, v.Fields, 2)
}

func TestGenerate_UnknownUser(t *testing.T) {
	c, _, _, _, _ := setup(t, Options{})

	_, err := c.Generate(context.Background(), 99, "t")
	assert.True(t, apperr.IsNotFound(err))
}

func TestGenerate_AnalyzerFailureIsInternal(t *testing.T) {
	c, st, an, _, u := setup(t, Options{})
	addSamples(t, st, u.ID, 1)

	an.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(analysis.Result{}, errors.New("model offline"))

	_, err := c.Generate(context.Background(), u.ID, "t")
	require.Error(t, err)

	var internal *apperr.InternalError
	assert.ErrorAs(t, err, &internal)

	reports, err := st.GetReportsForUser(context.Background(), u.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestComposeFrom_RejectsInvalidAnalyzerStatus(t *testing.T) {
	c, _, an, _, u := setup(t, Options{})

	an.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(analysis.Result{Status: "meh"}, nil)

	_, err := c.ComposeFrom(context.Background(), u.ID, "t", []store.HealthSample{{UserID: u.ID}})
	var internal *apperr.InternalError
	assert.ErrorAs(t, err, &internal)
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(store.Report{})
	require.NoError(t, err)
	assert.Empty(t, p.HealthData)

	_, err = DecodePayload(store.Report{ReportData: json.RawMessage(`{"healthData":"nope"}`)})
	assert.Error(t, err)
}
