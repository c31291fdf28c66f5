package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

func intPtr(v int) *int { return &v }

func itemWith(status vitals.Status) AnalysisItem {
	return AnalysisItem{Title: string(status), Status: status}
}

func TestAggregate_AnyCriticalWins(t *testing.T) {
	agg := NewAggregator(Messages{})
	items := []AnalysisItem{
		itemWith(vitals.StatusHealthy),
		itemWith(vitals.StatusCritical),
		itemWith(vitals.StatusConcerning),
	}

	summary := agg.Aggregate(items)

	assert.Equal(t, vitals.StatusCritical, summary.Status)
	assert.True(t, summary.Emergency)
	assert.Equal(t, DefaultMessages().Critical, summary.Recommendation)
	assert.Equal(t, DefaultMessages().Emergency, summary.EmergencyMessage)
	assert.Equal(t, "High Risk", summary.RiskLevel)
	assert.Len(t, summary.Items, 3)
}

func TestAggregate_Concerning(t *testing.T) {
	summary := NewAggregator(Messages{}).Aggregate([]AnalysisItem{
		itemWith(vitals.StatusHealthy),
		itemWith(vitals.StatusConcerning),
	})

	assert.Equal(t, vitals.StatusConcerning, summary.Status)
	assert.False(t, summary.Emergency)
	assert.Empty(t, summary.EmergencyMessage)
	assert.Equal(t, DefaultMessages().Concerning, summary.Recommendation)
}

func TestAggregate_EmptyIsHealthy(t *testing.T) {
	summary := NewAggregator(Messages{}).Aggregate(nil)

	assert.Equal(t, vitals.StatusHealthy, summary.Status)
	assert.Equal(t, DefaultMessages().Healthy, summary.Recommendation)
	assert.NotNil(t, summary.Items)
	assert.Empty(t, summary.Items)
}

func TestAggregate_CustomMessages(t *testing.T) {
	agg := NewAggregator(Messages{Healthy: "all good"})

	assert.Equal(t, "all good", agg.Aggregate(nil).Recommendation)
	assert.Equal(t, DefaultMessages().Critical, agg.Messages().Critical)
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0, Score(nil))
	assert.Equal(t, 0, Score([]vitals.Status{vitals.StatusHealthy, vitals.StatusHealthy}))
	assert.Equal(t, 50, Score([]vitals.Status{vitals.StatusConcerning}))
	assert.Equal(t, 50, Score([]vitals.Status{vitals.StatusHealthy, vitals.StatusCritical}))
	assert.Equal(t, 33, Score([]vitals.Status{vitals.StatusHealthy, vitals.StatusHealthy, vitals.StatusCritical}))
}

func TestAssess_BuildsItemsFromWindow(t *testing.T) {
	now := time.Now()
	samples := []store.HealthSample{
		{
			Timestamp:              now,
			HeartRate:              intPtr(72),
			BloodOxygen:            intPtr(98),
			BloodPressureSystolic:  intPtr(135),
			BloodPressureDiastolic: intPtr(85),
		},
		{
			Timestamp:              now.Add(-time.Hour),
			HeartRate:              intPtr(75),
			BloodOxygen:            intPtr(88),
			BloodPressureSystolic:  intPtr(118),
			BloodPressureDiastolic: intPtr(75),
		},
	}

	items := Assess(samples)
	require.Len(t, items, 3, "respiratory rate has no readings and is omitted")

	assert.Equal(t, "ECG Analysis", items[0].Title)
	assert.Equal(t, vitals.StatusHealthy, items[0].Status)
	assert.Equal(t, 0, items[0].Risk)

	assert.Equal(t, "Blood Pressure", items[1].Title)
	assert.Equal(t, vitals.StatusConcerning, items[1].Status)
	assert.Equal(t, 25, items[1].Risk)

	assert.Equal(t, "Blood Oxygen", items[2].Title)
	assert.Equal(t, "droplet", items[2].Icon)
	assert.Equal(t, vitals.StatusCritical, items[2].Status)
	assert.Equal(t, 50, items[2].Risk)

	summary := NewAggregator(Messages{}).Evaluate(samples)
	assert.Equal(t, vitals.StatusCritical, summary.Status)
}

func TestAssess_PartialBloodPressureIgnored(t *testing.T) {
	items := Assess([]store.HealthSample{{BloodPressureSystolic: intPtr(180)}})
	assert.Empty(t, items)
}

func TestAssess_CustomRules(t *testing.T) {
	always := func([]store.HealthSample) (AnalysisItem, bool) {
		return itemWith(vitals.StatusConcerning), true
	}
	never := func([]store.HealthSample) (AnalysisItem, bool) {
		return AnalysisItem{}, false
	}

	items := Assess(nil, always, never)
	require.Len(t, items, 1)
	assert.Equal(t, vitals.StatusConcerning, items[0].Status)
}
