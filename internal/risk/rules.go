package risk

import (
	"math"

	"github.com/samber/lo"

	"flowscope/internal/store"
	"flowscope/internal/vitals"
)

// Rule evaluates a window of samples for one category.
// ok is false when the window has no readings for that category.
type Rule func(samples []store.HealthSample) (item AnalysisItem, ok bool)

// DefaultRules are the dashboard categories in display order.
var DefaultRules = []Rule{
	ECGRule,
	BloodPressureRule,
	BloodOxygenRule,
	RespiratoryRateRule,
}

// ---------- RULES ----------

// ECGRule rates the rhythm through the heart rate that accompanies each trace.
func ECGRule(samples []store.HealthSample) (AnalysisItem, bool) {
	statuses := classifyEach(samples, func(s store.HealthSample) (vitals.Status, bool) {
		if s.HeartRate == nil {
			return "", false
		}
		return vitals.ClassifyHeartRate(float64(*s.HeartRate)), true
	})
	return item("ECG Analysis", "heart-pulse", statuses, descriptions{
		healthy:    "Your ECG shows normal sinus rhythm with no significant abnormalities. Heart rate variability is within healthy parameters.",
		concerning: "Your heart rate occasionally leaves the 60-100 bpm range. Keep tracking your rhythm and note any symptoms.",
		critical:   "Your heart rate shows readings far outside the normal range. Please have your ECG reviewed by a physician.",
	})
}

func BloodPressureRule(samples []store.HealthSample) (AnalysisItem, bool) {
	statuses := classifyEach(samples, func(s store.HealthSample) (vitals.Status, bool) {
		if s.BloodPressureSystolic == nil || s.BloodPressureDiastolic == nil {
			return "", false
		}
		return vitals.ClassifyBloodPressure(float64(*s.BloodPressureSystolic), float64(*s.BloodPressureDiastolic)), true
	})
	return item("Blood Pressure", "heart", statuses, descriptions{
		healthy:    "Your blood pressure stays at or below 120/80 mmHg.",
		concerning: "Your blood pressure occasionally rises above ideal levels. Consider monitoring salt intake and stress management techniques.",
		critical:   "Your blood pressure reached hypertensive levels. Contact your healthcare provider.",
	})
}

func BloodOxygenRule(samples []store.HealthSample) (AnalysisItem, bool) {
	statuses := classifyEach(samples, func(s store.HealthSample) (vitals.Status, bool) {
		if s.BloodOxygen == nil {
			return "", false
		}
		return vitals.ClassifyBloodOxygen(float64(*s.BloodOxygen)), true
	})
	return item("Blood Oxygen", "droplet", statuses, descriptions{
		healthy:    "Your SpO2 levels consistently stay above 95%, indicating excellent oxygen saturation in your blood.",
		concerning: "Your SpO2 dipped below 95% in some readings. Monitor your breathing and oxygen levels.",
		critical:   "Your SpO2 fell below 90%. Low oxygen saturation needs prompt medical attention.",
	})
}

func RespiratoryRateRule(samples []store.HealthSample) (AnalysisItem, bool) {
	statuses := classifyEach(samples, func(s store.HealthSample) (vitals.Status, bool) {
		if s.RespiratoryRate == nil {
			return "", false
		}
		return vitals.ClassifyRespiratoryRate(float64(*s.RespiratoryRate)), true
	})
	return item("Respiratory Rate", "lungs", statuses, descriptions{
		healthy:    "Your breathing rate is within normal range at 12-20 breaths per minute, indicating healthy lung function.",
		concerning: "Your breathing rate is sometimes outside 12-20 breaths per minute. This could be related to sleep quality or exertion.",
		critical:   "Your breathing rate reached abnormal levels. Seek medical advice.",
	})
}

// ---------- HELPERS ----------

type descriptions struct {
	healthy, concerning, critical string
}

func classifyEach(samples []store.HealthSample, classify func(store.HealthSample) (vitals.Status, bool)) []vitals.Status {
	return lo.FilterMap(samples, func(s store.HealthSample, _ int) (vitals.Status, bool) {
		return classify(s)
	})
}

func item(title, icon string, statuses []vitals.Status, d descriptions) (AnalysisItem, bool) {
	if len(statuses) == 0 {
		return AnalysisItem{}, false
	}

	status := lo.Reduce(statuses, func(acc vitals.Status, s vitals.Status, _ int) vitals.Status {
		return vitals.Worst(acc, s)
	}, vitals.StatusHealthy)

	desc := d.healthy
	switch status {
	case vitals.StatusConcerning:
		desc = d.concerning
	case vitals.StatusCritical:
		desc = d.critical
	}

	return AnalysisItem{
		Title:       title,
		Icon:        icon,
		Risk:        Score(statuses),
		Description: desc,
		Status:      status,
	}, true
}

// Score averages per-reading weights (healthy 0, concerning 50, critical 100) into 0-100.
func Score(statuses []vitals.Status) int {
	if len(statuses) == 0 {
		return 0
	}
	total := lo.SumBy(statuses, func(s vitals.Status) int {
		switch s {
		case vitals.StatusCritical:
			return 100
		case vitals.StatusConcerning:
			return 50
		}
		return 0
	})
	return int(math.Round(float64(total) / float64(len(statuses))))
}
