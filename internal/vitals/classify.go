package vitals

import "fmt"

// Metric names a classifiable vital sign.
type Metric string

const (
	MetricHeartRate       Metric = "heart_rate"
	MetricBloodOxygen     Metric = "blood_oxygen"
	MetricBloodPressure   Metric = "blood_pressure"
	MetricRespiratoryRate Metric = "respiratory_rate"
	MetricRecoveryRate    Metric = "recovery_rate"
)

// Metrics lists the supported metrics in dashboard order.
var Metrics = []Metric{
	MetricHeartRate,
	MetricBloodOxygen,
	MetricBloodPressure,
	MetricRespiratoryRate,
	MetricRecoveryRate,
}

// Bands are checked top-down and the first match wins.

func ClassifyBloodOxygen(v float64) Status {
	if v >= 95 {
		return StatusHealthy
	}
	if v >= 90 {
		return StatusConcerning
	}
	return StatusCritical
}

func ClassifyBloodPressure(systolic, diastolic float64) Status {
	if systolic <= 120 && diastolic <= 80 {
		return StatusHealthy
	}
	if systolic <= 139 && diastolic <= 89 {
		return StatusConcerning
	}
	return StatusCritical
}

// ClassifyRespiratoryRate: the concerning band is effectively 10-11 and 21-24.
func ClassifyRespiratoryRate(v float64) Status {
	if v >= 12 && v <= 20 {
		return StatusHealthy
	}
	if v >= 10 && v <= 24 {
		return StatusConcerning
	}
	return StatusCritical
}

func ClassifyRecoveryRate(v float64) Status {
	if v >= 80 {
		return StatusHealthy
	}
	if v >= 60 {
		return StatusConcerning
	}
	return StatusCritical
}

func ClassifyHeartRate(v float64) Status {
	if v >= 60 && v <= 100 {
		return StatusHealthy
	}
	if (v >= 50 && v < 60) || (v > 100 && v <= 110) {
		return StatusConcerning
	}
	return StatusCritical
}

// Classify dispatches by metric name. Blood pressure takes systolic then diastolic;
// every other metric takes exactly one value.
func Classify(metric Metric, values ...float64) (Status, error) {
	want := 1
	if metric == MetricBloodPressure {
		want = 2
	}

	switch metric {
	case MetricHeartRate, MetricBloodOxygen, MetricBloodPressure,
		MetricRespiratoryRate, MetricRecoveryRate:
	default:
		return "", fmt.Errorf("unknown metric %q", metric)
	}

	if len(values) != want {
		return "", fmt.Errorf("metric %s takes %d value(s), got %d", metric, want, len(values))
	}

	switch metric {
	case MetricHeartRate:
		return ClassifyHeartRate(values[0]), nil
	case MetricBloodOxygen:
		return ClassifyBloodOxygen(values[0]), nil
	case MetricBloodPressure:
		return ClassifyBloodPressure(values[0], values[1]), nil
	case MetricRespiratoryRate:
		return ClassifyRespiratoryRate(values[0]), nil
	default:
		return ClassifyRecoveryRate(values[0]), nil
	}
}
