package vitals

import "fmt"

// Reading holds the raw vitals of one sample. Nil means not measured.
type Reading struct {
	HeartRate              *int
	BloodOxygen            *int
	BloodPressureSystolic  *int
	BloodPressureDiastolic *int
	RespiratoryRate        *int
	RecoveryRate           *int
}

// VitalSign is one dashboard card: value, unit and classified status.
// Value is a number, or "sys/dia" for blood pressure.
type VitalSign struct {
	Value  any    `json:"value"`
	Unit   string `json:"unit"`
	Status Status `json:"status,omitempty"`
}

// VitalStats is the per-request projection of the latest sample.
type VitalStats struct {
	HeartRate       VitalSign `json:"heartRate"`
	BloodOxygen     VitalSign `json:"bloodOxygen"`
	BloodPressure   VitalSign `json:"bloodPressure"`
	RespiratoryRate VitalSign `json:"respiratoryRate"`
	RecoveryRate    VitalSign `json:"recoveryRate"`
}

// NewVitalStats classifies one reading. No history, no smoothing.
func NewVitalStats(r Reading) VitalStats {
	return VitalStats{
		HeartRate:       single(r.HeartRate, "bpm", ClassifyHeartRate),
		BloodOxygen:     single(r.BloodOxygen, "%", ClassifyBloodOxygen),
		BloodPressure:   pressure(r.BloodPressureSystolic, r.BloodPressureDiastolic),
		RespiratoryRate: single(r.RespiratoryRate, "breaths/min", ClassifyRespiratoryRate),
		RecoveryRate:    single(r.RecoveryRate, "%", ClassifyRecoveryRate),
	}
}

func single(v *int, unit string, classify func(float64) Status) VitalSign {
	if v == nil {
		return VitalSign{Unit: unit}
	}
	return VitalSign{Value: *v, Unit: unit, Status: classify(float64(*v))}
}

func pressure(sys, dia *int) VitalSign {
	if sys == nil || dia == nil {
		return VitalSign{Unit: "mmHg"}
	}
	return VitalSign{
		Value:  fmt.Sprintf("%d/%d", *sys, *dia),
		Unit:   "mmHg",
		Status: ClassifyBloodPressure(float64(*sys), float64(*dia)),
	}
}

// Overall is the worst status across the measured vitals, healthy when none were measured.
func (s VitalStats) Overall() Status {
	overall := StatusHealthy
	for _, sign := range []VitalSign{s.HeartRate, s.BloodOxygen, s.BloodPressure, s.RespiratoryRate, s.RecoveryRate} {
		if sign.Status != "" {
			overall = Worst(overall, sign.Status)
		}
	}
	return overall
}

// ReadingStatus classifies a reading as a whole.
func ReadingStatus(r Reading) Status {
	return NewVitalStats(r).Overall()
}
