package store

import (
	"encoding/json"
	"time"

	"flowscope/internal/vitals"
)

// User is an account owning samples and reports.
// Password is kept as provided; it is never serialized.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// ECGPoint is one point of an ECG waveform.
type ECGPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// HealthSample is one timestamped vital-sign reading. Immutable once created.
type HealthSample struct {
	ID                     int64         `json:"id"`
	UserID                 int64         `json:"userId"`
	Timestamp              time.Time     `json:"timestamp"`
	ECGData                []ECGPoint    `json:"ecgData"`
	HeartRate              *int          `json:"heartRate"`
	BloodOxygen            *int          `json:"bloodOxygen"`
	BloodPressureSystolic  *int          `json:"bloodPressureSystolic"`
	BloodPressureDiastolic *int          `json:"bloodPressureDiastolic"`
	RespiratoryRate        *int          `json:"respiratoryRate"`
	RecoveryRate           *int          `json:"recoveryRate"`
	HealthStatus           vitals.Status `json:"healthStatus,omitempty"`
}

// Reading extracts the raw vitals for classification.
func (s HealthSample) Reading() vitals.Reading {
	return vitals.Reading{
		HeartRate:              s.HeartRate,
		BloodOxygen:            s.BloodOxygen,
		BloodPressureSystolic:  s.BloodPressureSystolic,
		BloodPressureDiastolic: s.BloodPressureDiastolic,
		RespiratoryRate:        s.RespiratoryRate,
		RecoveryRate:           s.RecoveryRate,
	}
}

// Report is a persisted summary of an analysis over a window of samples.
type Report struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"userId"`
	Title        string          `json:"title"`
	Summary      string          `json:"summary"`
	HealthStatus vitals.Status   `json:"healthStatus"`
	CreatedAt    time.Time       `json:"createdAt"`
	ReportData   json.RawMessage `json:"reportData"`
}

// Stats counts the rows of each collection.
// Pruned is the outcome of a retention delete. UserIDs is sorted and holds
// every user that lost at least one sample.
type Pruned struct {
	Samples int
	UserIDs []int64
}

type Stats struct {
	Users   int `json:"users"`
	Samples int `json:"samples"`
	Reports int `json:"reports"`
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSample(s HealthSample) HealthSample {
	out := s
	if s.ECGData != nil {
		out.ECGData = append([]ECGPoint(nil), s.ECGData...)
	}
	out.HeartRate = cloneInt(s.HeartRate)
	out.BloodOxygen = cloneInt(s.BloodOxygen)
	out.BloodPressureSystolic = cloneInt(s.BloodPressureSystolic)
	out.BloodPressureDiastolic = cloneInt(s.BloodPressureDiastolic)
	out.RespiratoryRate = cloneInt(s.RespiratoryRate)
	out.RecoveryRate = cloneInt(s.RecoveryRate)
	return out
}

func cloneReport(r Report) Report {
	out := r
	if r.ReportData != nil {
		out.ReportData = append(json.RawMessage(nil), r.ReportData...)
	}
	return out
}
