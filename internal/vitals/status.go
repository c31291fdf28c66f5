package vitals

import (
	"encoding/json"
	"fmt"
)

// Status is the closed-set classification of a vital sign or an aggregate risk.
type Status string

const (
	StatusHealthy    Status = "healthy"
	StatusConcerning Status = "concerning"
	StatusCritical   Status = "critical"
)

// Statuses lists every valid status, least severe first.
var Statuses = []Status{StatusHealthy, StatusConcerning, StatusCritical}

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusHealthy, StatusConcerning, StatusCritical:
		return true
	}
	return false
}

// Severity orders statuses: healthy 0, concerning 1, critical 2.
// Unknown values rank below healthy.
func (s Status) Severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusConcerning:
		return 1
	case StatusCritical:
		return 2
	}
	return -1
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// Label is the short dashboard text for a vital card.
func (s Status) Label() string {
	switch s {
	case StatusHealthy:
		return "Normal"
	case StatusConcerning:
		return "Monitoring"
	case StatusCritical:
		return "Critical"
	}
	return "Unknown"
}

// RiskLevel is the wording used by the risk summary.
func (s Status) RiskLevel() string {
	switch s {
	case StatusHealthy:
		return "Low Risk"
	case StatusConcerning:
		return "Moderate Risk"
	case StatusCritical:
		return "High Risk"
	}
	return "Unknown Risk"
}

// UnmarshalJSON accepts "" as the zero Status; write paths check membership.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
