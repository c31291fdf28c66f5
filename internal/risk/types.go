package risk

import "flowscope/internal/vitals"

// AnalysisItem is one named risk category with a 0-100 score.
type AnalysisItem struct {
	Title       string        `json:"title"`
	Icon        string        `json:"icon"`
	Risk        int           `json:"risk"`
	Description string        `json:"description"`
	Status      vitals.Status `json:"status"`
}

// Summary is the overall verdict across analysis items.
type Summary struct {
	Status           vitals.Status  `json:"status"`
	Recommendation   string         `json:"recommendation"`
	RiskLevel        string         `json:"riskLevel"`
	Emergency        bool           `json:"emergency"`
	EmergencyMessage string         `json:"emergencyMessage,omitempty"`
	Items            []AnalysisItem `json:"items"`
}

// Messages are the recommendation templates, one per overall status.
type Messages struct {
	Critical   string
	Concerning string
	Healthy    string
	Emergency  string
}

// DefaultMessages returns the stock English recommendations.
func DefaultMessages() Messages {
	return Messages{
		Critical:   "Your heart parameters show critical values. Please seek immediate medical attention.",
		Concerning: "Some of your heart parameters need attention. Consider consulting with your healthcare provider and monitor these values closely.",
		Healthy:    "Your heart is functioning well. To maintain optimal health, consider regular exercise and balanced nutrition. No immediate actions needed.",
		Emergency:  "Our AI has detected a potentially serious health issue that requires immediate attention. Please contact emergency services or your healthcare provider immediately.",
	}
}

// For returns the template for status. Unknown statuses get the healthy text.
func (m Messages) For(status vitals.Status) string {
	switch status {
	case vitals.StatusCritical:
		return m.Critical
	case vitals.StatusConcerning:
		return m.Concerning
	default:
		return m.Healthy
	}
}

// withDefaults fills blank templates from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.Critical == "" {
		m.Critical = d.Critical
	}
	if m.Concerning == "" {
		m.Concerning = d.Concerning
	}
	if m.Healthy == "" {
		m.Healthy = d.Healthy
	}
	if m.Emergency == "" {
		m.Emergency = d.Emergency
	}
	return m
}
