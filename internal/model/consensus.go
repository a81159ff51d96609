package model

// ConfidenceTier buckets how much agreement a set of values shows.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
	TierNone   ConfidenceTier = "none"
)

// AnomalyDirection says which side of the mean an anomalous value sits on.
type AnomalyDirection string

const (
	AnomalyHigh AnomalyDirection = "high"
	AnomalyLow  AnomalyDirection = "low"
)

// Anomaly flags a single value that deviates sharply from the sample mean.
type Anomaly struct {
	Source       string           `json:"source"`
	Value        float64          `json:"value"`
	Direction    AnomalyDirection `json:"direction"`
	DeviationPct float64          `json:"deviation_pct"`
}

// ConsensusSummary is the statistical digest of a set of numeric values
// gathered from independent sources.
type ConsensusSummary struct {
	Min            float64        `json:"min"`
	Max            float64        `json:"max"`
	Mean           float64        `json:"mean"`
	SampleSize     int            `json:"sample_size"`
	ConfidenceTier ConfidenceTier `json:"confidence_tier"`
	Anomalies      []Anomaly      `json:"anomalies,omitempty"`
	Recommendation string         `json:"recommendation"`
}
