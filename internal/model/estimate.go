package model

// EstimateStatus records how a capability call turned out.
type EstimateStatus string

const (
	EstimateOK         EstimateStatus = "ok"
	EstimateParseError EstimateStatus = "parse_error"
	EstimateCallError  EstimateStatus = "call_error"
	EstimateTimeout    EstimateStatus = "timeout"
)

// TaskEstimate is one source's labor-time estimate for a task, in hours.
type TaskEstimate struct {
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	Average   float64 `json:"average"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// WellFormed reports whether the estimate carries usable bounds.
func (e TaskEstimate) WellFormed() bool {
	return e.Low > 0 && e.High >= e.Low && e.Average > 0
}

// SourceEstimate is a task estimate together with the outcome of the
// call that produced it. Estimates with a non-ok status keep whatever
// partial data came back but are excluded from derived statistics.
type SourceEstimate struct {
	TaskEstimate
	Status EstimateStatus `json:"status"`
}

// DataQuality scores how much trustworthy signal went into a consensus
// estimate: a well-formed prior, parsed external sources, and a
// structurally complete final estimate each contribute credit.
type DataQuality struct {
	Score               float64        `json:"score"`
	Tier                ConfidenceTier `json:"tier"`
	ContributingFactors []string       `json:"contributing_factors,omitempty"`
}

// ConsensusEstimate is the full outcome of a multi-source estimation
// pass. CompletionOrder lists source names in the order their calls
// finished. FinalEstimate is attached later by an external decision
// maker; it is never chosen here.
type ConsensusEstimate struct {
	TaskDescription       string                    `json:"task_description"`
	SourceEstimates       map[string]SourceEstimate `json:"source_estimates"`
	CompletionOrder       []string                  `json:"completion_order,omitempty"`
	CallerInitialEstimate *TaskEstimate             `json:"caller_initial_estimate,omitempty"`
	FinalEstimate         *TaskEstimate             `json:"final_estimate,omitempty"`
	Summary               *ConsensusSummary         `json:"summary,omitempty"`
	DataQuality           DataQuality               `json:"data_quality"`
}
