package model

// RefinementRound is the audit record for one pass of the iterative
// validation loop. Iteration numbering starts at 1.
type RefinementRound struct {
	Iteration         int      `json:"iteration"`
	Query             string   `json:"query"`
	ResultCount       int      `json:"result_count"`
	ConfidenceAtRound float64  `json:"confidence_at_round"`
	IssuesSeen        []string `json:"issues_seen,omitempty"`
}
