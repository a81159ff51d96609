package model

import (
	"encoding/json"
	"time"
)

// RunKind distinguishes what a recorded run produced.
type RunKind string

const (
	RunKindPriceValidation RunKind = "price_validation"
	RunKindLaborEstimate   RunKind = "labor_estimate"
)

// RunStatus tracks a run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded validation or estimation pass. Result holds the
// kind-specific payload exactly as the core produced it: a validation
// result for price_validation runs, a consensus estimate for
// labor_estimate runs. FailureClass marks failed runs as transient or
// permanent so operators know which are worth rerunning.
type Run struct {
	ID           string          `json:"id"`
	Kind         RunKind         `json:"kind"`
	Query        string          `json:"query"`
	Status       RunStatus       `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	FailureClass string          `json:"failure_class,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
