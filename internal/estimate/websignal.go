package estimate

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/torqueline/estimator/internal/consensus"
	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/refine"
	"github.com/torqueline/estimator/internal/validate"
)

// WebSignalCapability derives a labor estimate from live web search:
// it searches labor-time phrasing for the task, validates the results
// in hours mode, and reconciles the extracted durations.
type WebSignalCapability struct {
	searcher  refine.Searcher
	validator *validate.Validator
	domains   []string
}

// NewWebSignalCapability builds the capability. A nil validator gets
// the default hours-mode policy.
func NewWebSignalCapability(searcher refine.Searcher, validator *validate.Validator, domains []string) *WebSignalCapability {
	if validator == nil {
		validator = validate.New(validate.DefaultPolicy(validate.ModeHours))
	}
	return &WebSignalCapability{searcher: searcher, validator: validator, domains: domains}
}

// Name returns the source name the capability reports under.
func (w *WebSignalCapability) Name() string { return "web_signals" }

// EstimateTask searches for labor-time discussion of the task and
// reduces the extracted durations to a single span. Finding nothing
// wraps ErrUnparseable so the caller records a parse_error status.
func (w *WebSignalCapability) EstimateTask(ctx context.Context, description string) (model.TaskEstimate, error) {
	query := description + " labor time hours book time"
	obs, err := w.searcher.Search(ctx, query, w.domains)
	if err != nil {
		return model.TaskEstimate{}, eris.Wrap(err, "estimate: web search")
	}

	samples := consensus.FromObservations(w.validator.ValidateAll(obs), model.UnitHours)
	if len(samples) == 0 {
		return model.TaskEstimate{}, eris.Wrap(ErrUnparseable, "no labor-time signals in search results")
	}

	summary := consensus.SummarizeHours(samples)
	return model.TaskEstimate{
		Low:       summary.Min,
		High:      summary.Max,
		Average:   summary.Mean,
		Reasoning: fmt.Sprintf("%d web sources, %s agreement on %.1f to %.1f hours", summary.SampleSize, summary.ConfidenceTier, summary.Min, summary.Max),
	}, nil
}
