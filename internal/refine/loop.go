package refine

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/validate"
)

// highQualityFloor is the quality score at which an observation counts
// toward the high-quality term of aggregate confidence.
const highQualityFloor = 70.0

// Searcher produces raw observations for a query. A failing search is
// treated by the loop as an empty round, never as a fatal error.
type Searcher interface {
	Search(ctx context.Context, query string, domains []string) ([]model.RawObservation, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, domains []string) ([]model.RawObservation, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string, domains []string) ([]model.RawObservation, error) {
	return f(ctx, query, domains)
}

// Config bounds the refinement loop.
type Config struct {
	TargetConfidence float64
	MaxRounds        int
	DomainHints      []string
}

// DefaultConfig returns the standard loop bounds.
func DefaultConfig() Config {
	return Config{TargetConfidence: 90.0, MaxRounds: 3}
}

// Result is the outcome of a refinement run. Rounds is the append-only
// audit trail; Observations carries every deduplicated observation the
// run touched, validated.
type Result struct {
	Observations    []model.ValidatedObservation `json:"observations"`
	Rounds          []model.RefinementRound      `json:"rounds"`
	FinalConfidence float64                      `json:"final_confidence"`
	TargetReached   bool                         `json:"target_reached"`
	Issues          []string                     `json:"issues,omitempty"`
}

// Loop runs validate-plan-search rounds, strictly one at a time, until
// the confidence target is met, the planner runs out of refinements,
// or the round cap is hit.
type Loop struct {
	cfg       Config
	validator *validate.Validator
}

// New builds a Loop. Non-positive config fields fall back to defaults.
func New(cfg Config, v *validate.Validator) *Loop {
	def := DefaultConfig()
	if cfg.TargetConfidence <= 0 {
		cfg.TargetConfidence = def.TargetConfidence
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	return &Loop{cfg: cfg, validator: v}
}

// Refine validates the initial observations and keeps refining the
// query until a terminal condition is met. Zero observations at any
// point yields confidence 0 for that round, not an error.
func (l *Loop) Refine(ctx context.Context, query string, initial []model.RawObservation, search Searcher) (*Result, error) {
	log := zap.L().With(zap.String("phase", "refine"))

	current := mergeObservations(nil, initial)
	currentQuery := query
	result := &Result{}

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "refine: loop canceled")
		}

		validated := l.validator.ValidateAll(current)
		issues := IssueSet(validated)
		if len(validated) == 0 {
			issues[model.IssueNoResults] = struct{}{}
		}
		confidence := aggregateConfidence(validated)

		result.Observations = validated
		result.FinalConfidence = confidence
		result.Issues = sortedIssues(issues)
		result.Rounds = append(result.Rounds, model.RefinementRound{
			Iteration:         round,
			Query:             currentQuery,
			ResultCount:       len(validated),
			ConfidenceAtRound: confidence,
			IssuesSeen:        sortedIssues(issues),
		})

		log.Info("refine: round complete",
			zap.Int("iteration", round),
			zap.String("query", currentQuery),
			zap.Int("results", len(validated)),
			zap.Float64("confidence", confidence),
		)

		if confidence >= l.cfg.TargetConfidence {
			result.TargetReached = true
			return result, nil
		}

		next, ok := PlanNextQuery(currentQuery, issues)
		if !ok {
			log.Info("refine: no further refinement possible",
				zap.Float64("confidence", confidence),
			)
			return result, nil
		}

		if round >= l.cfg.MaxRounds {
			log.Info("refine: round cap reached",
				zap.Int("max_rounds", l.cfg.MaxRounds),
				zap.Float64("confidence", confidence),
			)
			return result, nil
		}

		found, err := search.Search(ctx, next, l.cfg.DomainHints)
		if err != nil {
			// A failed search contributes nothing; the next round
			// re-validates what we already have.
			log.Warn("refine: search failed",
				zap.String("query", next),
				zap.Error(err),
			)
			found = nil
		}

		current = mergeObservations(current, found)
		currentQuery = next
	}
}

// aggregateConfidence blends average quality with high-quality count
// and result volume. Every term lives on [0, 100], so the mean does
// too.
func aggregateConfidence(obs []model.ValidatedObservation) float64 {
	if len(obs) == 0 {
		return 0
	}
	sum := 0.0
	highQuality := 0
	for _, o := range obs {
		sum += o.QualityScore
		if o.QualityScore >= highQualityFloor {
			highQuality++
		}
	}
	avg := sum / float64(len(obs))
	highTerm := math.Min(float64(highQuality)*20, 100)
	volumeTerm := math.Min(float64(len(obs))*10, 100)
	return math.Round((avg+highTerm+volumeTerm)/3*100) / 100
}

// mergeObservations appends newly found observations, keeping the
// first-seen entry per source URL and the original ordering.
func mergeObservations(existing, found []model.RawObservation) []model.RawObservation {
	seen := make(map[string]bool, len(existing))
	out := make([]model.RawObservation, 0, len(existing)+len(found))
	for _, o := range existing {
		if seen[o.SourceURL] {
			continue
		}
		seen[o.SourceURL] = true
		out = append(out, o)
	}
	for _, o := range found {
		if seen[o.SourceURL] {
			continue
		}
		seen[o.SourceURL] = true
		out = append(out, o)
	}
	return out
}
