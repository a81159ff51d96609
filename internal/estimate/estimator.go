// Package estimate reconciles labor-time estimates from multiple
// independent capabilities into a single consensus with a data quality
// score.
package estimate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torqueline/estimator/internal/consensus"
	"github.com/torqueline/estimator/internal/model"
)

// ErrMissingPriorEstimate is returned when estimation is attempted
// without the caller's own initial estimate. External sources anchor
// against the prior; without one no capability is even called.
var ErrMissingPriorEstimate = eris.New("estimate: caller initial estimate is required")

// ErrUnparseable marks capability responses that came back but carried
// no usable estimate. It maps to a parse_error status, not a failure
// of the estimation pass.
var ErrUnparseable = eris.New("estimate: response did not contain a usable estimate")

// Capability is one independent source of labor-time estimates.
type Capability interface {
	Name() string
	EstimateTask(ctx context.Context, description string) (model.TaskEstimate, error)
}

// Config bounds a multi-source estimation pass.
type Config struct {
	PerCallTimeout time.Duration
}

// DefaultConfig returns the standard estimation bounds.
func DefaultConfig() Config {
	return Config{PerCallTimeout: 30 * time.Second}
}

// MultiSourceEstimator fans a task description out to every capability
// concurrently, with one worker per capability and a per-call timeout,
// and reconciles whatever comes back. A slow or failing capability
// costs its own slot and nothing else.
type MultiSourceEstimator struct {
	cfg Config
}

// New builds a MultiSourceEstimator. Non-positive timeouts fall back
// to the default.
func New(cfg Config) *MultiSourceEstimator {
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = DefaultConfig().PerCallTimeout
	}
	return &MultiSourceEstimator{cfg: cfg}
}

// Estimate runs every capability against the task description and
// assembles the consensus. A nil prior refuses before any capability
// call. Capability failures are retained as non-ok source estimates
// and excluded from the reconciled summary.
func (m *MultiSourceEstimator) Estimate(ctx context.Context, description string, prior *model.TaskEstimate, caps []Capability) (*model.ConsensusEstimate, error) {
	if prior == nil {
		return nil, ErrMissingPriorEstimate
	}

	log := zap.L().With(zap.String("phase", "estimate"))
	log.Info("estimate: dispatching capabilities",
		zap.Int("capabilities", len(caps)),
		zap.String("task", description),
	)

	var (
		mu        sync.Mutex
		estimates = make(map[string]model.SourceEstimate, len(caps))
		order     = make([]string, 0, len(caps))
	)

	g, gCtx := errgroup.WithContext(ctx)
	if len(caps) > 0 {
		g.SetLimit(len(caps))
	}
	for _, c := range caps {
		g.Go(func() error {
			est := m.callOne(gCtx, c, description)
			mu.Lock()
			estimates[c.Name()] = est
			order = append(order, c.Name())
			mu.Unlock()
			// Failures travel in the estimate status; never fail the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "estimate: capability pool")
	}

	ce := &model.ConsensusEstimate{
		TaskDescription:       description,
		SourceEstimates:       estimates,
		CompletionOrder:       order,
		CallerInitialEstimate: prior,
	}

	samples := make([]consensus.Sample, 0, len(order)+1)
	if prior.WellFormed() {
		samples = append(samples, consensus.Sample{Source: "caller_prior", Value: prior.Average})
	}
	for _, name := range order {
		if est := estimates[name]; est.Status == model.EstimateOK {
			samples = append(samples, consensus.Sample{Source: name, Value: est.Average})
		}
	}
	if len(samples) > 0 {
		summary := consensus.SummarizeHours(samples)
		ce.Summary = &summary
	}

	ce.DataQuality = scoreDataQuality(ce)

	log.Info("estimate: consensus assembled",
		zap.Int("sources_ok", countOK(estimates)),
		zap.Int("sources_total", len(estimates)),
		zap.Float64("data_quality", ce.DataQuality.Score),
		zap.String("tier", string(ce.DataQuality.Tier)),
	)
	return ce, nil
}

// Finalize attaches the decision maker's chosen estimate and rescores
// data quality. The estimator itself never selects a final estimate.
func Finalize(ce *model.ConsensusEstimate, final model.TaskEstimate) {
	ce.FinalEstimate = &final
	ce.DataQuality = scoreDataQuality(ce)
}

func (m *MultiSourceEstimator) callOne(ctx context.Context, c Capability, description string) model.SourceEstimate {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.PerCallTimeout)
	defer cancel()

	start := time.Now()
	est, err := c.EstimateTask(callCtx, description)
	elapsed := time.Since(start)

	out := model.SourceEstimate{TaskEstimate: est}
	switch {
	case err == nil && est.WellFormed():
		out.Status = model.EstimateOK
	case err == nil || errors.Is(err, ErrUnparseable):
		out.Status = model.EstimateParseError
	case errors.Is(err, context.DeadlineExceeded):
		out.Status = model.EstimateTimeout
	default:
		out.Status = model.EstimateCallError
	}

	if out.Status == model.EstimateOK {
		zap.L().Debug("estimate: capability succeeded",
			zap.String("capability", c.Name()),
			zap.Float64("average_hours", est.Average),
			zap.Duration("elapsed", elapsed),
		)
	} else {
		zap.L().Warn("estimate: capability yielded no estimate",
			zap.String("capability", c.Name()),
			zap.String("status", string(out.Status)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	return out
}

// scoreDataQuality credits a well-formed prior, parsed external
// sources capped at two, and a structurally complete final estimate.
func scoreDataQuality(ce *model.ConsensusEstimate) model.DataQuality {
	score := 0.0
	var factors []string

	if ce.CallerInitialEstimate != nil && ce.CallerInitialEstimate.WellFormed() {
		score += 25
		factors = append(factors, "prior_estimate")
	}
	if ok := countOK(ce.SourceEstimates); ok > 0 {
		score += math.Min(float64(ok)*25, 50)
		factors = append(factors, fmt.Sprintf("external_sources:%d", ok))
	}
	if ce.FinalEstimate != nil && ce.FinalEstimate.WellFormed() {
		score += 25
		factors = append(factors, "final_estimate")
	}

	return model.DataQuality{
		Score:               score,
		Tier:                qualityTier(score),
		ContributingFactors: factors,
	}
}

func qualityTier(score float64) model.ConfidenceTier {
	switch {
	case score >= 90:
		return model.TierHigh
	case score >= 70:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

func countOK(estimates map[string]model.SourceEstimate) int {
	n := 0
	for _, est := range estimates {
		if est.Status == model.EstimateOK {
			n++
		}
	}
	return n
}
