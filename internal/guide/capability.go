package guide

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/estimate"
	"github.com/torqueline/estimator/internal/model"
)

// capabilityName is the source name guide estimates report under.
const capabilityName = "flat_rate_guide"

// Capability exposes a Guide as a labor estimation source.
type Capability struct {
	guide *Guide
}

// NewCapability wraps g as an estimation capability.
func NewCapability(g *Guide) *Capability {
	return &Capability{guide: g}
}

// Name returns the source name.
func (c *Capability) Name() string { return capabilityName }

// EstimateTask looks the description up in the guide. A miss wraps
// estimate.ErrUnparseable so the caller records a parse error rather
// than a failed call.
func (c *Capability) EstimateTask(ctx context.Context, description string) (model.TaskEstimate, error) {
	if err := ctx.Err(); err != nil {
		return model.TaskEstimate{}, eris.Wrap(err, "guide: lookup")
	}

	m, ok := c.guide.Lookup(description)
	if !ok {
		return model.TaskEstimate{}, eris.Wrap(estimate.ErrUnparseable, "guide: no entry matched task")
	}

	zap.L().Debug("guide: matched",
		zap.String("operation", m.Row.Operation),
		zap.Float64("score", m.Score),
	)

	return model.TaskEstimate{
		Low:       m.Row.LowHours,
		High:      m.Row.HighHours,
		Average:   (m.Row.LowHours + m.Row.HighHours) / 2,
		Reasoning: fmt.Sprintf("flat-rate guide: %s", describeRow(m.Row)),
	}, nil
}

func describeRow(r Row) string {
	if v := strings.TrimSpace(r.Vehicle); v != "" && v != "*" {
		return fmt.Sprintf("%s (%s)", r.Operation, v)
	}
	return r.Operation
}
