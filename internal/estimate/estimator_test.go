package estimate

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqueline/estimator/internal/model"
)

type stubCapability struct {
	name  string
	est   model.TaskEstimate
	err   error
	delay time.Duration
	calls *int
}

func (s stubCapability) Name() string { return s.name }

func (s stubCapability) EstimateTask(ctx context.Context, _ string) (model.TaskEstimate, error) {
	if s.calls != nil {
		*s.calls++
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return model.TaskEstimate{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.est, s.err
}

func goodEstimate(avg float64) model.TaskEstimate {
	return model.TaskEstimate{Low: avg - 0.5, High: avg + 0.5, Average: avg, Reasoning: "bench reference"}
}

func testPrior() *model.TaskEstimate {
	return &model.TaskEstimate{Low: 1.5, High: 2.5, Average: 2.0, Reasoning: "shop history"}
}

func TestEstimate_RequiresPrior(t *testing.T) {
	t.Parallel()

	calls := 0
	caps := []Capability{stubCapability{name: "a", est: goodEstimate(2), calls: &calls}}

	_, err := New(DefaultConfig()).Estimate(context.Background(), "replace alternator", nil, caps)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPriorEstimate)
	assert.Zero(t, calls, "no capability may be called without a prior")
}

func TestEstimate_MalformedPriorStillRuns(t *testing.T) {
	t.Parallel()

	prior := &model.TaskEstimate{Low: 0, High: 0, Average: 0}
	caps := []Capability{stubCapability{name: "a", est: goodEstimate(2)}}

	ce, err := New(DefaultConfig()).Estimate(context.Background(), "replace alternator", prior, caps)
	require.NoError(t, err)

	assert.NotContains(t, ce.DataQuality.ContributingFactors, "prior_estimate")
	assert.Equal(t, 25.0, ce.DataQuality.Score, "only the external source earns credit")
}

func TestEstimate_WorkerIsolation(t *testing.T) {
	t.Parallel()

	cfg := Config{PerCallTimeout: 50 * time.Millisecond}
	caps := []Capability{
		stubCapability{name: "fast_a", est: goodEstimate(2.0)},
		stubCapability{name: "fast_b", est: goodEstimate(2.2)},
		stubCapability{name: "slow", est: goodEstimate(9.0), delay: 5 * time.Second},
	}

	ce, err := New(cfg).Estimate(context.Background(), "replace water pump", testPrior(), caps)
	require.NoError(t, err)
	require.Len(t, ce.SourceEstimates, 3)

	assert.Equal(t, model.EstimateOK, ce.SourceEstimates["fast_a"].Status)
	assert.Equal(t, model.EstimateOK, ce.SourceEstimates["fast_b"].Status)
	assert.Equal(t, model.EstimateTimeout, ce.SourceEstimates["slow"].Status)

	// The timed-out source is retained but contributes nothing: the
	// summary covers the prior and the two fast sources only.
	require.NotNil(t, ce.Summary)
	assert.Equal(t, 3, ce.Summary.SampleSize)
	assert.InDelta(t, 2.07, ce.Summary.Mean, 0.01)
}

func TestEstimate_StatusMapping(t *testing.T) {
	t.Parallel()

	caps := []Capability{
		stubCapability{name: "ok", est: goodEstimate(2)},
		stubCapability{name: "broken", err: eris.New("upstream 500")},
		stubCapability{name: "gibberish", err: eris.Wrap(ErrUnparseable, "no JSON")},
		stubCapability{name: "empty", est: model.TaskEstimate{}},
	}

	ce, err := New(DefaultConfig()).Estimate(context.Background(), "replace starter", testPrior(), caps)
	require.NoError(t, err)

	assert.Equal(t, model.EstimateOK, ce.SourceEstimates["ok"].Status)
	assert.Equal(t, model.EstimateCallError, ce.SourceEstimates["broken"].Status)
	assert.Equal(t, model.EstimateParseError, ce.SourceEstimates["gibberish"].Status)
	assert.Equal(t, model.EstimateParseError, ce.SourceEstimates["empty"].Status,
		"a returned but malformed estimate is a parse error")
}

func TestEstimate_CompletionOrder(t *testing.T) {
	t.Parallel()

	caps := []Capability{
		stubCapability{name: "tortoise", est: goodEstimate(2.0), delay: 150 * time.Millisecond},
		stubCapability{name: "hare", est: goodEstimate(2.1)},
	}

	ce, err := New(DefaultConfig()).Estimate(context.Background(), "replace serpentine belt", testPrior(), caps)
	require.NoError(t, err)

	require.Len(t, ce.CompletionOrder, 2)
	assert.Equal(t, "hare", ce.CompletionOrder[0])
	assert.Equal(t, "tortoise", ce.CompletionOrder[1])
}

func TestEstimate_DataQualityLadder(t *testing.T) {
	t.Parallel()

	t.Run("prior only", func(t *testing.T) {
		t.Parallel()
		ce, err := New(DefaultConfig()).Estimate(context.Background(), "job", testPrior(), nil)
		require.NoError(t, err)
		assert.Equal(t, 25.0, ce.DataQuality.Score)
		assert.Equal(t, model.TierLow, ce.DataQuality.Tier)
	})

	t.Run("prior plus one source", func(t *testing.T) {
		t.Parallel()
		caps := []Capability{stubCapability{name: "a", est: goodEstimate(2)}}
		ce, err := New(DefaultConfig()).Estimate(context.Background(), "job", testPrior(), caps)
		require.NoError(t, err)
		assert.Equal(t, 50.0, ce.DataQuality.Score)
		assert.Equal(t, model.TierLow, ce.DataQuality.Tier)
	})

	t.Run("external credit caps at two sources", func(t *testing.T) {
		t.Parallel()
		caps := []Capability{
			stubCapability{name: "a", est: goodEstimate(2.0)},
			stubCapability{name: "b", est: goodEstimate(2.1)},
			stubCapability{name: "c", est: goodEstimate(2.2)},
		}
		ce, err := New(DefaultConfig()).Estimate(context.Background(), "job", testPrior(), caps)
		require.NoError(t, err)
		assert.Equal(t, 75.0, ce.DataQuality.Score)
		assert.Equal(t, model.TierMedium, ce.DataQuality.Tier)
		assert.Contains(t, ce.DataQuality.ContributingFactors, "external_sources:3")
	})
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	caps := []Capability{
		stubCapability{name: "a", est: goodEstimate(2.0)},
		stubCapability{name: "b", est: goodEstimate(2.2)},
	}
	ce, err := New(DefaultConfig()).Estimate(context.Background(), "job", testPrior(), caps)
	require.NoError(t, err)

	assert.Nil(t, ce.FinalEstimate, "the estimator never picks a final estimate")
	assert.Equal(t, 75.0, ce.DataQuality.Score)

	Finalize(ce, model.TaskEstimate{Low: 1.8, High: 2.4, Average: 2.1, Reasoning: "advisor pick"})

	require.NotNil(t, ce.FinalEstimate)
	assert.Equal(t, 100.0, ce.DataQuality.Score)
	assert.Equal(t, model.TierHigh, ce.DataQuality.Tier)
	assert.Contains(t, ce.DataQuality.ContributingFactors, "final_estimate")
}

func TestFinalize_MalformedFinalEarnsNoCredit(t *testing.T) {
	t.Parallel()

	ce, err := New(DefaultConfig()).Estimate(context.Background(), "job", testPrior(), nil)
	require.NoError(t, err)

	Finalize(ce, model.TaskEstimate{})

	require.NotNil(t, ce.FinalEstimate)
	assert.Equal(t, 25.0, ce.DataQuality.Score)
}
