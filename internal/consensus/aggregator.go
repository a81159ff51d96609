// Package consensus reduces sets of independently sourced values to a
// statistical summary with an agreement tier and a quoting
// recommendation.
package consensus

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/torqueline/estimator/internal/model"
)

// outlierSigma is the rejection cutoff in population standard
// deviations for the hours path.
const outlierSigma = 2.0

// anomalyThreshold is the relative deviation from the mean beyond
// which a value is flagged.
const anomalyThreshold = 0.5

var usEnglish = message.NewPrinter(language.AmericanEnglish)

// Sample is one sourced value: a price or an hour figure tagged with
// where it came from.
type Sample struct {
	Source string  `json:"source"`
	Value  float64 `json:"value"`
}

// Values wraps bare floats as samples with positional source labels.
func Values(vals []float64) []Sample {
	out := make([]Sample, len(vals))
	for i, v := range vals {
		out[i] = Sample{Source: fmt.Sprintf("source-%d", i+1), Value: v}
	}
	return out
}

// FromObservations collects the extracted values of one unit out of
// validated observations, keyed by source URL. Observations without a
// numeric signal, or carrying the other unit, contribute nothing.
func FromObservations(obs []model.ValidatedObservation, unit model.SignalUnit) []Sample {
	var out []Sample
	for _, o := range obs {
		if o.ExtractedNumeric == nil || o.ExtractedNumeric.Unit != unit {
			continue
		}
		out = append(out, Sample{Source: o.SourceURL, Value: o.ExtractedNumeric.Value})
	}
	return out
}

// Summarize digests price samples. Agreement is tiered on the spread
// relative to the mean; values deviating more than half the mean are
// flagged as anomalies once at least three samples are in hand.
func Summarize(samples []Sample) model.ConsensusSummary {
	if len(samples) == 0 {
		return emptySummary("No price signals found; refine the search before quoting.")
	}

	summary := statsOf(samples)
	summary.ConfidenceTier = ratioTier(summary.Min, summary.Max, summary.Mean)
	summary.Anomalies = detectAnomalies(samples, summary.Mean)
	summary.Recommendation = priceRecommendation(summary)

	zap.L().Debug("consensus: price summary",
		zap.Int("samples", summary.SampleSize),
		zap.Float64("mean", summary.Mean),
		zap.String("tier", string(summary.ConfidenceTier)),
		zap.Int("anomalies", len(summary.Anomalies)),
	)
	return summary
}

// SummarizeHours digests labor-time samples. With more than three
// samples, values far from the mean are rejected before the summary is
// computed, and agreement is tiered on the absolute spread in hours.
func SummarizeHours(samples []Sample) model.ConsensusSummary {
	kept := rejectOutliers(samples)
	if len(kept) == 0 {
		return emptySummary("No estimates found")
	}

	summary := statsOf(kept)
	summary.ConfidenceTier = hoursTier(kept, summary.Min, summary.Max)
	summary.Anomalies = detectAnomalies(kept, summary.Mean)
	summary.Recommendation = hoursRecommendation(summary)

	zap.L().Debug("consensus: hours summary",
		zap.Int("samples_in", len(samples)),
		zap.Int("samples_kept", len(kept)),
		zap.Float64("mean", summary.Mean),
		zap.String("tier", string(summary.ConfidenceTier)),
	)
	return summary
}

func emptySummary(recommendation string) model.ConsensusSummary {
	return model.ConsensusSummary{
		ConfidenceTier: model.TierNone,
		Recommendation: recommendation,
	}
}

func statsOf(samples []Sample) model.ConsensusSummary {
	min, max := samples[0].Value, samples[0].Value
	sum := 0.0
	for _, s := range samples {
		if s.Value < min {
			min = s.Value
		}
		if s.Value > max {
			max = s.Value
		}
		sum += s.Value
	}
	mean := sum / float64(len(samples))
	return model.ConsensusSummary{
		Min:        min,
		Max:        max,
		Mean:       math.Round(mean*100) / 100,
		SampleSize: len(samples),
	}
}

// ratioTier buckets agreement on spread relative to the mean.
func ratioTier(min, max, mean float64) model.ConfidenceTier {
	if mean <= 0 {
		return model.TierLow
	}
	spread := (max - min) / mean
	switch {
	case spread < 0.3:
		return model.TierHigh
	case spread < 0.6:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// hoursTier buckets agreement on absolute spread, falling back to
// sample-count tiers when too few survivors remain to judge spread.
func hoursTier(kept []Sample, min, max float64) model.ConfidenceTier {
	switch {
	case len(kept) == 1:
		return model.TierLow
	case len(kept) == 2:
		return model.TierMedium
	}
	spread := max - min
	switch {
	case spread <= 1.0:
		return model.TierHigh
	case spread <= 2.0:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// rejectOutliers drops values at least outlierSigma population
// standard deviations from the mean. Samples of three or fewer pass
// through untouched, as does any sample set with zero variance. The
// tolerance keeps exact-boundary values on the rejected side despite
// float rounding.
func rejectOutliers(samples []Sample) []Sample {
	if len(samples) <= 3 {
		return samples
	}

	mean := 0.0
	for _, s := range samples {
		mean += s.Value
	}
	mean /= float64(len(samples))

	variance := 0.0
	for _, s := range samples {
		d := s.Value - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	sd := math.Sqrt(variance)
	if sd == 0 {
		return samples
	}

	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if math.Abs(s.Value-mean)/sd < outlierSigma-1e-9 {
			kept = append(kept, s)
		}
	}
	return kept
}

// detectAnomalies flags values whose relative deviation from the mean
// exceeds anomalyThreshold. Below three samples the mean is too weak
// an anchor to call anything anomalous.
func detectAnomalies(samples []Sample, mean float64) []model.Anomaly {
	if len(samples) < 3 || mean == 0 {
		return nil
	}
	var out []model.Anomaly
	for _, s := range samples {
		dev := math.Abs(s.Value-mean) / mean
		if dev <= anomalyThreshold {
			continue
		}
		direction := model.AnomalyHigh
		if s.Value < mean {
			direction = model.AnomalyLow
		}
		out = append(out, model.Anomaly{
			Source:       s.Source,
			Value:        s.Value,
			Direction:    direction,
			DeviationPct: math.Round(dev*1000) / 10,
		})
	}
	return out
}

func priceRecommendation(s model.ConsensusSummary) string {
	var rec string
	switch s.ConfidenceTier {
	case model.TierHigh:
		rec = usEnglish.Sprintf("Consistent pricing across %d sources ($%.2f to $%.2f); the mean of $%.2f is safe to quote.",
			s.SampleSize, s.Min, s.Max, s.Mean)
	case model.TierMedium:
		rec = usEnglish.Sprintf("Moderate price variation ($%.2f to $%.2f); confirm the exact part number before quoting.",
			s.Min, s.Max)
	default:
		rec = usEnglish.Sprintf("Significant price variation detected ($%.2f to $%.2f); verify with multiple sources before quoting.",
			s.Min, s.Max)
	}
	if len(s.Anomalies) > 0 {
		rec += usEnglish.Sprintf(" %d source(s) deviate sharply from the mean; review before relying on them.", len(s.Anomalies))
	}
	return rec
}

func hoursRecommendation(s model.ConsensusSummary) string {
	var rec string
	switch s.ConfidenceTier {
	case model.TierHigh:
		rec = usEnglish.Sprintf("Sources agree closely (%.1f to %.1f hours); book %.1f hours with confidence.",
			s.Min, s.Max, s.Mean)
	case model.TierMedium:
		rec = usEnglish.Sprintf("Estimates span %.1f to %.1f hours; quote the range rather than a point figure.",
			s.Min, s.Max)
	default:
		rec = usEnglish.Sprintf("Estimates vary widely (%.1f to %.1f hours); inspect the vehicle before committing to a quote.",
			s.Min, s.Max)
	}
	if len(s.Anomalies) > 0 {
		rec += usEnglish.Sprintf(" %d estimate(s) deviate sharply from the mean; review the flagged sources.", len(s.Anomalies))
	}
	return rec
}
