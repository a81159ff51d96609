package validate

import (
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/signal"
)

const (
	baseQuality    = 50.0
	trustedScore   = 85.0
	untrustedScore = 40.0
	trustWeight    = 0.4
	contentWeight  = 0.6
)

// productIDPattern matches a purely numeric path segment of the kind
// retailers embed as product or part identifiers.
var productIDPattern = regexp.MustCompile(`/\d{4,}(?:[/?#]|$)`)

// Validator scores raw observations for source trust and signal
// content. Validation is pure: the same observation always yields the
// same result, and malformed input degrades the score instead of
// failing.
type Validator struct {
	policy    Policy
	extractor signal.Extractor
}

// New builds a Validator from a policy. Unset policy fields fall back
// to the defaults for the policy's mode.
func New(policy Policy) *Validator {
	p := policy.withDefaults()
	p.TrustedDomains = lowerAll(p.TrustedDomains)
	p.PositivePhrases = lowerAll(p.PositivePhrases)
	p.NegativePhrases = lowerAll(p.NegativePhrases)
	return &Validator{
		policy:    p,
		extractor: signal.New(p.signalBounds()),
	}
}

// Validate assesses one observation. Quality starts from a neutral
// base and moves with source trust and content signals, clamped to
// [0, 100].
func (v *Validator) Validate(obs model.RawObservation) model.ValidatedObservation {
	result := model.ValidatedObservation{
		RawObservation: obs,
		Availability:   model.AvailabilityUnknown,
	}

	lowerURL := strings.ToLower(obs.SourceURL)
	result.SourceTrustScore = untrustedScore
	if containsAny(lowerURL, v.policy.TrustedDomains...) {
		result.SourceTrustScore = trustedScore
	}

	content := 0.0

	if isCategoryURL(lowerURL) {
		result.IsCategoryPage = true
		result.QualityIssues = append(result.QualityIssues, model.IssueCategoryPage)
		content -= 20 // listing pages rarely carry one usable figure
	}
	if isProductURL(lowerURL) {
		result.IsProductPage = true
		content += 25
	}

	text := obs.Title + "\n" + obs.BodyText
	if found, ok := v.bestSignal(v.extractor.Extract(text)); ok {
		result.ExtractedNumeric = &found
		content += 15
	} else {
		result.QualityIssues = append(result.QualityIssues, v.missingSignalIssue())
	}

	lowerText := strings.ToLower(text)
	switch {
	case containsAny(lowerText, v.policy.NegativePhrases...):
		result.Availability = model.AvailabilityOutOfStock
		result.QualityIssues = append(result.QualityIssues, model.IssueOutOfStock)
		content -= 15
	case containsAny(lowerText, v.policy.PositivePhrases...):
		result.Availability = model.AvailabilityInStock
		content += 10
	}

	score := baseQuality + result.SourceTrustScore*trustWeight + content*contentWeight
	result.QualityScore = math.Round(math.Min(100, math.Max(0, score))*100) / 100

	zap.L().Debug("validate: observation scored",
		zap.String("url", obs.SourceURL),
		zap.Float64("quality", result.QualityScore),
		zap.Float64("trust", result.SourceTrustScore),
		zap.Bool("product_page", result.IsProductPage),
		zap.String("availability", string(result.Availability)),
	)

	return result
}

// ValidateAll validates a batch, preserving order.
func (v *Validator) ValidateAll(obs []model.RawObservation) []model.ValidatedObservation {
	out := make([]model.ValidatedObservation, 0, len(obs))
	for _, o := range obs {
		out = append(out, v.Validate(o))
	}
	return out
}

// Mode returns the unit mode the validator was built with.
func (v *Validator) Mode() UnitMode {
	return v.policy.Mode
}

func (v *Validator) bestSignal(sig signal.Signals) (model.NumericSignal, bool) {
	if v.policy.Mode == ModeHours {
		return sig.BestHours()
	}
	return sig.BestCurrency()
}

func (v *Validator) missingSignalIssue() string {
	if v.policy.Mode == ModeHours {
		return model.IssueNoTimeFound
	}
	return model.IssueNoPriceFound
}

// isCategoryURL checks for listing-page URL shapes: query strings and
// search/browse path segments.
func isCategoryURL(lowerURL string) bool {
	if strings.Contains(lowerURL, "?") {
		return true
	}
	return containsAny(lowerURL, "/search", "/category/", "/browse/", "/results")
}

// isProductURL checks for detail-page URL shapes used by the major
// retailers, plus embedded numeric product identifiers.
func isProductURL(lowerURL string) bool {
	if containsAny(lowerURL, "/product/", "/item/", "/p/", "/dp/", "/part/", "/sku/") {
		return true
	}
	return productIDPattern.MatchString(lowerURL)
}

// containsAny checks if s contains any of the given substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
