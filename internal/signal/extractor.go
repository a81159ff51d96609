// Package signal extracts price and labor-time figures from free text
// such as search result titles and snippets.
package signal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/torqueline/estimator/internal/model"
)

// Confidence tags describing which phrasing produced a signal.
const (
	TagLabeled     = "labeled"
	TagRange       = "range"
	TagApproximate = "approximate"
	TagPlain       = "plain"
)

// labeledPricePattern matches explicit price labels like "price: $129.99".
var labeledPricePattern = regexp.MustCompile(`(?i)\bprice\s*:?\s*\$?\s*(\d+(?:,\d{3})*(?:\.\d+)?)`)

// symbolPricePattern matches bare dollar amounts like "$45.99".
var symbolPricePattern = regexp.MustCompile(`\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)`)

// wordPricePattern matches spelled-out amounts like "300 dollars".
var wordPricePattern = regexp.MustCompile(`(?i)\b(\d+(?:,\d{3})*(?:\.\d+)?)\s*dollars?\b`)

// hourRangePattern matches ranged durations like "2-4 hours" or "2 to 4 hours".
var hourRangePattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)

// bookTimePattern matches flat-rate guide phrasing like "book time: 1.5".
var bookTimePattern = regexp.MustCompile(`(?i)\bbook\s+time\s*:?\s*(\d+(?:\.\d+)?)(?:\s*(?:hours?|hrs?))?\b`)

// approxHoursPattern matches hedged durations like "takes about 3 hours".
var approxHoursPattern = regexp.MustCompile(`(?i)\btakes\s+about\s+(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)

// plainHoursPattern matches unadorned durations like "3 hours" or "1 hr".
var plainHoursPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)

// Bounds constrain which extracted values count as plausible. Values
// outside the bounds are discarded, endpoints included.
type Bounds struct {
	CurrencyMin float64
	CurrencyMax float64
	HoursMin    float64
	HoursMax    float64
}

// DefaultBounds returns the general-purpose extraction bounds.
func DefaultBounds() Bounds {
	return Bounds{CurrencyMin: 1.0, CurrencyMax: 5000.0, HoursMin: 0.1, HoursMax: 20.0}
}

// LaborBounds raises the duration floor for labor-time extraction,
// where sub-quarter-hour book times are noise.
func LaborBounds() Bounds {
	b := DefaultBounds()
	b.HoursMin = 0.25
	return b
}

// Signals holds everything one extraction pass found, in document order
// per unit. Both slices empty is a normal outcome, not an error.
type Signals struct {
	Currency []model.NumericSignal
	Hours    []model.NumericSignal
}

// Empty returns true if no signal of either unit was found.
func (s Signals) Empty() bool {
	return len(s.Currency) == 0 && len(s.Hours) == 0
}

// BestCurrency returns the most trustworthy currency signal, preferring
// explicitly labeled figures over incidental ones.
func (s Signals) BestCurrency() (model.NumericSignal, bool) {
	return best(s.Currency)
}

// BestHours returns the most trustworthy duration signal.
func (s Signals) BestHours() (model.NumericSignal, bool) {
	return best(s.Hours)
}

var tagPriority = map[string]int{
	TagLabeled:     0,
	TagRange:       1,
	TagApproximate: 2,
	TagPlain:       3,
}

func best(list []model.NumericSignal) (model.NumericSignal, bool) {
	if len(list) == 0 {
		return model.NumericSignal{}, false
	}
	idx := 0
	for i := 1; i < len(list); i++ {
		if tagPriority[list[i].ConfidenceTag] < tagPriority[list[idx].ConfidenceTag] {
			idx = i
		}
	}
	return list[idx], true
}

// Extractor pulls currency and duration signals out of free text.
// The zero value is unusable; construct with New.
type Extractor struct {
	bounds Bounds
}

// New returns an Extractor constrained by the given bounds.
func New(bounds Bounds) Extractor {
	return Extractor{bounds: bounds}
}

// Extract scans text for currency and duration expressions. Matches are
// deduplicated exactly; order of first appearance is preserved.
func (e Extractor) Extract(text string) Signals {
	if strings.TrimSpace(text) == "" {
		return Signals{}
	}
	return Signals{
		Currency: e.extractCurrency(text),
		Hours:    e.extractHours(text),
	}
}

func (e Extractor) extractCurrency(text string) []model.NumericSignal {
	var out []model.NumericSignal
	seen := make(map[signalKey]bool)

	add := func(tag string) func([]string) {
		return func(groups []string) {
			v, ok := parseAmount(groups[1])
			if !ok || v < e.bounds.CurrencyMin || v > e.bounds.CurrencyMax {
				return
			}
			appendSignal(&out, seen, pointSignal(v, model.UnitCurrency, tag))
		}
	}

	// Labeled prices consume their span first so the embedded "$X"
	// does not re-match as a bare amount.
	work := consumeMatches(text, labeledPricePattern, add(TagLabeled))
	work = consumeMatches(work, symbolPricePattern, add(TagPlain))
	consumeMatches(work, wordPricePattern, add(TagPlain))
	return out
}

func (e Extractor) extractHours(text string) []model.NumericSignal {
	var out []model.NumericSignal
	seen := make(map[signalKey]bool)

	// Ranges consume first so their endpoints do not re-match as
	// standalone durations.
	work := consumeMatches(text, hourRangePattern, func(groups []string) {
		lo, okLo := parseAmount(groups[1])
		hi, okHi := parseAmount(groups[2])
		if !okLo || !okHi {
			return
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo < e.bounds.HoursMin || hi > e.bounds.HoursMax {
			return
		}
		appendSignal(&out, seen, model.NumericSignal{
			Value:         (lo + hi) / 2,
			RangeLow:      lo,
			RangeHigh:     hi,
			Unit:          model.UnitHours,
			ConfidenceTag: TagRange,
		})
	})

	addPoint := func(tag string) func([]string) {
		return func(groups []string) {
			v, ok := parseAmount(groups[1])
			if !ok || v < e.bounds.HoursMin || v > e.bounds.HoursMax {
				return
			}
			appendSignal(&out, seen, pointSignal(v, model.UnitHours, tag))
		}
	}

	work = consumeMatches(work, bookTimePattern, addPoint(TagLabeled))
	work = consumeMatches(work, approxHoursPattern, addPoint(TagApproximate))
	consumeMatches(work, plainHoursPattern, addPoint(TagPlain))
	return out
}

type signalKey struct {
	unit model.SignalUnit
	val  float64
	lo   float64
	hi   float64
}

func appendSignal(out *[]model.NumericSignal, seen map[signalKey]bool, sig model.NumericSignal) {
	key := signalKey{unit: sig.Unit, val: sig.Value, lo: sig.RangeLow, hi: sig.RangeHigh}
	if seen[key] {
		return
	}
	seen[key] = true
	*out = append(*out, sig)
}

func pointSignal(v float64, unit model.SignalUnit, tag string) model.NumericSignal {
	return model.NumericSignal{
		Value:         v,
		RangeLow:      v,
		RangeHigh:     v,
		Unit:          unit,
		ConfidenceTag: tag,
	}
}

// consumeMatches hands every submatch of re in text to fn, then blanks
// the matched spans so later patterns cannot claim the same text.
func consumeMatches(text string, re *regexp.Regexp, fn func(groups []string)) string {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	masked := []byte(text)
	for _, loc := range locs {
		groups := make([]string, 0, len(loc)/2)
		for g := 0; g < len(loc); g += 2 {
			if loc[g] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, text[loc[g]:loc[g+1]])
		}
		fn(groups)
		for i := loc[0]; i < loc[1]; i++ {
			masked[i] = ' '
		}
	}
	return string(masked)
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
