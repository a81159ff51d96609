// Package guide loads flat-rate labor guides and answers task lookups.
// A guide is a table of repair operations with book hours, sourced from
// a CSV or XLSX file on local disk, HTTP, or FTP. Lookups match a free
// text task description against operation keywords.
package guide

import (
	"strings"
	"unicode"
)

// Row is one flat-rate guide entry. Vehicle narrows applicability;
// empty or "*" means the entry applies to any vehicle.
type Row struct {
	Operation string  `json:"operation"`
	Vehicle   string  `json:"vehicle,omitempty"`
	LowHours  float64 `json:"low_hours"`
	HighHours float64 `json:"high_hours"`
}

// WellFormed reports whether the row carries a usable operation and
// plausible hour bounds.
func (r Row) WellFormed() bool {
	return strings.TrimSpace(r.Operation) != "" && r.LowHours > 0 && r.HighHours >= r.LowHours
}

// Match is a guide row together with how strongly it matched.
type Match struct {
	Row   Row     `json:"row"`
	Score float64 `json:"score"`
}

// Guide is an in-memory flat-rate table. It is immutable after New and
// safe for concurrent lookups.
type Guide struct {
	rows []Row
}

// New builds a Guide over the given rows.
func New(rows []Row) *Guide {
	return &Guide{rows: rows}
}

// Len returns the number of rows in the guide.
func (g *Guide) Len() int { return len(g.rows) }

// Rows returns a copy of the guide's rows.
func (g *Guide) Rows() []Row {
	out := make([]Row, len(g.rows))
	copy(out, g.rows)
	return out
}

// minCoverage is the fraction of a row's operation keywords that must
// appear in the description before the row is considered a match.
const minCoverage = 0.5

// vehicleBonus rewards rows whose vehicle pattern also appears in the
// description, so a model-specific entry beats a generic one.
const vehicleBonus = 0.25

// Lookup finds the guide row that best matches a task description.
// A row scores by the fraction of its operation keywords present in
// the description, plus a bonus when its vehicle pattern matches too.
// Rows below the coverage threshold never match. Ties keep the
// earliest row, so match order is deterministic.
func (g *Guide) Lookup(description string) (Match, bool) {
	want := tokenSet(description)
	if len(want) == 0 {
		return Match{}, false
	}

	var best Match
	found := false
	for _, row := range g.rows {
		score := matchScore(row, want)
		if score <= 0 {
			continue
		}
		if !found || score > best.Score {
			best = Match{Row: row, Score: score}
			found = true
		}
	}
	return best, found
}

func matchScore(row Row, want map[string]bool) float64 {
	opTokens := tokenize(row.Operation)
	if len(opTokens) == 0 {
		return 0
	}

	hits := 0
	for _, tok := range opTokens {
		if want[tok] {
			hits++
		}
	}
	coverage := float64(hits) / float64(len(opTokens))
	if coverage < minCoverage {
		return 0
	}

	score := coverage
	if v := strings.TrimSpace(row.Vehicle); v != "" && v != "*" {
		for _, tok := range tokenize(v) {
			if want[tok] {
				score += vehicleBonus
				break
			}
		}
	}
	return score
}

// stopwords are filler words carrying no matching signal. Position
// words like "front" and "rear" are deliberately not here.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true,
	"of": true, "for": true, "and": true, "or": true,
	"to": true, "on": true, "in": true, "with": true, "at": true,
	"my": true, "is": true, "it": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(s) {
		set[tok] = true
	}
	return set
}
