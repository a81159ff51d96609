// Package refine turns validation feedback into better search queries
// and runs the search-validate-refine loop until confidence is earned
// or the budget runs out.
package refine

import (
	"sort"
	"strings"

	"github.com/torqueline/estimator/internal/model"
)

// PlanNextQuery proposes a refined query given the quality issues seen
// so far. Rules are checked in priority order and the first applicable
// one wins; each rule skips itself when the query already carries its
// terms, so repeated planning converges instead of growing the query
// forever. ok=false means no further refinement is possible, which is
// a normal terminal state rather than an error.
func PlanNextQuery(query string, issues map[string]struct{}) (string, bool) {
	lower := strings.ToLower(query)

	if hasIssue(issues, model.IssueCategoryPage) && !strings.Contains(lower, "buy") {
		return query + " buy online product", true
	}
	if (hasIssue(issues, model.IssueNoPriceFound) || hasIssue(issues, model.IssueNoTimeFound)) &&
		!strings.Contains(lower, "price") {
		return query + " price cost", true
	}
	if hasIssue(issues, model.IssueOutOfStock) && !strings.Contains(lower, "stock") {
		return query + " in stock available", true
	}
	if !strings.Contains(lower, "exact") {
		return query + " exact part number", true
	}
	return "", false
}

// IssueSet collects the distinct quality issues across observations.
func IssueSet(obs []model.ValidatedObservation) map[string]struct{} {
	set := make(map[string]struct{})
	for _, o := range obs {
		for _, tag := range o.QualityIssues {
			set[tag] = struct{}{}
		}
	}
	return set
}

func hasIssue(issues map[string]struct{}, tag string) bool {
	_, ok := issues[tag]
	return ok
}

func sortedIssues(issues map[string]struct{}) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, 0, len(issues))
	for tag := range issues {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
