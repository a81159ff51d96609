// Package search adapts the SerpApi client into the observation stream the
// validation loop consumes.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/refine"
	"github.com/torqueline/estimator/pkg/serpapi"
)

const defaultResultCount = 10

// Provider runs web searches and converts hits into raw observations.
type Provider struct {
	client serpapi.Client
	num    int
}

// NewProvider wraps a SerpApi client. resultCount caps results per query;
// non-positive means the default of 10.
func NewProvider(client serpapi.Client, resultCount int) *Provider {
	if resultCount <= 0 {
		resultCount = defaultResultCount
	}
	return &Provider{client: client, num: resultCount}
}

// Observations runs the query and maps every organic and shopping hit to a
// raw observation, deduplicated by link. Domain hints restrict results to
// the given sites.
func (p *Provider) Observations(ctx context.Context, query string, domains []string) ([]model.RawObservation, error) {
	opts := []serpapi.SearchOption{serpapi.WithNum(p.num)}
	switch len(domains) {
	case 0:
	case 1:
		opts = append(opts, serpapi.WithSiteFilter(domains[0]))
	default:
		query += " " + siteClause(domains)
	}

	resp, err := p.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: serpapi query")
	}

	seen := make(map[string]bool)
	obs := make([]model.RawObservation, 0, len(resp.OrganicResults)+len(resp.ShoppingResults))
	for _, r := range resp.OrganicResults {
		if r.Link == "" || seen[r.Link] {
			continue
		}
		seen[r.Link] = true
		obs = append(obs, model.RawObservation{
			SourceURL: r.Link,
			Title:     r.Title,
			BodyText:  r.Snippet,
		})
	}
	for _, r := range resp.ShoppingResults {
		if r.Link == "" || seen[r.Link] {
			continue
		}
		seen[r.Link] = true
		obs = append(obs, model.RawObservation{
			SourceURL: r.Link,
			Title:     r.Title,
			BodyText:  shoppingBody(r),
		})
	}

	zap.L().Debug("search results mapped",
		zap.String("query", query),
		zap.Int("organic", len(resp.OrganicResults)),
		zap.Int("shopping", len(resp.ShoppingResults)),
		zap.Int("observations", len(obs)),
	)
	return obs, nil
}

// Searcher exposes the provider as the loop's search dependency.
func (p *Provider) Searcher() refine.Searcher {
	return refine.SearcherFunc(p.Observations)
}

// siteClause renders multiple domain hints as an OR group Google understands.
func siteClause(domains []string) string {
	parts := make([]string, len(domains))
	for i, d := range domains {
		parts[i] = "site:" + d
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// shoppingBody renders a shopping hit as text the signal extractor can read.
func shoppingBody(r serpapi.ShoppingResult) string {
	var parts []string
	switch {
	case r.ExtractedPrice > 0:
		parts = append(parts, fmt.Sprintf("price: $%.2f", r.ExtractedPrice))
	case r.Price != "":
		parts = append(parts, "price: "+r.Price)
	}
	if r.Source != "" {
		parts = append(parts, "sold by "+r.Source)
	}
	if r.Snippet != "" {
		parts = append(parts, r.Snippet)
	}
	return strings.Join(parts, ". ")
}
