package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/estimate"
	"github.com/torqueline/estimator/internal/guide"
	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/refine"
	"github.com/torqueline/estimator/internal/resilience"
	"github.com/torqueline/estimator/internal/search"
	"github.com/torqueline/estimator/internal/server"
	"github.com/torqueline/estimator/internal/store"
	"github.com/torqueline/estimator/internal/validate"
	anthropicpkg "github.com/torqueline/estimator/pkg/anthropic"
	"github.com/torqueline/estimator/pkg/perplexity"
	"github.com/torqueline/estimator/pkg/serpapi"
)

// estimatorEnv holds the initialized store, pipelines, and circuit
// breaker registry shared by the parts/labor/serve commands.
type estimatorEnv struct {
	Store    store.Store
	Parts    server.PartsValidator // nil when search is not configured
	Labor    server.LaborEstimator // nil when no labor capability is configured
	Breakers *resilience.ServiceBreakers
}

// Close releases resources held by the environment.
func (e *estimatorEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for the given mode, opens the store, and
// builds the pipelines that mode needs. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*estimatorEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	retry := resilience.FromRetryConfig(
		cfg.Resilience.MaxAttempts,
		cfg.Resilience.InitialBackoffMs,
		cfg.Resilience.MaxBackoffMs,
		cfg.Resilience.BackoffMultiplier,
		cfg.Resilience.JitterFraction,
	)
	cbCfg := resilience.FromCircuitConfig(cfg.Resilience.CircuitFailureThreshold, cfg.Resilience.CircuitResetSecs)
	// Parse misses and malformed responses must not open a circuit;
	// only infrastructure failures count toward the threshold.
	cbCfg.ShouldTrip = resilience.IsTransient
	breakers := resilience.NewServiceBreakers(cbCfg)

	// One SerpApi client serves both pipelines, so the rate limit holds
	// across them.
	var searcher refine.Searcher
	if cfg.SerpAPI.Key != "" {
		client := serpapi.NewClient(cfg.SerpAPI.Key,
			serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
			serpapi.WithEngine(cfg.SerpAPI.Engine),
			serpapi.WithRateLimit(cfg.SerpAPI.RateLimit),
			serpapi.WithRetry(retry),
		)
		provider := search.NewProvider(client, 0)
		searcher = breakerSearcher(provider.Searcher(), breakers.Get("serpapi"))
	}

	env := &estimatorEnv{Store: st, Breakers: breakers}

	if mode == "parts" || mode == "serve" {
		parts, err := buildPartsValidator(searcher)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		env.Parts = parts
	}
	if mode == "labor" || mode == "serve" {
		labor, err := buildLaborEstimator(ctx, searcher, retry, breakers)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		env.Labor = labor
	}

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

// buildPartsValidator assembles the validation policy and refinement
// loop into the parts pipeline. A nil searcher disables it.
func buildPartsValidator(searcher refine.Searcher) (server.PartsValidator, error) {
	if searcher == nil {
		zap.L().Warn("serpapi not configured, parts validation disabled")
		return nil, nil
	}

	pol, err := validate.LoadPolicy(cfg.Validation.PolicyPath)
	if err != nil {
		return nil, err
	}
	loop := refine.New(refine.Config{
		TargetConfidence: cfg.Validation.TargetConfidence,
		MaxRounds:        cfg.Validation.MaxRounds,
		DomainHints:      cfg.Validation.DomainHints,
	}, validate.New(pol))

	hints := cfg.Validation.DomainHints
	zap.L().Info("parts validation enabled",
		zap.Float64("target_confidence", cfg.Validation.TargetConfidence),
		zap.Int("max_rounds", cfg.Validation.MaxRounds),
	)

	return server.PartsValidatorFunc(func(ctx context.Context, query string, initial []model.RawObservation) (*refine.Result, error) {
		// Callers may seed their own observations; otherwise the first
		// round works from a fresh search.
		if len(initial) == 0 {
			obs, err := searcher.Search(ctx, query, hints)
			if err != nil {
				return nil, err
			}
			initial = obs
		}
		return loop.Refine(ctx, query, initial, searcher)
	}), nil
}

// buildLaborEstimator assembles whatever labor capabilities the config
// enables. Returns nil when there are none.
func buildLaborEstimator(ctx context.Context, searcher refine.Searcher, retry resilience.RetryConfig, breakers *resilience.ServiceBreakers) (server.LaborEstimator, error) {
	var caps []estimate.Capability

	if cfg.Anthropic.Key != "" {
		llm := anthropicpkg.NewClient(cfg.Anthropic.Key,
			anthropicpkg.WithModel(cfg.Anthropic.Model),
			anthropicpkg.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)),
		)
		caps = append(caps, withBreaker(estimate.NewReasoningCapability("anthropic", llm), breakers))
		zap.L().Info("anthropic capability enabled", zap.String("model", cfg.Anthropic.Model))
	}

	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
			perplexity.WithRetry(retry),
		)
		caps = append(caps, withBreaker(estimate.NewReasoningCapability("perplexity", estimate.CompleterFunc(client.Ask)), breakers))
		zap.L().Info("perplexity capability enabled", zap.String("model", cfg.Perplexity.Model))
	}

	if searcher != nil {
		// The searcher already runs through the serpapi breaker.
		caps = append(caps, estimate.NewWebSignalCapability(searcher, nil, cfg.Validation.DomainHints))
		zap.L().Info("web signal capability enabled")
	}

	if cfg.Guide.Source != "" {
		g, err := guide.Load(ctx, cfg.Guide.Source, guide.LoadOptions{
			Sheet: cfg.Guide.Sheet,
			Retry: retry,
		})
		if err != nil {
			return nil, eris.Wrap(err, "load flat-rate guide")
		}
		caps = append(caps, guide.NewCapability(g))
		zap.L().Info("flat-rate guide capability enabled", zap.String("source", cfg.Guide.Source))
	}

	if len(caps) == 0 {
		zap.L().Warn("no labor capabilities configured, labor estimation disabled")
		return nil, nil
	}

	est := estimate.New(estimate.Config{
		PerCallTimeout: time.Duration(cfg.Estimate.PerCallTimeoutSecs) * time.Second,
	})

	return server.LaborEstimatorFunc(func(ctx context.Context, description string, prior *model.TaskEstimate) (*model.ConsensusEstimate, error) {
		return est.Estimate(ctx, description, prior, caps)
	}), nil
}

// breakerSearcher routes every search through the service's circuit
// breaker.
func breakerSearcher(s refine.Searcher, cb *resilience.CircuitBreaker) refine.Searcher {
	return refine.SearcherFunc(func(ctx context.Context, query string, domains []string) ([]model.RawObservation, error) {
		return resilience.ExecuteVal(ctx, cb, func(ctx context.Context) ([]model.RawObservation, error) {
			return s.Search(ctx, query, domains)
		})
	})
}

// breakerCapability routes a capability's calls through its service
// circuit breaker.
type breakerCapability struct {
	inner estimate.Capability
	cb    *resilience.CircuitBreaker
}

func withBreaker(c estimate.Capability, breakers *resilience.ServiceBreakers) estimate.Capability {
	return &breakerCapability{inner: c, cb: breakers.Get(c.Name())}
}

func (b *breakerCapability) Name() string { return b.inner.Name() }

func (b *breakerCapability) EstimateTask(ctx context.Context, description string) (model.TaskEstimate, error) {
	return resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (model.TaskEstimate, error) {
		return b.inner.EstimateTask(ctx, description)
	})
}
