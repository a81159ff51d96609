// Package server exposes the validation and estimation pipelines over
// HTTP. Handlers record every pass in the run store; the pipelines
// themselves are injected so the package stays free of API clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/refine"
	"github.com/torqueline/estimator/internal/resilience"
	"github.com/torqueline/estimator/internal/store"
)

// PartsValidator runs the search-validate-refine pipeline for a parts
// pricing query. Caller-provided observations seed the first round.
type PartsValidator interface {
	Validate(ctx context.Context, query string, initial []model.RawObservation) (*refine.Result, error)
}

// PartsValidatorFunc adapts a function to the PartsValidator interface.
type PartsValidatorFunc func(ctx context.Context, query string, initial []model.RawObservation) (*refine.Result, error)

// Validate calls f.
func (f PartsValidatorFunc) Validate(ctx context.Context, query string, initial []model.RawObservation) (*refine.Result, error) {
	return f(ctx, query, initial)
}

// LaborEstimator produces a consensus labor estimate for a task.
type LaborEstimator interface {
	Estimate(ctx context.Context, description string, prior *model.TaskEstimate) (*model.ConsensusEstimate, error)
}

// LaborEstimatorFunc adapts a function to the LaborEstimator interface.
type LaborEstimatorFunc func(ctx context.Context, description string, prior *model.TaskEstimate) (*model.ConsensusEstimate, error)

// Estimate calls f.
func (f LaborEstimatorFunc) Estimate(ctx context.Context, description string, prior *model.TaskEstimate) (*model.ConsensusEstimate, error) {
	return f(ctx, description, prior)
}

// Server holds the handler dependencies. A nil pipeline turns its
// endpoint into 503 so a partially configured deployment still serves
// the rest.
type Server struct {
	store    store.Store
	parts    PartsValidator
	labor    LaborEstimator
	breakers *resilience.ServiceBreakers
	origins  []string
}

// Option configures the server.
type Option func(*Server)

// WithBreakers reports circuit breaker states on the health endpoint.
func WithBreakers(sb *resilience.ServiceBreakers) Option {
	return func(s *Server) {
		s.breakers = sb
	}
}

// WithAllowedOrigins sets the CORS allowlist. Default: any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New builds a Server around the run store and the injected pipelines.
func New(st store.Store, parts PartsValidator, labor LaborEstimator, opts ...Option) *Server {
	s := &Server{
		store:   st,
		parts:   parts,
		labor:   labor,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/parts/validate", s.handlePartsValidate)
		v1.Post("/labor/estimate", s.handleLaborEstimate)
		v1.Get("/runs", s.handleListRuns)
		v1.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

// Start serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("server: listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	})

	return g.Wait()
}
