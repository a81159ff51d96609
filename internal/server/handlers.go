package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/consensus"
	"github.com/torqueline/estimator/internal/model"
	"github.com/torqueline/estimator/internal/refine"
	"github.com/torqueline/estimator/internal/store"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}

	if s.breakers != nil {
		states := make(map[string]string)
		for name, state := range s.breakers.States() {
			states[name] = state.String()
		}
		resp["breakers"] = states
	}

	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("server: store ping failed", zap.Error(err))
			resp["status"] = "degraded"
			resp["store"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["store"] = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}

type partsValidateRequest struct {
	Query        string                 `json:"query"`
	Observations []model.RawObservation `json:"observations,omitempty"`
}

type partsValidateResponse struct {
	RunID        string                 `json:"run_id,omitempty"`
	Report       *refine.Result         `json:"report"`
	PriceSummary model.ConsensusSummary `json:"price_summary"`
}

func (s *Server) handlePartsValidate(w http.ResponseWriter, r *http.Request) {
	if s.parts == nil {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "no search capability configured")
		return
	}

	var req partsValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	runID := s.startRun(r, model.RunKindPriceValidation, req.Query)

	report, err := s.parts.Validate(r.Context(), req.Query, req.Observations)
	if err != nil {
		s.failRun(r, runID, err)
		writeError(w, http.StatusInternalServerError, "validation_failed", err.Error())
		return
	}
	s.completeRun(r, runID, report)

	// The summary is derived, not stored: the run record keeps the raw
	// report and anyone replaying it can rebuild the digest.
	prices := consensus.Summarize(consensus.FromObservations(report.Observations, model.UnitCurrency))

	writeJSON(w, http.StatusOK, partsValidateResponse{RunID: runID, Report: report, PriceSummary: prices})
}

type laborEstimateRequest struct {
	Description string              `json:"description"`
	Prior       *model.TaskEstimate `json:"prior,omitempty"`
}

type laborEstimateResponse struct {
	RunID    string                   `json:"run_id,omitempty"`
	Estimate *model.ConsensusEstimate `json:"estimate"`
}

func (s *Server) handleLaborEstimate(w http.ResponseWriter, r *http.Request) {
	if s.labor == nil {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "no estimation capability configured")
		return
	}

	var req laborEstimateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "description is required")
		return
	}
	// The estimator refuses to run without the caller's own prior, so
	// reject here before opening a run record.
	if req.Prior == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "prior estimate is required")
		return
	}

	runID := s.startRun(r, model.RunKindLaborEstimate, req.Description)

	estimate, err := s.labor.Estimate(r.Context(), req.Description, req.Prior)
	if err != nil {
		s.failRun(r, runID, err)
		writeError(w, http.StatusInternalServerError, "estimation_failed", err.Error())
		return
	}
	s.completeRun(r, runID, estimate)

	writeJSON(w, http.StatusOK, laborEstimateResponse{RunID: runID, Estimate: estimate})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Kind:   model.RunKind(r.URL.Query().Get("kind")),
		Status: model.RunStatus(r.URL.Query().Get("status")),
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("run %s not found", id))
			return
		}
		zap.L().Error("server: get run", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to read run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// startRun opens a run record. Recording failures are logged, never
// surfaced; the pipeline result matters more than its audit row.
func (s *Server) startRun(r *http.Request, kind model.RunKind, query string) string {
	if s.store == nil {
		return ""
	}
	run, err := s.store.CreateRun(r.Context(), kind, query)
	if err != nil {
		zap.L().Error("server: create run", zap.String("kind", string(kind)), zap.Error(err))
		return ""
	}
	return run.ID
}

func (s *Server) completeRun(r *http.Request, runID string, result any) {
	if s.store == nil || runID == "" {
		return
	}
	if err := s.store.CompleteRun(r.Context(), runID, result); err != nil {
		zap.L().Error("server: complete run", zap.String("id", runID), zap.Error(err))
	}
}

func (s *Server) failRun(r *http.Request, runID string, runErr error) {
	if s.store == nil || runID == "" {
		return
	}
	if err := s.store.FailRun(r.Context(), runID, runErr); err != nil {
		zap.L().Error("server: fail run", zap.String("id", runID), zap.Error(err))
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
