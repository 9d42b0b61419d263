package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dailybrief/internal/brief"
	"dailybrief/internal/core"
	"dailybrief/internal/logger"
)

// ErrorResponse is the error payload for all API failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

type runStartedResponse struct {
	RunID  int64  `json:"run_id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "error"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

// handleListRuns handles GET /api/runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	runList, err := s.store.ListRuns(limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if runList == nil {
		runList = []core.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"runs": runList})
}

// handleGetRun handles GET /api/runs/{id}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	run, err := s.store.GetRun(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

// handleCancelRun handles POST /api/runs/{id}/cancel.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	cancelled, err := s.supervisor.Cancel(id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"run_id": id, "cancelled": cancelled})
}

// handleStartIngest handles POST /api/runs/ingest.
func (s *Server) handleStartIngest(w http.ResponseWriter, r *http.Request) {
	runID, err := s.supervisor.Start(core.RunIngest, s.cfg.RunTimeout(),
		map[string]any{"trigger": "api"},
		func(ctx context.Context, runID int64) error {
			return s.ingester.Run(ctx, runID)
		})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, runStartedResponse{
		RunID: runID, Kind: string(core.RunIngest), Status: string(core.RunRunning),
	})
}

type startAIRequest struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// handleStartAI handles POST /api/runs/ai. The body is optional; a positive
// timeout_seconds overrides the configured run timeout.
func (s *Server) handleStartAI(w http.ResponseWriter, r *http.Request) {
	var req startAIRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
	}
	timeout := s.cfg.RunTimeout()
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	runID, err := s.supervisor.Start(core.RunAI, timeout,
		map[string]any{"trigger": "api"},
		func(ctx context.Context, runID int64) error {
			return s.processor.Run(ctx, runID)
		})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, runStartedResponse{
		RunID: runID, Kind: string(core.RunAI), Status: string(core.RunRunning),
	})
}

type buildBriefRequest struct {
	Date          string `json:"date"`
	Mode          string `json:"mode"`
	MaxItems      *int   `json:"max_items"`
	MaxPerTopic   *int   `json:"max_per_topic"`
	LookbackHours *int   `json:"lookback_hours"`
}

// handleStartBuildBrief handles POST /api/runs/build-brief. The body is
// optional; an empty body builds today's morning brief with configured knobs.
// The build runs to completion before responding, so the caller gets the
// terminal run record.
func (s *Server) handleStartBuildBrief(w http.ResponseWriter, r *http.Request) {
	var req buildBriefRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Mode == "" {
		req.Mode = "morning"
	}
	if req.Date == "" {
		req.Date = time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid date " + req.Date + ", expected YYYY-MM-DD"})
		return
	}
	opts := brief.Options{
		MaxItems:      req.MaxItems,
		MaxPerTopic:   req.MaxPerTopic,
		LookbackHours: req.LookbackHours,
	}

	run, err := s.supervisor.StartAndWait(core.RunBuildBrief, s.cfg.RunTimeout(),
		map[string]any{"trigger": "api", "date": req.Date, "mode": req.Mode},
		func(ctx context.Context, runID int64) error {
			return s.builder.Build(ctx, runID, req.Date, req.Mode, opts)
		})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

// handleGetBrief handles GET /api/briefs/{date}?mode=morning.
func (s *Server) handleGetBrief(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "morning"
	}

	briefRecord, items, topicBriefs, found, err := s.store.GetBriefByDate(date, mode)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		s.respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "brief not found for " + date + "/" + mode})
		return
	}
	if items == nil {
		items = []core.BriefItem{}
	}
	if topicBriefs == nil {
		topicBriefs = []core.TopicBrief{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"brief":        briefRecord,
		"items":        items,
		"topic_briefs": topicBriefs,
	})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respondJSON(w, status, ErrorResponse{Error: err.Error()})
}
