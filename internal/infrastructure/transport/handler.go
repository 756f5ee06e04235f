package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scaffoldgen/app/usecase"
	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/infrastructure/metrics"
)

type RunHandler struct {
	runService      usecase.RunUsecase
	artifactService usecase.ArtifactUsecase
	hub             *ProgressHub
	logger          *slog.Logger
}

func NewRunHandler(
	runService usecase.RunUsecase,
	artifactService usecase.ArtifactUsecase,
	hub *ProgressHub,
	logger *slog.Logger,
) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{
		runService:      runService,
		artifactService: artifactService,
		hub:             hub,
		logger:          logger,
	}
}

func (h *RunHandler) withMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		metrics.ObserveHTTPRequest(r.Method, path, rw.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (h *RunHandler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/runs", h.withMetrics(h.handleCreateRun)).Methods(http.MethodPost)
	api.HandleFunc("/runs", h.withMetrics(h.handleListRuns)).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", h.withMetrics(h.handleGetRun)).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", h.withMetrics(h.handleDeleteRun)).Methods(http.MethodDelete)
	api.HandleFunc("/runs/{id}/files", h.withMetrics(h.handleGetFiles)).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/build", h.withMetrics(h.handleBuild)).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id}/progress", h.withMetrics(h.handleProgress)).Methods(http.MethodGet)
	api.HandleFunc("/health", h.withMetrics(h.handleHealth)).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotReadyForBuild):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// POST /api/v1/runs
func (h *RunHandler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req entity.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bad request body: %w", err))
		return
	}

	run, err := h.runService.CreateRun(r.Context(), req)
	if err != nil {
		code := statusFor(err)
		if code >= 500 {
			h.logger.Error("create run failed", "err", err)
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// GET /api/v1/runs
func (h *RunHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runService.ListRuns(r.Context())
	if err != nil {
		h.logger.Error("list runs failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*entity.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GET /api/v1/runs/{id}
func (h *RunHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := h.runService.GetRun(r.Context(), id)
	if err != nil {
		h.fail(w, "get run failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// DELETE /api/v1/runs/{id}
func (h *RunHandler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.runService.DeleteRun(r.Context(), id); err != nil {
		h.fail(w, "delete run failed", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/runs/{id}/files
func (h *RunHandler) handleGetFiles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.runService.GetRun(r.Context(), id); err != nil {
		h.fail(w, "get run failed", id, err)
		return
	}
	files, err := h.artifactService.GetFiles(r.Context(), id)
	if err != nil {
		h.fail(w, "get files failed", id, err)
		return
	}
	if files == nil {
		files = []*entity.Artifact{}
	}
	writeJSON(w, http.StatusOK, files)
}

// POST /api/v1/runs/{id}/build
func (h *RunHandler) handleBuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.runService.BuildRun(r.Context(), id); err != nil {
		h.fail(w, "build run failed", id, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id, "status": string(entity.RunStatusBuilding)})
}

// GET /api/v1/runs/{id}/progress (websocket)
func (h *RunHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.hub == nil {
		writeError(w, http.StatusNotImplemented, errors.New("progress streaming is disabled"))
		return
	}
	if _, err := h.runService.GetRun(r.Context(), id); err != nil {
		h.fail(w, "get run failed", id, err)
		return
	}
	h.hub.Serve(w, r, id)
}

// GET /api/v1/health
func (h *RunHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"ok": true,
		"ts": time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *RunHandler) fail(w http.ResponseWriter, msg, id string, err error) {
	code := statusFor(err)
	if code >= 500 {
		h.logger.Error(msg, "run_id", id, "err", err)
	} else {
		h.logger.Debug(msg, "run_id", id, "err", err)
	}
	writeError(w, code, err)
}
