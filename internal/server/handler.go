// Package server exposes the job submission endpoint and the operational probes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"call-audit-go/internal/logger"
	"call-audit-go/internal/scheduler"
	"call-audit-go/internal/types"
)

type Submitter interface {
	Submit(ctx context.Context, req types.SubmitRequest) (types.JobResult, error)
}

// BackendState is the last known health of the speech backend.
type BackendState interface {
	Healthy() bool
	LastChecked() time.Time
}

type Snapshotter interface {
	GetSnapshot() map[string]int64
}

type Handler struct {
	jobs     Submitter
	backend  BackendState
	metrics  Snapshotter
	validate *validator.Validate
	log      *logger.Logger
}

func NewHandler(jobs Submitter, backend BackendState, m Snapshotter, log *logger.Logger) *Handler {
	return &Handler{
		jobs:     jobs,
		backend:  backend,
		metrics:  m,
		validate: validator.New(),
		log:      log,
	}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe-zip", h.TranscribeZip)
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/metrics", h.Metrics)
	return mux
}

// TranscribeZip handles POST /transcribe-zip. The response is held until the
// job resolves; all three result statuses are answered with 200.
func (h *Handler) TranscribeZip(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "transcribe-zip")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reqLog.WithField("error", err.Error()).Warn("invalid request body")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		reqLog.WithField("error", err.Error()).Warn("invalid request")
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	reqLog = reqLog.WithField("opportunity_id", req.OpportunityID)
	reqLog.WithField("file_url", req.FileURL).Info("job submitted")

	start := time.Now()
	res, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, scheduler.ErrShuttingDown) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		// caller went away; the job keeps its place in the queue
		reqLog.WithField("error", err.Error()).Warn("submitter gone before job resolved")
		return
	}
	reqLog.WithField("status", res.Status).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("job resolved")

	writeJSON(w, res, reqLog.Error)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.log.WithRequest(r).Debug("health check")
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	backend, checked := "unknown", "never"
	if h.backend != nil {
		if at := h.backend.LastChecked(); !at.IsZero() {
			checked = at.UTC().Format(time.RFC3339)
			backend = "down"
			if h.backend.Healthy() {
				backend = "up"
			}
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "ok\nbackend=%s last_checked=%s\n", backend, checked)
}

// Metrics handles GET /metrics.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.metrics.GetSnapshot(), h.log.WithRequest(r).Error)
}

func writeJSON(w http.ResponseWriter, v any, logErr func(...any)) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logErr("failed to write response: ", err)
	}
}
