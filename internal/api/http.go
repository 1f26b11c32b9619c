// Package api serves the admin endpoints of the ingestor.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"video_ingestor/internal/domain"
)

type Ingestor interface {
	Ingest(ctx context.Context) (*domain.IngestStats, error)
	State(ctx context.Context) (*domain.IngestState, error)
}

type errorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Stats   *domain.IngestStats `json:"stats,omitempty"`
}

type HTTPHandler struct {
	ingestor   Ingestor
	gatherer   prometheus.Gatherer
	runTimeout time.Duration
	logger     *slog.Logger
}

// NewHTTPHandler builds the admin handler. Runs triggered over HTTP are
// bounded by runTimeout, the same budget scheduled runs get; zero disables it.
func NewHTTPHandler(ingestor Ingestor, gatherer prometheus.Gatherer, runTimeout time.Duration, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{ingestor: ingestor, gatherer: gatherer, runTimeout: runTimeout, logger: logger}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/ingest/run", h.handleRun).Methods(http.MethodPost)
	router.HandleFunc("/ingest/state", h.handleState).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	if h.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

func (h *HTTPHandler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	stats, err := h.ingestor.Ingest(ctx)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("ingestion run failed", "error", err)
		} else {
			h.logger.Warn("ingestion run rejected", "code", code, "error", err)
		}
		writeJSON(w, status, errorResponse{Error: code, Message: err.Error(), Stats: stats})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.ingestor.State(r.Context())
	if err != nil {
		h.logger.Error("failed to load ingest state", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "failed to load ingest state"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classify maps a run failure to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, domain.ErrNoCredentials):
		return http.StatusServiceUnavailable, "no_credentials"
	case errors.Is(err, domain.ErrCredentialsExhausted):
		return http.StatusServiceUnavailable, "credentials_exhausted"
	case errors.Is(err, domain.ErrSearchFailed):
		return http.StatusBadGateway, "search_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
