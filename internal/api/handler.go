// Package api implements the therascope REST API: stateless evaluation,
// program registration, session block commits and report reads.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/therascope/therascope/internal/records"
	"github.com/therascope/therascope/internal/reporting"
	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

// Handler is the top-level API handler for the therascope service.
type Handler struct {
	svc    *reporting.Service
	cache  *ReportCache
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *reporting.Service, cache *ReportCache, logger *slog.Logger) *Handler {
	if cache == nil {
		cache = NewReportCacheFromEnv()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, cache: cache, logger: logger}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Write endpoints
	mux.HandleFunc("POST /v1/evaluate", h.handleEvaluate)
	mux.HandleFunc("POST /v1/programs", h.handleCreateProgram)
	mux.HandleFunc("PATCH /v1/programs/{programID}/stimuli/{stimulusID}", h.handleUpdateStimulus)
	mux.HandleFunc("POST /v1/sessions", h.handleCreateSession)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/blocks", h.handleCommitBlock)

	// Read endpoints
	mux.HandleFunc("GET /v1/programs/{programID}", h.handleGetProgram)
	mux.HandleFunc("GET /v1/sessions/{sessionID}/report", h.handleSessionReport)
	mux.HandleFunc("GET /v1/sessions/{sessionID}/reports/latest", h.handleLatestReport)
	mux.HandleFunc("GET /v1/sessions/{sessionID}/reports/{reportID}", h.handleGetReport)
	mux.HandleFunc("GET /v1/variants", h.handleVariants)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, records.ErrNotFound), errors.Is(err, reporting.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, records.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, taxonomy.ErrUnknownVariant), errors.Is(err, reporting.ErrInvalidReportKey):
		return http.StatusBadRequest
	case errors.Is(err, taxonomy.ErrConfigurationMismatch), errors.Is(err, trial.ErrInvalidRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reporting.ErrNoStore), errors.Is(err, reporting.ErrNoStorage):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// pathUUID reads a path value that must be a UUID. On failure it writes a
// 400 and returns false.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.PathValue(name)
	id, err := uuid.Parse(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": "+strconv.Quote(v))
		return "", false
	}
	return id.String(), true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}
