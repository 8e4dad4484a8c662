package api

import (
	"encoding/json"
	"net/http"

	"github.com/therascope/therascope/internal/reporting"
	"github.com/therascope/therascope/pkg/scoring"
	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

type evaluateRequest struct {
	Variant taxonomy.Variant `json:"variant"`
	Trials  []trial.Record   `json:"trials"`
	Planned []trial.Stimulus `json:"planned"`
	Sort    string           `json:"sort"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Variant == "" {
		writeError(w, http.StatusBadRequest, "variant is required")
		return
	}
	mode, err := scoring.ParseSortMode(req.Sort)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.svc.Evaluate(req.Variant, scoring.Input{
		Trials:  req.Trials,
		Planned: req.Planned,
		Sort:    mode,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type createSessionRequest struct {
	ProgramID string `json:"program_id"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ProgramID == "" {
		writeError(w, http.StatusBadRequest, "program_id is required")
		return
	}

	sess, err := h.svc.OpenSession(r.Context(), req.ProgramID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type commitBlockResponse struct {
	SessionID string         `json:"session_id"`
	Trials    []trial.Record `json:"trials"`
}

func (h *Handler) handleCommitBlock(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	var req reporting.BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	added, err := h.svc.CommitBlock(r.Context(), sessionID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cache.Invalidate(sessionID)

	if added == nil {
		added = []trial.Record{}
	}
	writeJSON(w, http.StatusCreated, commitBlockResponse{SessionID: sessionID, Trials: added})
}

func (h *Handler) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "sessionID")
	if !ok {
		return
	}
	mode, err := scoring.ParseSortMode(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := cacheKey(sessionID, mode)
	if a := h.cache.Get(key); a != nil {
		writeJSON(w, http.StatusOK, a)
		return
	}

	archived, err := h.svc.SessionReport(r.Context(), sessionID, mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cache.Put(key, archived)
	writeJSON(w, http.StatusOK, archived)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "sessionID")
	if !ok {
		return
	}
	reportID, ok := pathUUID(w, r, "reportID")
	if !ok {
		return
	}

	report, err := h.svc.LoadReport(r.Context(), sessionID, reportID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "sessionID")
	if !ok {
		return
	}

	archived, err := h.svc.LatestReport(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, archived)
}

func (h *Handler) handleVariants(w http.ResponseWriter, r *http.Request) {
	var out []*taxonomy.Taxonomy
	for _, v := range taxonomy.Variants() {
		eng, err := h.svc.Engine(v)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = append(out, eng.Taxonomy())
	}
	writeJSON(w, http.StatusOK, out)
}
