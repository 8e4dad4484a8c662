package api

import (
	"encoding/json"
	"net/http"

	"github.com/therascope/therascope/internal/reporting"
)

func (h *Handler) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var req reporting.ProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Variant == "" {
		writeError(w, http.StatusBadRequest, "variant is required")
		return
	}

	p, err := h.svc.CreateProgram(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Program(r.Context(), r.PathValue("programID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateStimulusRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleUpdateStimulus(w http.ResponseWriter, r *http.Request) {
	var req updateStimulusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "active is required")
		return
	}

	programID, stimulusID := r.PathValue("programID"), r.PathValue("stimulusID")
	if err := h.svc.SetStimulusActive(r.Context(), programID, stimulusID, *req.Active); err != nil {
		h.fail(w, r, err)
		return
	}
	// The planned set feeds every session report of the program.
	h.cache.Purge()

	writeJSON(w, http.StatusOK, map[string]any{
		"program_id":  programID,
		"stimulus_id": stimulusID,
		"active":      *req.Active,
	})
}
