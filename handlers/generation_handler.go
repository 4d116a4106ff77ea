package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/go-chi/chi/v5"
)

type GenerationHandler struct {
	generation services.GenerationService
}

func NewGenerationHandler(generation services.GenerationService) *GenerationHandler {
	return &GenerationHandler{generation: generation}
}

// handleStatus is 201 when the bracket is already built and 202 while a
// worker still owns the job.
func handleStatus(h *services.GenerationHandle) int {
	if h.Status == models.JobPending {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

// StartHandler handles POST /tournaments/{tournamentID}/generation.
func (h *GenerationHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	handle, err := h.generation.StartGeneration(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, handleStatus(handle), jsonResponse{"generation": handle})
}

// PlacementHandler handles POST /tournaments/{tournamentID}/placement.
func (h *GenerationHandler) PlacementHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	handle, err := h.generation.GeneratePlacement(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, handleStatus(handle), jsonResponse{"generation": handle})
}

// JobHandler handles GET /generation-jobs/{jobID}.
func (h *GenerationHandler) JobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	handle, err := h.generation.JobStatus(r.Context(), jobID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"generation": handle})
}

// BracketHandler handles GET /tournaments/{tournamentID}/bracket.
func (h *GenerationHandler) BracketHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.generation.BracketView(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, view)
}
