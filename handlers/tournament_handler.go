package handlers

import (
	"context"
	"net/http"

	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
)

type TournamentHandler struct {
	lifecycle services.LifecycleService
}

func NewTournamentHandler(lifecycle services.LifecycleService) *TournamentHandler {
	return &TournamentHandler{lifecycle: lifecycle}
}

// CreateHandler handles POST /tournaments. The organizer is always the
// caller.
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create a tournament")
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.OrganizerID = userID

	tournament, err := h.lifecycle.CreateTournament(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"tournament": tournament})
}

func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournament, err := h.lifecycle.GetTournament(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

func (h *TournamentHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.SubmitForInstructor)
}

type acceptInput struct {
	InstructorID int `json:"instructor_id"`
}

// AcceptHandler handles POST /tournaments/{tournamentID}/accept. An
// instructor accepts for themselves; an admin names the instructor.
func (h *TournamentHandler) AcceptHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, role, err := caller(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input acceptInput
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if role == middleware.RoleInstructor {
		input.InstructorID = userID
	}

	tournament, err := h.lifecycle.AcceptInstructor(r.Context(), id, input.InstructorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}

func (h *TournamentHandler) CloseHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id int) (*models.Tournament, error) {
		return h.lifecycle.CloseEnrollment(ctx, id, models.CloseReasonManual)
	})
}

func (h *TournamentHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Complete)
}

func (h *TournamentHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.lifecycle.Cancel)
}

func (h *TournamentHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int) (*models.Tournament, error)) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournament, err := apply(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"tournament": tournament})
}
