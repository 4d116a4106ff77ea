package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
)

type EnrollmentHandler struct {
	ledger    services.LedgerService
	lifecycle services.LifecycleService
}

func NewEnrollmentHandler(ledger services.LedgerService, lifecycle services.LifecycleService) *EnrollmentHandler {
	return &EnrollmentHandler{ledger: ledger, lifecycle: lifecycle}
}

type enrollInput struct {
	// ParticipantID defaults to the caller. Only admins may enroll someone
	// else.
	ParticipantID int   `json:"participant_id"`
	Cost          int64 `json:"cost"`
}

// EnrollHandler handles POST /tournaments/{tournamentID}/enrollments.
// Repeating the request answers 409 ALREADY_ENROLLED and carries the
// existing enrollment, so a client retry can pick it up.
func (h *EnrollmentHandler) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, role, err := caller(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input enrollInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.ParticipantID == 0 {
		input.ParticipantID = userID
	}
	if input.ParticipantID != userID && role != middleware.RoleAdmin {
		forbiddenResponse(w, r, "you can only enroll yourself")
		return
	}

	enrollment, err := h.ledger.TryEnroll(r.Context(), tournamentID, input.ParticipantID, input.Cost)
	switch {
	case errors.Is(err, services.ErrAlreadyEnrolled) && enrollment != nil:
		respond(w, r, http.StatusConflict, jsonResponse{
			"enrollment": enrollment,
			"error":      err.Error(),
			"code":       services.CodeOf(err),
		})
	case err != nil:
		mapServiceErrorToHTTP(w, r, err)
	default:
		respond(w, r, http.StatusCreated, jsonResponse{"enrollment": enrollment})
	}
}

// ReleaseHandler handles DELETE /enrollments/{enrollmentID}.
func (h *EnrollmentHandler) ReleaseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "enrollmentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !h.authorizeEnrollment(w, r, id) {
		return
	}
	if err := h.ledger.Release(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WithdrawHandler handles POST /enrollments/{enrollmentID}/withdraw.
func (h *EnrollmentHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "enrollmentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !h.authorizeEnrollment(w, r, id) {
		return
	}
	enrollment, err := h.lifecycle.Withdraw(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"enrollment": enrollment})
}

// authorizeEnrollment lets admins and the tournament organizer act on any
// enrollment. In solo tournaments everyone else may only touch their own.
// Team membership is not known here, so team enrollments stay open to any
// authenticated caller.
func (h *EnrollmentHandler) authorizeEnrollment(w http.ResponseWriter, r *http.Request, enrollmentID int) bool {
	userID, role, err := caller(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return false
	}
	if role == middleware.RoleAdmin {
		return true
	}

	enrollment, err := h.ledger.Enrollment(r.Context(), enrollmentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return false
	}
	t, err := h.lifecycle.GetTournament(r.Context(), enrollment.TournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return false
	}
	if t.OrganizerID == userID || t.ParticipantType != models.FormatParticipantSolo {
		return true
	}
	if enrollment.ParticipantID != userID {
		forbiddenResponse(w, r, "you can only change your own enrollment")
		return false
	}
	return true
}
