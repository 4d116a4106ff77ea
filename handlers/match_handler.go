package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
)

type MatchHandler struct {
	results services.ResultService
}

func NewMatchHandler(results services.ResultService) *MatchHandler {
	return &MatchHandler{results: results}
}

type outcomeInput struct {
	Outcome models.MatchOutcome `json:"outcome"`
	ScoreA  *int                `json:"score_a"`
	ScoreB  *int                `json:"score_b"`
}

// OutcomeHandler handles POST /matches/{matchID}/outcome. Whether the caller
// may enter results is decided from the token role only.
func (h *MatchHandler) OutcomeHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, role, err := caller(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input outcomeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.results.RecordOutcome(r.Context(), services.OutcomeReport{
		MatchID:    matchID,
		Outcome:    input.Outcome,
		ScoreA:     input.ScoreA,
		ScoreB:     input.ScoreB,
		ReportedBy: userID,
		Authorized: middleware.CanRecordResults(role),
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}
