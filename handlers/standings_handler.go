package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/services"
)

type StandingsHandler struct {
	ranking services.RankingService
}

func NewStandingsHandler(ranking services.RankingService) *StandingsHandler {
	return &StandingsHandler{ranking: ranking}
}

// groupParam reads the optional ?group= query parameter. No value means the
// whole tournament.
func groupParam(r *http.Request) (*int, error) {
	s := r.URL.Query().Get("group")
	if s == "" {
		return nil, nil
	}
	g, err := strconv.Atoi(s)
	if err != nil || g <= 0 {
		return nil, fmt.Errorf("invalid group query parameter: %q", s)
	}
	return &g, nil
}

func (h *StandingsHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.ranking.Standings)
}

func (h *StandingsHandler) RecomputeHandler(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.ranking.Recompute)
}

func (h *StandingsHandler) serve(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, tournamentID int, group *int) ([]*models.Standing, error)) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	group, err := groupParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := load(r.Context(), id, group)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"standings": standings})
}
