package models

import "time"

type StandingScope string

const (
	ScopeTournament StandingScope = "tournament"
	ScopeGroup      StandingScope = "group"
)

type Standing struct {
	ID                int           `json:"id" db:"id"`
	TournamentID      int           `json:"tournament_id" db:"tournament_id"`
	Scope             StandingScope `json:"scope" db:"scope"`
	GroupNumber       *int          `json:"group_number,omitempty" db:"group_number"`
	ParticipantID     int           `json:"participant_id" db:"participant_id"`
	SeedIndex         int           `json:"seed_index" db:"seed_index"`
	Rank              int           `json:"rank" db:"rank"`
	Points            int           `json:"points" db:"points"`
	GamesPlayed       int           `json:"games_played" db:"games_played"`
	Wins              int           `json:"wins" db:"wins"`
	Draws             int           `json:"draws" db:"draws"`
	Losses            int           `json:"losses" db:"losses"`
	ScoreFor          int           `json:"score_for" db:"score_for"`
	ScoreAgainst      int           `json:"score_against" db:"score_against"`
	ScoreDifference   int           `json:"score_difference" db:"score_difference"`
	EliminatedInRound *int          `json:"eliminated_in_round,omitempty" db:"eliminated_in_round"`
	ComputedAt        time.Time     `json:"computed_at" db:"computed_at"`
}
