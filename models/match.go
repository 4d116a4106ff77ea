package models

import "time"

type MatchOutcome string

const (
	OutcomeUnresolved      MatchOutcome = "UNRESOLVED"
	OutcomeParticipantAWin MatchOutcome = "PARTICIPANT_A_WIN"
	OutcomeParticipantBWin MatchOutcome = "PARTICIPANT_B_WIN"
	OutcomeDraw            MatchOutcome = "DRAW"
)

func (o MatchOutcome) IsTerminal() bool {
	return o == OutcomeParticipantAWin || o == OutcomeParticipantBWin || o == OutcomeDraw
}

type MatchStage string

const (
	StageMain      MatchStage = "main"
	StageGroup     MatchStage = "group"
	StagePlacement MatchStage = "placement"
)

// ThirdPlaceMatchNumber marks the third-place playoff. Regular match numbers start at 1.
const ThirdPlaceMatchNumber = 0

// Slot positions inside a match.
const (
	SlotA = 1
	SlotB = 2
)

type Match struct {
	ID            int          `json:"id" db:"id"`
	TournamentID  int          `json:"tournament_id" db:"tournament_id"`
	Stage         MatchStage   `json:"stage" db:"stage"`
	GroupNumber   *int         `json:"group_number,omitempty" db:"group_number"`
	Round         int          `json:"round" db:"round"`
	OrderInRound  int          `json:"order_in_round" db:"order_in_round"`
	MatchNumber   int          `json:"match_number" db:"match_number"`
	BracketUID    string       `json:"bracket_uid" db:"bracket_uid"`
	ParticipantA  *int         `json:"participant_a,omitempty" db:"participant_a"`
	ParticipantB  *int         `json:"participant_b,omitempty" db:"participant_b"`
	SeedA         *int         `json:"seed_a,omitempty" db:"seed_a"`
	SeedB         *int         `json:"seed_b,omitempty" db:"seed_b"`
	WinnerToMatch *int         `json:"winner_to_match,omitempty" db:"winner_to_match"`
	WinnerToSlot  *int         `json:"winner_to_slot,omitempty" db:"winner_to_slot"`
	LoserToMatch  *int         `json:"loser_to_match,omitempty" db:"loser_to_match"`
	LoserToSlot   *int         `json:"loser_to_slot,omitempty" db:"loser_to_slot"`
	Outcome       MatchOutcome `json:"outcome" db:"outcome"`
	ScoreA        *int         `json:"score_a,omitempty" db:"score_a"`
	ScoreB        *int         `json:"score_b,omitempty" db:"score_b"`
	WinnerID      *int         `json:"winner_id,omitempty" db:"winner_id"`
	LoserID       *int         `json:"loser_id,omitempty" db:"loser_id"`
	ReportedBy    *int         `json:"reported_by,omitempty" db:"reported_by"`
	SettledAt     *time.Time   `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

func (m *Match) IsThirdPlace() bool {
	return m.Stage != StageGroup && m.MatchNumber == ThirdPlaceMatchNumber
}

// Ready reports whether both slots hold a participant.
func (m *Match) Ready() bool {
	return m.ParticipantA != nil && m.ParticipantB != nil
}
