package models

import "fmt"

type FormatParticipantType string

const (
	FormatParticipantSolo FormatParticipantType = "solo"
	FormatParticipantTeam FormatParticipantType = "team"
)

// BracketFormat is the closed set of supported tournament formats.
type BracketFormat string

const (
	FormatLeague              BracketFormat = "LEAGUE"
	FormatGroupStagePlacement BracketFormat = "GROUP_STAGE_PLACEMENT"
	FormatKnockout            BracketFormat = "KNOCKOUT"
	FormatKingOfCourt         BracketFormat = "KING_OF_COURT"
)

func ParseBracketFormat(s string) (BracketFormat, error) {
	switch f := BracketFormat(s); f {
	case FormatLeague, FormatGroupStagePlacement, FormatKnockout, FormatKingOfCourt:
		return f, nil
	}
	return "", fmt.Errorf("unknown bracket format %q", s)
}

// MinParticipants is the smallest field (other than a single-entrant walkover)
// the format can be generated for.
func (f BracketFormat) MinParticipants() int {
	switch f {
	case FormatGroupStagePlacement:
		return 4
	default:
		return 2
	}
}

// AllowsDraw reports whether a match of the given stage may end in a draw.
func (f BracketFormat) AllowsDraw(stage MatchStage) bool {
	switch f {
	case FormatLeague:
		return true
	case FormatGroupStagePlacement:
		return stage == StageGroup
	default:
		return false
	}
}

// MatchDuration is the closed set of match lengths in minutes.
type MatchDuration int

const (
	MatchDurationOne   MatchDuration = 1
	MatchDurationThree MatchDuration = 3
	MatchDurationFive  MatchDuration = 5
)

func (d MatchDuration) Valid() bool {
	return d == MatchDurationOne || d == MatchDurationThree || d == MatchDurationFive
}

// BracketConstraints carries the format-specific generation knobs.
type BracketConstraints struct {
	GroupSize           int   `json:"group_size" db:"group_size"`
	Legs                int   `json:"legs" db:"legs"`
	ThirdPlaceMatch     bool  `json:"third_place_match" db:"third_place_match"`
	KingOfCourtRounds   int   `json:"king_of_court_rounds" db:"king_of_court_rounds"`
	ChallengersPerRound int   `json:"challengers_per_round" db:"challengers_per_round"`
	RandomizeSeeding    bool  `json:"randomize_seeding" db:"randomize_seeding"`
	RandomSeed          int64 `json:"random_seed" db:"random_seed"`
}
