package brackets

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/Dosada05/tournament-engine/models"
)

var (
	ErrInsufficientParticipants = errors.New("not enough participants for this format")
	ErrUnsupportedFormat        = errors.New("unsupported bracket format")
	ErrInvalidConstraints       = errors.New("invalid bracket constraints")
)

// Entrant is a participant as seen by the generator. Seed is the 1-based
// bracket position; lower is stronger.
type Entrant struct {
	ParticipantID int  `json:"participant_id"`
	Seed          int  `json:"seed"`
	Forfeit       bool `json:"forfeit,omitempty"`
}

// SlotSource points a match slot at the winner (or loser) of an earlier match.
type SlotSource struct {
	MatchUID string
	Loser    bool
}

type BracketMatch struct {
	UID          string
	Stage        models.MatchStage
	GroupNumber  *int
	Round        int
	OrderInRound int
	MatchNumber  int

	Participant1ID *int
	Participant2ID *int
	Seed1          *int
	Seed2          *int

	Source1 *SlotSource
	Source2 *SlotSource
}

// Plan is the full output of one generation call. A plan with a Walkover and
// no matches means the single entrant wins by default.
type Plan struct {
	Format   models.BracketFormat
	Stage    models.MatchStage
	Matches  []*BracketMatch
	Walkover *Entrant
	Groups   [][]Entrant
}

type GenerateBracketParams struct {
	Format      models.BracketFormat
	Stage       models.MatchStage
	Entrants    []Entrant
	Constraints models.BracketConstraints
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// NewGenerator returns the generator for the given format.
func NewGenerator(format models.BracketFormat) (BracketGenerator, error) {
	switch format {
	case models.FormatLeague:
		return NewRoundRobinGenerator(), nil
	case models.FormatGroupStagePlacement:
		return NewGroupStageGenerator(), nil
	case models.FormatKnockout:
		return NewSingleEliminationGenerator(), nil
	case models.FormatKingOfCourt:
		return NewKingOfCourtGenerator(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Generate builds the main-stage plan for a tournament. It is pure: the same
// entrants and constraints always produce the same plan.
func Generate(ctx context.Context, params GenerateBracketParams) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen, err := NewGenerator(params.Format)
	if err != nil {
		return nil, err
	}

	stage := models.StageMain
	if params.Format == models.FormatGroupStagePlacement {
		stage = models.StageGroup
	}
	plan := &Plan{Format: params.Format, Stage: stage}

	n := len(params.Entrants)
	switch {
	case n == 0:
		return nil, fmt.Errorf("%w: no entrants", ErrInsufficientParticipants)
	case n == 1:
		e := params.Entrants[0]
		plan.Walkover = &e
		return plan, nil
	case n < params.Format.MinParticipants():
		return nil, fmt.Errorf("%w: %s needs at least %d, got %d",
			ErrInsufficientParticipants, params.Format, params.Format.MinParticipants(), n)
	}

	params.Stage = stage
	params.Entrants = SeedEntrants(params.Entrants, params.Constraints)

	matches, err := gen.GenerateBracket(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", gen.GetName(), err)
	}
	numberMatches(matches)
	plan.Matches = matches
	if params.Format == models.FormatGroupStagePlacement {
		plan.Groups = PartitionGroups(params.Entrants, groupSize(params.Constraints))
	}
	return plan, nil
}

// SeedEntrants orders entrants by seed and renumbers them 1..N. When the
// constraints ask for randomized seeding the order is shuffled with the
// supplied seed, so the result is reproducible.
func SeedEntrants(entrants []Entrant, c models.BracketConstraints) []Entrant {
	out := make([]Entrant, len(entrants))
	copy(out, entrants)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })

	if c.RandomizeSeeding {
		rng := rand.New(rand.NewSource(c.RandomSeed))
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	for i := range out {
		out[i].Seed = i + 1
	}
	return out
}

// numberMatches assigns tournament-wide match numbers in round order. The
// third-place playoff keeps its reserved number.
func numberMatches(matches []*BracketMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if groupKey(a) != groupKey(b) {
			return groupKey(a) < groupKey(b)
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.OrderInRound < b.OrderInRound
	})
	next := 1
	for _, m := range matches {
		if m.MatchNumber == models.ThirdPlaceMatchNumber && isThirdPlaceUID(m.UID) {
			continue
		}
		m.MatchNumber = next
		next++
	}
}

func groupKey(m *BracketMatch) int {
	if m.GroupNumber == nil {
		return 0
	}
	return *m.GroupNumber
}

func intPtr(v int) *int {
	return &v
}
