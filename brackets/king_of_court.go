package brackets

import (
	"context"
	"fmt"
)

// KingOfCourtGenerator schedules winner-stays challenges. The holder of the
// court plays the head of a queue that starts as seeds 2..N in order; each
// loser joins the back of the queue. ChallengersPerRound puts that many
// consecutive 1v1 challenges under one round number.
type KingOfCourtGenerator struct{}

func NewKingOfCourtGenerator() BracketGenerator {
	return &KingOfCourtGenerator{}
}

func (g *KingOfCourtGenerator) GetName() string {
	return "KingOfCourt"
}

func (g *KingOfCourtGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	entrants := params.Entrants
	n := len(entrants)
	if n < 2 {
		return nil, fmt.Errorf("%w: king of court needs at least 2, got %d", ErrInsufficientParticipants, n)
	}

	challenges := params.Constraints.KingOfCourtRounds
	if challenges == 0 {
		challenges = n - 1
	}
	if challenges < 0 {
		return nil, fmt.Errorf("%w: challenge count must be positive, got %d", ErrInvalidConstraints, challenges)
	}
	perRound := params.Constraints.ChallengersPerRound
	if perRound <= 0 {
		perRound = 1
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := make([]*BracketMatch, 0, challenges)
	for k := 1; k <= challenges; k++ {
		bm := &BracketMatch{
			UID:          fmt.Sprintf("K%d", k),
			Stage:        params.Stage,
			Round:        (k-1)/perRound + 1,
			OrderInRound: (k-1)%perRound + 1,
		}

		if k == 1 {
			bm.Participant1ID = intPtr(entrants[0].ParticipantID)
			bm.Seed1 = intPtr(entrants[0].Seed)
		} else {
			bm.Source1 = &SlotSource{MatchUID: fmt.Sprintf("K%d", k-1)}
		}

		// the queue holds n-1 entrants; challenger k is queue position k
		if k+1 <= n {
			bm.Participant2ID = intPtr(entrants[k].ParticipantID)
			bm.Seed2 = intPtr(entrants[k].Seed)
		} else {
			bm.Source2 = &SlotSource{MatchUID: fmt.Sprintf("K%d", k-n+1), Loser: true}
		}
		matches = append(matches, bm)
	}
	return matches, nil
}
