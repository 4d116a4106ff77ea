package brackets

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-engine/models"
)

const thirdPlaceUIDSuffix = "3P"

type node struct {
	participantID  *int
	seed           *int
	sourceMatchUID *string
	isBye          bool
}

type SingleEliminationGenerator struct {
	uidPrefix   string
	groupNumber *int
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket lays entrants out in standard seeded order on a bracket of
// the next power of two. Missing positions are byes: the opposing seed is
// written straight into its round-2 slot and no match is produced.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	entrants := params.Entrants
	n := len(entrants)
	if n < 2 {
		return nil, fmt.Errorf("%w: knockout needs at least 2, got %d", ErrInsufficientParticipants, n)
	}

	size := BracketSize(n)
	numRounds := RoundCount(size)

	currentRoundNodes := make([]*node, size)
	for i, seed := range SeedOrder(size) {
		if seed > n {
			currentRoundNodes[i] = &node{isBye: true}
			continue
		}
		e := entrants[seed-1]
		currentRoundNodes[i] = &node{participantID: intPtr(e.ParticipantID), seed: intPtr(e.Seed)}
	}

	matches := make([]*BracketMatch, 0, n)
	var semifinals []string

	for r := 1; r <= numRounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nextRoundNodes := make([]*node, 0, len(currentRoundNodes)/2)
		order := 0

		for i := 0; i < len(currentRoundNodes); i += 2 {
			node1, node2 := currentRoundNodes[i], currentRoundNodes[i+1]

			switch {
			case node1.isBye && node2.isBye:
				return nil, fmt.Errorf("two byes met in round %d at position %d", r, i/2+1)
			case node2.isBye:
				nextRoundNodes = append(nextRoundNodes, &node{participantID: node1.participantID, seed: node1.seed})
				continue
			case node1.isBye:
				nextRoundNodes = append(nextRoundNodes, &node{participantID: node2.participantID, seed: node2.seed})
				continue
			}

			order++
			uid := fmt.Sprintf("%sR%dM%d", g.uidPrefix, r, order)
			bm := &BracketMatch{
				UID:          uid,
				Stage:        params.Stage,
				GroupNumber:  g.groupNumber,
				Round:        r,
				OrderInRound: order,
			}
			bm.Participant1ID, bm.Seed1, bm.Source1 = node1.participantID, node1.seed, winnerOf(node1)
			bm.Participant2ID, bm.Seed2, bm.Source2 = node2.participantID, node2.seed, winnerOf(node2)

			matches = append(matches, bm)
			nextRoundNodes = append(nextRoundNodes, &node{sourceMatchUID: &bm.UID})
			if r == numRounds-1 {
				semifinals = append(semifinals, uid)
			}
		}
		currentRoundNodes = nextRoundNodes
	}

	if len(currentRoundNodes) != 1 {
		return nil, fmt.Errorf("bracket did not converge: %d nodes left after %d rounds", len(currentRoundNodes), numRounds)
	}

	if params.Constraints.ThirdPlaceMatch && len(semifinals) == 2 {
		matches = append(matches, &BracketMatch{
			UID:          g.uidPrefix + thirdPlaceUIDSuffix,
			Stage:        params.Stage,
			GroupNumber:  g.groupNumber,
			Round:        numRounds,
			OrderInRound: 2,
			MatchNumber:  models.ThirdPlaceMatchNumber,
			Source1:      &SlotSource{MatchUID: semifinals[0], Loser: true},
			Source2:      &SlotSource{MatchUID: semifinals[1], Loser: true},
		})
	}
	return matches, nil
}

func winnerOf(n *node) *SlotSource {
	if n.sourceMatchUID == nil {
		return nil
	}
	return &SlotSource{MatchUID: *n.sourceMatchUID}
}

// BracketSize is the smallest power of two that holds n entrants.
func BracketSize(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

func RoundCount(size int) int {
	rounds := 0
	for s := size; s > 1; s >>= 1 {
		rounds++
	}
	return rounds
}

// SeedOrder returns the seed sitting at each bracket position so that seed 1
// meets seed size, seed 2 meets seed size-1 and the top two can only meet in
// the final: 1,8,4,5,2,7,3,6 for a bracket of 8.
func SeedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		sum := len(order)*2 + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, sum-s)
		}
		order = next
	}
	return order
}

func isThirdPlaceUID(uid string) bool {
	return strings.HasSuffix(uid, thirdPlaceUIDSuffix)
}
