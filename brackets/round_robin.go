package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

const defaultGroupSize = 4

type RoundRobinGenerator struct {
	uidPrefix   string
	groupNumber *int
}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket pairs every entrant with every other using the circle
// method. With an odd count a bye slot rotates so each entrant sits out
// exactly one round. A second leg repeats the schedule with sides swapped.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	entrants := params.Entrants
	if len(entrants) < 2 {
		return nil, fmt.Errorf("%w: round robin needs at least 2, got %d", ErrInsufficientParticipants, len(entrants))
	}
	legs := params.Constraints.Legs
	if legs == 0 {
		legs = 1
	}
	if legs != 1 && legs != 2 {
		return nil, fmt.Errorf("%w: legs must be 1 or 2, got %d", ErrInvalidConstraints, legs)
	}

	slots := make([]*Entrant, 0, len(entrants)+1)
	for i := range entrants {
		slots = append(slots, &entrants[i])
	}
	if len(slots)%2 == 1 {
		slots = append(slots, nil)
	}
	m := len(slots)
	roundsPerLeg := m - 1

	matches := make([]*BracketMatch, 0, legs*len(entrants)*(len(entrants)-1)/2)
	for r := 0; r < roundsPerLeg; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		order := 0
		for i := 0; i < m/2; i++ {
			home, away := slots[i], slots[m-1-i]
			if home == nil || away == nil {
				continue
			}
			// alternate the fixed slot's side so no one is always "A"
			if i == 0 && r%2 == 1 {
				home, away = away, home
			}
			order++
			for leg := 1; leg <= legs; leg++ {
				a, b := home, away
				if leg == 2 {
					a, b = away, home
				}
				round := r + 1 + (leg-1)*roundsPerLeg
				matches = append(matches, &BracketMatch{
					UID:            fmt.Sprintf("%sL%dR%dM%d", g.uidPrefix, leg, r+1, order),
					Stage:          params.Stage,
					GroupNumber:    g.groupNumber,
					Round:          round,
					OrderInRound:   order,
					Participant1ID: intPtr(a.ParticipantID),
					Participant2ID: intPtr(b.ParticipantID),
					Seed1:          intPtr(a.Seed),
					Seed2:          intPtr(b.Seed),
				})
			}
		}
		rotate(slots)
	}
	return matches, nil
}

// rotate keeps the first slot fixed and moves the last slot to position 1.
func rotate(slots []*Entrant) {
	if len(slots) < 3 {
		return
	}
	last := slots[len(slots)-1]
	copy(slots[2:], slots[1:len(slots)-1])
	slots[1] = last
}

type GroupStageGenerator struct{}

func NewGroupStageGenerator() BracketGenerator {
	return &GroupStageGenerator{}
}

func (g *GroupStageGenerator) GetName() string {
	return "GroupStage"
}

// GenerateBracket partitions entrants into groups and runs a round robin
// inside each. Placement matches are generated later by GeneratePlacement.
func (g *GroupStageGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	size := groupSize(params.Constraints)
	if size < 2 {
		return nil, fmt.Errorf("%w: group size must be at least 2, got %d", ErrInvalidConstraints, size)
	}
	groups := PartitionGroups(params.Entrants, size)

	var matches []*BracketMatch
	for i, members := range groups {
		groupNumber := i + 1
		rr := &RoundRobinGenerator{
			uidPrefix:   fmt.Sprintf("G%d", groupNumber),
			groupNumber: intPtr(groupNumber),
		}
		groupMatches, err := rr.GenerateBracket(ctx, GenerateBracketParams{
			Format:      models.FormatLeague,
			Stage:       models.StageGroup,
			Entrants:    members,
			Constraints: params.Constraints,
		})
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", groupNumber, err)
		}
		matches = append(matches, groupMatches...)
	}
	return matches, nil
}

// PartitionGroups splits seeded entrants into groups of the target size. A
// remainder of two or more forms its own last group; a single leftover joins
// the last full group, so no group is smaller than two. Seeds are dealt in
// snake order so top seeds land in different groups.
func PartitionGroups(entrants []Entrant, size int) [][]Entrant {
	if size < 2 {
		size = defaultGroupSize
	}
	n := len(entrants)
	full, rem := n/size, n%size
	var capacity []int
	for i := 0; i < full; i++ {
		capacity = append(capacity, size)
	}
	switch {
	case full == 0:
		capacity = []int{n}
	case rem == 1:
		capacity[full-1]++
	case rem >= 2:
		capacity = append(capacity, rem)
	}
	count := len(capacity)

	groups := make([][]Entrant, count)
	idx, dir := 0, 1
	for _, e := range entrants {
		for len(groups[idx]) >= capacity[idx] {
			idx, dir = snakeStep(idx, dir, count)
		}
		groups[idx] = append(groups[idx], e)
		idx, dir = snakeStep(idx, dir, count)
	}
	return groups
}

func snakeStep(idx, dir, count int) (int, int) {
	if count == 1 {
		return 0, dir
	}
	next := idx + dir
	if next < 0 || next >= count {
		return idx, -dir
	}
	return next, dir
}

func groupSize(c models.BracketConstraints) int {
	if c.GroupSize == 0 {
		return defaultGroupSize
	}
	return c.GroupSize
}
