package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

// GeneratePlacement builds the second wave of a group-stage tournament.
// rankedGroups holds each group's finishers in final group order. Finishers
// of the same rank across groups form a tier, and each tier with two or more
// entrants plays its own knockout. Tier numbers are stored as the match
// group number; Plan.Groups lists the tiers.
func GeneratePlacement(ctx context.Context, rankedGroups [][]Entrant, c models.BracketConstraints) (*Plan, error) {
	if len(rankedGroups) == 0 {
		return nil, fmt.Errorf("%w: no group standings", ErrInsufficientParticipants)
	}

	tiers := PlacementTiers(rankedGroups)
	plan := &Plan{
		Format: models.FormatGroupStagePlacement,
		Stage:  models.StagePlacement,
		Groups: tiers,
	}

	for i, tier := range tiers {
		if len(tier) < 2 {
			continue
		}
		tierNumber := i + 1
		gen := &SingleEliminationGenerator{
			uidPrefix:   fmt.Sprintf("T%d-", tierNumber),
			groupNumber: intPtr(tierNumber),
		}
		matches, err := gen.GenerateBracket(ctx, GenerateBracketParams{
			Format:      models.FormatKnockout,
			Stage:       models.StagePlacement,
			Entrants:    tier,
			Constraints: c,
		})
		if err != nil {
			return nil, fmt.Errorf("placement tier %d: %w", tierNumber, err)
		}
		plan.Matches = append(plan.Matches, matches...)
	}
	numberMatches(plan.Matches)
	return plan, nil
}

// PlacementTiers regroups ranked group finishers by finishing position. Within
// a tier entrants are seeded by group order.
func PlacementTiers(rankedGroups [][]Entrant) [][]Entrant {
	depth := 0
	for _, g := range rankedGroups {
		if len(g) > depth {
			depth = len(g)
		}
	}
	tiers := make([][]Entrant, depth)
	for pos := 0; pos < depth; pos++ {
		for _, g := range rankedGroups {
			if pos >= len(g) {
				continue
			}
			e := g[pos]
			e.Seed = len(tiers[pos]) + 1
			tiers[pos] = append(tiers[pos], e)
		}
	}
	return tiers
}
