package services

import (
	"context"
	"testing"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entrantsN(n int) []brackets.Entrant {
	out := make([]brackets.Entrant, n)
	for i := range out {
		out[i] = brackets.Entrant{ParticipantID: i + 1, Seed: i + 1}
	}
	return out
}

// played builds a settled match between a and b. A zero score pair leaves
// the scores unset.
func played(number, round, a, b int, outcome models.MatchOutcome, scoreA, scoreB int) *models.Match {
	m := &models.Match{
		Stage:        models.StageMain,
		Round:        round,
		MatchNumber:  number,
		ParticipantA: intPtr(a),
		ParticipantB: intPtr(b),
		Outcome:      outcome,
	}
	if scoreA != 0 || scoreB != 0 {
		m.ScoreA, m.ScoreB = intPtr(scoreA), intPtr(scoreB)
	}
	switch outcome {
	case models.OutcomeParticipantAWin:
		m.WinnerID, m.LoserID = intPtr(a), intPtr(b)
	case models.OutcomeParticipantBWin:
		m.WinnerID, m.LoserID = intPtr(b), intPtr(a)
	}
	return m
}

func rankedIDs(list []*models.Standing) []int {
	out := make([]int, len(list))
	for i, s := range list {
		out[i] = s.ParticipantID
	}
	return out
}

func TestRankLeague(t *testing.T) {
	aWin, bWin, draw := models.OutcomeParticipantAWin, models.OutcomeParticipantBWin, models.OutcomeDraw

	tests := []struct {
		name    string
		players int
		matches []*models.Match
		want    []int
	}{
		{
			name:    "points then differential",
			players: 5,
			matches: []*models.Match{
				played(1, 1, 1, 2, aWin, 2, 0),
				played(2, 1, 3, 4, aWin, 5, 0),
				played(3, 2, 1, 3, draw, 1, 1),
				played(4, 2, 2, 5, bWin, 0, 1),
				played(5, 3, 4, 5, aWin, 1, 0),
			},
			// 3: 4pts +5, 1: 4pts +2, 5: 3pts 0, 4: 3pts -4, 2: 0pts -3
			want: []int{3, 1, 5, 4, 2},
		},
		{
			name:    "two-way tie goes to head to head",
			players: 4,
			matches: []*models.Match{
				played(1, 1, 1, 2, bWin, 0, 0),
				played(2, 1, 1, 3, aWin, 0, 0),
				played(3, 2, 1, 4, aWin, 0, 0),
				played(4, 2, 2, 3, aWin, 0, 0),
				played(5, 3, 2, 4, bWin, 0, 0),
				played(6, 3, 3, 4, draw, 0, 0),
			},
			want: []int{2, 1, 4, 3},
		},
		{
			name:    "three-way tie falls back to seed",
			players: 3,
			matches: []*models.Match{
				played(1, 1, 1, 2, aWin, 0, 0),
				played(2, 2, 2, 3, aWin, 0, 0),
				played(3, 3, 3, 1, aWin, 0, 0),
			},
			want: []int{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rankLeague(entrantsN(tt.players), tt.matches)
			assert.Equal(t, tt.want, rankedIDs(got))
		})
	}
}

func TestRankLeagueIsDeterministic(t *testing.T) {
	matches := []*models.Match{
		played(1, 1, 1, 2, models.OutcomeDraw, 0, 0),
		played(2, 1, 3, 4, models.OutcomeDraw, 0, 0),
		played(3, 2, 1, 3, models.OutcomeDraw, 0, 0),
		played(4, 2, 2, 4, models.OutcomeDraw, 0, 0),
	}
	reversed := []*models.Match{matches[3], matches[2], matches[1], matches[0]}

	first := rankedIDs(rankLeague(entrantsN(4), matches))
	second := rankedIDs(rankLeague(entrantsN(4), reversed))
	assert.Equal(t, first, second)
	assert.Equal(t, []int{1, 2, 3, 4}, first)
}

func TestRankKnockout(t *testing.T) {
	aWin, bWin := models.OutcomeParticipantAWin, models.OutcomeParticipantBWin

	t.Run("third place playoff decides third", func(t *testing.T) {
		matches := []*models.Match{
			played(1, 1, 1, 4, aWin, 0, 0),
			played(2, 1, 2, 3, aWin, 0, 0),
			played(3, 2, 1, 2, bWin, 0, 0),
			played(models.ThirdPlaceMatchNumber, 2, 3, 4, bWin, 0, 0),
		}
		got := rankKnockout(entrantsN(4), matches)
		assert.Equal(t, []int{2, 1, 4, 3}, rankedIDs(got))
		assert.Nil(t, got[0].EliminatedInRound)
		require.NotNil(t, got[1].EliminatedInRound)
		assert.Equal(t, 2, *got[1].EliminatedInRound)
		require.NotNil(t, got[2].EliminatedInRound)
		assert.Equal(t, 1, *got[2].EliminatedInRound)
	})

	t.Run("same round split by losing margin", func(t *testing.T) {
		matches := []*models.Match{
			played(1, 1, 1, 4, aWin, 1, 0),
			played(2, 1, 2, 3, aWin, 3, 0),
			played(3, 2, 1, 2, aWin, 2, 1),
		}
		got := rankKnockout(entrantsN(4), matches)
		assert.Equal(t, []int{1, 2, 4, 3}, rankedIDs(got))
	})
}

func TestRankKingOfCourt(t *testing.T) {
	aWin, bWin := models.OutcomeParticipantAWin, models.OutcomeParticipantBWin
	matches := []*models.Match{
		played(1, 1, 1, 2, bWin, 0, 0),
		played(2, 2, 2, 3, aWin, 0, 0),
		played(3, 3, 2, 4, bWin, 0, 0),
	}
	got := rankKingOfCourt(entrantsN(4), matches)
	assert.Equal(t, []int{4, 2, 1, 3}, rankedIDs(got))
	assert.Equal(t, 2, got[1].Wins)
}

func TestRecomputeRequiresSettledMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.closedTournament(t, tournamentInput(models.FormatKnockout, 4, 0), 4)

	_, err := env.ranking.Recompute(ctx, tour.ID, nil)
	require.ErrorIs(t, err, ErrMatchesStillPending)

	open := env.openTournament(t, tournamentInput(models.FormatLeague, 4, 0))
	_, err = env.ranking.Recompute(ctx, open.ID, nil)
	require.ErrorIs(t, err, ErrTournamentNotReady)
}

func TestRecomputeIsStableAndFrozenAfterCompletion(t *testing.T) {
	env := newTestEnv(t, withoutAutoComplete())
	ctx := context.Background()
	tour := env.closedTournament(t, tournamentInput(models.FormatLeague, 8, 0), 5)
	env.playOut(t, tour.ID, nil)

	first, err := env.ranking.Recompute(ctx, tour.ID, nil)
	require.NoError(t, err)
	second, err := env.ranking.Recompute(ctx, tour.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, rankedIDs(first), rankedIDs(second))
	assert.Equal(t, []int{101, 102, 103, 104, 105}, rankedIDs(first))
	assert.Equal(t, 12, first[0].Points)

	_, err = env.lifecycle.Complete(ctx, tour.ID)
	require.NoError(t, err)
	frozen, err := env.ranking.Standings(ctx, tour.ID, nil)
	require.NoError(t, err)

	again, err := env.ranking.Recompute(ctx, tour.ID, nil)
	require.NoError(t, err)
	require.Len(t, again, len(frozen))
	for i := range frozen {
		assert.Equal(t, frozen[i].ParticipantID, again[i].ParticipantID)
		assert.True(t, frozen[i].ComputedAt.Equal(again[i].ComputedAt))
	}
}

func TestGroupStagePlacementFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := tournamentInput(models.FormatGroupStagePlacement, 8, 0)
	in.Constraints.GroupSize = 4
	tour := env.closedTournament(t, in, 8)

	groupStage := models.StageGroup
	require.Len(t, env.matches(t, tour.ID, &groupStage), 12)

	_, err := env.generation.GeneratePlacement(ctx, tour.ID)
	require.ErrorIs(t, err, ErrMatchesStillPending)

	env.playOut(t, tour.ID, &groupStage)
	assert.Equal(t, models.StatusInProgress, env.tournament(t, tour.ID).Status)

	handle, err := env.generation.GeneratePlacement(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, handle.Status)
	assert.Equal(t, 4, handle.MatchCount)

	group1, err := env.ranking.Standings(ctx, tour.ID, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, []int{101, 104, 105, 108}, rankedIDs(group1))

	placementStage := models.StagePlacement
	env.playOut(t, tour.ID, &placementStage)

	assert.Equal(t, models.StatusCompleted, env.tournament(t, tour.ID).Status)
	overall, err := env.ranking.Standings(ctx, tour.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{101, 102, 104, 103, 105, 106, 108, 107}, rankedIDs(overall))
	for i, st := range overall {
		assert.Equal(t, i+1, st.Rank)
	}
	// tournament seeds survive the tier reseeding
	assert.Equal(t, 4, overall[2].SeedIndex)
}
