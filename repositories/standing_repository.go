package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/tournament-engine/models"
)

const standingInsertColumns = 16

type postgresStandingRepository struct {
	exec SQLExecutor
}

func (r *postgresStandingRepository) Replace(ctx context.Context, tournamentID int, scope models.StandingScope, group *int, standings []*models.Standing) error {
	del := `DELETE FROM standings WHERE tournament_id = $1 AND scope = $2 AND group_number IS NOT DISTINCT FROM $3`
	if _, err := r.exec.ExecContext(ctx, del, tournamentID, scope, group); err != nil {
		return fmt.Errorf("failed to clear standings for tournament %d: %w", tournamentID, err)
	}
	if len(standings) == 0 {
		return nil
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		INSERT INTO standings
			(tournament_id, scope, group_number, participant_id, seed_index, rank, points, games_played,
			 wins, draws, losses, score_for, score_against, score_difference, eliminated_in_round, computed_at)
		VALUES `)
	args := make([]interface{}, 0, len(standings)*standingInsertColumns)
	for i, s := range standings {
		if i > 0 {
			queryBuilder.WriteString(", ")
		}
		queryBuilder.WriteString("(")
		for c := 0; c < standingInsertColumns; c++ {
			if c > 0 {
				queryBuilder.WriteString(", ")
			}
			queryBuilder.WriteString("$")
			queryBuilder.WriteString(strconv.Itoa(i*standingInsertColumns + c + 1))
		}
		queryBuilder.WriteString(")")
		args = append(args,
			tournamentID, scope, group, s.ParticipantID, s.SeedIndex, s.Rank, s.Points, s.GamesPlayed,
			s.Wins, s.Draws, s.Losses, s.ScoreFor, s.ScoreAgainst, s.ScoreDifference, s.EliminatedInRound, s.ComputedAt,
		)
	}
	queryBuilder.WriteString(" RETURNING id")

	rows, err := r.exec.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return fmt.Errorf("failed to insert standings for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()
	for i := 0; rows.Next(); i++ {
		if err := rows.Scan(&standings[i].ID); err != nil {
			return fmt.Errorf("failed to scan standing id: %w", err)
		}
	}
	return rows.Err()
}

func (r *postgresStandingRepository) List(ctx context.Context, tournamentID int, scope models.StandingScope, group *int) ([]*models.Standing, error) {
	query := `
		SELECT id, tournament_id, scope, group_number, participant_id, seed_index, rank, points, games_played,
		       wins, draws, losses, score_for, score_against, score_difference, eliminated_in_round, computed_at
		FROM standings
		WHERE tournament_id = $1 AND scope = $2 AND group_number IS NOT DISTINCT FROM $3
		ORDER BY rank ASC`
	rows, err := r.exec.QueryContext(ctx, query, tournamentID, scope, group)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	out := make([]*models.Standing, 0)
	for rows.Next() {
		s := &models.Standing{}
		if err := rows.Scan(
			&s.ID, &s.TournamentID, &s.Scope, &s.GroupNumber, &s.ParticipantID, &s.SeedIndex, &s.Rank,
			&s.Points, &s.GamesPlayed, &s.Wins, &s.Draws, &s.Losses, &s.ScoreFor, &s.ScoreAgainst,
			&s.ScoreDifference, &s.EliminatedInRound, &s.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during standing rows iteration: %w", err)
	}
	return out, nil
}
