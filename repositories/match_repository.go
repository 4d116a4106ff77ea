package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/tournament-engine/models"
)

const matchColumns = `
	id, tournament_id, stage, group_number, round, order_in_round, match_number, bracket_uid,
	participant_a, participant_b, seed_a, seed_b, winner_to_match, winner_to_slot,
	loser_to_match, loser_to_slot, outcome, score_a, score_b, winner_id, loser_id,
	reported_by, settled_at, created_at`

type postgresMatchRepository struct {
	exec SQLExecutor
}

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Stage, &m.GroupNumber, &m.Round, &m.OrderInRound, &m.MatchNumber, &m.BracketUID,
		&m.ParticipantA, &m.ParticipantB, &m.SeedA, &m.SeedB, &m.WinnerToMatch, &m.WinnerToSlot,
		&m.LoserToMatch, &m.LoserToSlot, &m.Outcome, &m.ScoreA, &m.ScoreB, &m.WinnerID, &m.LoserID,
		&m.ReportedBy, &m.SettledAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, stage, group_number, round, order_in_round, match_number, bracket_uid,
			 participant_a, participant_b, seed_a, seed_b, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.exec.QueryRowContext(ctx, query,
		m.TournamentID, m.Stage, m.GroupNumber, m.Round, m.OrderInRound, m.MatchNumber, m.BracketUID,
		m.ParticipantA, m.ParticipantB, m.SeedA, m.SeedB, m.Outcome,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match %s: %w", m.BracketUID, handlePQError(err))
	}
	return nil
}

func (r *postgresMatchRepository) UpdateNextMatchInfo(ctx context.Context, matchID int, winnerTo, winnerSlot, loserTo, loserSlot *int) error {
	query := `
		UPDATE matches
		SET winner_to_match = $1, winner_to_slot = $2, loser_to_match = $3, loser_to_slot = $4
		WHERE id = $5`
	result, err := r.exec.ExecContext(ctx, query, winnerTo, winnerSlot, loserTo, loserSlot, matchID)
	if err != nil {
		return fmt.Errorf("UpdateNextMatchInfo: failed to execute query for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrMatchNotFound)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrMatchNotFound)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, stage *models.MatchStage) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if stage != nil {
		queryBuilder.WriteString(" AND stage = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *stage)
	}
	queryBuilder.WriteString(" ORDER BY id ASC")

	rows, err := r.exec.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Settle(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches
		SET outcome = $1, score_a = $2, score_b = $3, winner_id = $4, loser_id = $5,
		    reported_by = $6, settled_at = $7
		WHERE id = $8 AND outcome = $9`
	result, err := r.exec.ExecContext(ctx, query,
		m.Outcome, m.ScoreA, m.ScoreB, m.WinnerID, m.LoserID, m.ReportedBy, m.SettledAt,
		m.ID, models.OutcomeUnresolved,
	)
	if err != nil {
		return fmt.Errorf("failed to settle match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchAlreadySettled)
}

func (r *postgresMatchRepository) SetSlot(ctx context.Context, matchID, slot, participantID int, seed *int) error {
	var query string
	switch slot {
	case models.SlotA:
		query = `UPDATE matches SET participant_a = $1, seed_a = $2 WHERE id = $3 AND outcome = $4`
	case models.SlotB:
		query = `UPDATE matches SET participant_b = $1, seed_b = $2 WHERE id = $3 AND outcome = $4`
	default:
		return fmt.Errorf("invalid slot %d for match %d", slot, matchID)
	}
	result, err := r.exec.ExecContext(ctx, query, participantID, seed, matchID, models.OutcomeUnresolved)
	if err != nil {
		return fmt.Errorf("failed to fill slot %d of match %d: %w", slot, matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountUnresolved(ctx context.Context, tournamentID int) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND outcome = $2`
	if err := r.exec.QueryRowContext(ctx, query, tournamentID, models.OutcomeUnresolved).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unresolved matches: %w", err)
	}
	return n, nil
}
