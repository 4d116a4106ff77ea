package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

const tournamentColumns = `
	id, name, format, participant_type, organizer_id, instructor_id, min_participants, max_participants,
	entry_cost, enrollment_deadline, match_duration, group_size, legs, third_place_match,
	king_of_court_rounds, challengers_per_round, randomize_seeding, random_seed, status,
	enrolled_count, next_seed, close_reason, standings_url, created_at, updated_at`

type postgresTournamentRepository struct {
	exec SQLExecutor
}

func scanTournament(row rowScanner) (*models.Tournament, error) {
	t := &models.Tournament{}
	c := &t.Constraints
	err := row.Scan(
		&t.ID, &t.Name, &t.Format, &t.ParticipantType, &t.OrganizerID, &t.InstructorID,
		&t.MinParticipants, &t.MaxParticipants, &t.EntryCost, &t.EnrollmentDeadline, &t.MatchDuration,
		&c.GroupSize, &c.Legs, &c.ThirdPlaceMatch, &c.KingOfCourtRounds, &c.ChallengersPerRound,
		&c.RandomizeSeeding, &c.RandomSeed, &t.Status, &t.EnrolledCount, &t.NextSeed,
		&t.CloseReason, &t.StandingsURL, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, format, participant_type, organizer_id, instructor_id, min_participants, max_participants,
			 entry_cost, enrollment_deadline, match_duration, group_size, legs, third_place_match,
			 king_of_court_rounds, challengers_per_round, randomize_seeding, random_seed, status,
			 enrolled_count, next_seed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, created_at, updated_at`

	c := t.Constraints
	err := r.exec.QueryRowContext(ctx, query,
		t.Name, t.Format, t.ParticipantType, t.OrganizerID, t.InstructorID, t.MinParticipants, t.MaxParticipants,
		t.EntryCost, t.EnrollmentDeadline, t.MatchDuration, c.GroupSize, c.Legs, c.ThirdPlaceMatch,
		c.KingOfCourtRounds, c.ChallengersPerRound, c.RandomizeSeeding, c.RandomSeed, t.Status,
		t.EnrolledCount, t.NextSeed,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", handlePQError(err))
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	t, err := scanTournament(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrTournamentNotFound)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	t, err := scanTournament(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrTournamentNotFound)
	}
	return t, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments
		SET status = $1, instructor_id = $2, enrolled_count = $3, next_seed = $4,
		    close_reason = $5, standings_url = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`
	err := r.exec.QueryRowContext(ctx, query,
		t.Status, t.InstructorID, t.EnrolledCount, t.NextSeed, t.CloseReason, t.StandingsURL, t.ID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return notFound(handlePQError(err), ErrTournamentNotFound)
	}
	return nil
}

func (r *postgresTournamentRepository) ListDueForClose(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE status = $1 AND enrollment_deadline <= $2
		ORDER BY enrollment_deadline ASC, id ASC`
	rows, err := r.exec.QueryContext(ctx, query, models.StatusReadyForEnrollment, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments due for close: %w", err)
	}
	defer rows.Close()

	var out []*models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return out, nil
}
