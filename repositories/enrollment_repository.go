package repositories

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

const enrollmentColumns = `id, tournament_id, participant_id, seed_index, cost, status, forfeit, enrolled_at, released_at`

type postgresEnrollmentRepository struct {
	exec SQLExecutor
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	err := row.Scan(&e.ID, &e.TournamentID, &e.ParticipantID, &e.SeedIndex, &e.Cost,
		&e.Status, &e.Forfeit, &e.EnrolledAt, &e.ReleasedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *postgresEnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (tournament_id, participant_id, seed_index, cost, status, forfeit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, enrolled_at`
	err := r.exec.QueryRowContext(ctx, query,
		e.TournamentID, e.ParticipantID, e.SeedIndex, e.Cost, e.Status, e.Forfeit,
	).Scan(&e.ID, &e.EnrolledAt)
	return handlePQError(err)
}

func (r *postgresEnrollmentRepository) GetByID(ctx context.Context, id int) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	e, err := scanEnrollment(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrEnrollmentNotFound)
	}
	return e, nil
}

func (r *postgresEnrollmentRepository) GetForUpdate(ctx context.Context, id int) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	e, err := scanEnrollment(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrEnrollmentNotFound)
	}
	return e, nil
}

func (r *postgresEnrollmentRepository) GetActive(ctx context.Context, tournamentID, participantID int) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE tournament_id = $1 AND participant_id = $2 AND status = $3`
	e, err := scanEnrollment(r.exec.QueryRowContext(ctx, query, tournamentID, participantID, models.EnrollmentActive))
	if err != nil {
		return nil, notFound(err, ErrEnrollmentNotFound)
	}
	return e, nil
}

func (r *postgresEnrollmentRepository) ListActive(ctx context.Context, tournamentID int) ([]*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE tournament_id = $1 AND status = $2
		ORDER BY seed_index ASC`
	rows, err := r.exec.QueryContext(ctx, query, tournamentID, models.EnrollmentActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	out := make([]*models.Enrollment, 0)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during enrollment rows iteration: %w", err)
	}
	return out, nil
}

func (r *postgresEnrollmentRepository) Update(ctx context.Context, e *models.Enrollment) error {
	query := `
		UPDATE enrollments
		SET seed_index = $1, status = $2, forfeit = $3, released_at = $4
		WHERE id = $5`
	result, err := r.exec.ExecContext(ctx, query, e.SeedIndex, e.Status, e.Forfeit, e.ReleasedAt, e.ID)
	if err != nil {
		return handlePQError(err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

func (r *postgresEnrollmentRepository) CompactSeeds(ctx context.Context, tournamentID, afterSeed int) error {
	query := `
		UPDATE enrollments
		SET seed_index = seed_index - 1
		WHERE tournament_id = $1 AND status = $2 AND seed_index > $3`
	if _, err := r.exec.ExecContext(ctx, query, tournamentID, models.EnrollmentActive, afterSeed); err != nil {
		return fmt.Errorf("failed to compact seeds for tournament %d: %w", tournamentID, err)
	}
	return nil
}
