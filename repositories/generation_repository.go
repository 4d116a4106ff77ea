package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

const jobColumns = `id, tournament_id, stage, path, status, attempts, match_count, error, created_at, updated_at`

type postgresGenerationRepository struct {
	exec SQLExecutor
}

func scanJob(row rowScanner) (*models.GenerationJob, error) {
	j := &models.GenerationJob{}
	err := row.Scan(&j.ID, &j.TournamentID, &j.Stage, &j.Path, &j.Status, &j.Attempts,
		&j.MatchCount, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *postgresGenerationRepository) CreateBatch(ctx context.Context, b *models.GenerationBatch) error {
	query := `
		INSERT INTO generation_batches (tournament_id, stage, match_count)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	err := r.exec.QueryRowContext(ctx, query, b.TournamentID, b.Stage, b.MatchCount).Scan(&b.CreatedAt)
	return handlePQError(err)
}

func (r *postgresGenerationRepository) GetBatch(ctx context.Context, tournamentID int, stage models.MatchStage) (*models.GenerationBatch, error) {
	query := `
		SELECT tournament_id, stage, match_count, created_at
		FROM generation_batches
		WHERE tournament_id = $1 AND stage = $2`
	b := &models.GenerationBatch{}
	err := r.exec.QueryRowContext(ctx, query, tournamentID, stage).Scan(&b.TournamentID, &b.Stage, &b.MatchCount, &b.CreatedAt)
	if err != nil {
		return nil, notFound(err, ErrBatchNotFound)
	}
	return b, nil
}

func (r *postgresGenerationRepository) CreateJob(ctx context.Context, j *models.GenerationJob) error {
	query := `
		INSERT INTO generation_jobs (id, tournament_id, stage, path, status, attempts, match_count, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err := r.exec.QueryRowContext(ctx, query,
		j.ID, j.TournamentID, j.Stage, j.Path, j.Status, j.Attempts, j.MatchCount, j.Error,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	return handlePQError(err)
}

func (r *postgresGenerationRepository) GetJob(ctx context.Context, id string) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`
	j, err := scanJob(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return j, nil
}

func (r *postgresGenerationRepository) FindPendingJob(ctx context.Context, tournamentID int, stage models.MatchStage) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE tournament_id = $1 AND stage = $2 AND status = $3`
	j, err := scanJob(r.exec.QueryRowContext(ctx, query, tournamentID, stage, models.JobPending))
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	return j, nil
}

func (r *postgresGenerationRepository) UpdateJob(ctx context.Context, j *models.GenerationJob) error {
	query := `
		UPDATE generation_jobs
		SET status = $1, attempts = $2, match_count = $3, error = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`
	err := r.exec.QueryRowContext(ctx, query, j.Status, j.Attempts, j.MatchCount, j.Error, j.ID).Scan(&j.UpdatedAt)
	if err != nil {
		return notFound(handlePQError(err), ErrJobNotFound)
	}
	return nil
}

func (r *postgresGenerationRepository) ListStalePending(ctx context.Context, updatedBefore time.Time) ([]*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE status = $1 AND path = $2 AND updated_at < $3
		ORDER BY created_at ASC`
	rows, err := r.exec.QueryContext(ctx, query, models.JobPending, models.PathAsync, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale generation jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.GenerationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation job row: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
