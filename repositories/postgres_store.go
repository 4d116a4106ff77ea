package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type pgRepositories struct {
	tournaments *postgresTournamentRepository
	enrollments *postgresEnrollmentRepository
	wallets     *postgresWalletRepository
	matches     *postgresMatchRepository
	standings   *postgresStandingRepository
	generations *postgresGenerationRepository
}

func newPGRepositories(exec SQLExecutor) *pgRepositories {
	return &pgRepositories{
		tournaments: &postgresTournamentRepository{exec: exec},
		enrollments: &postgresEnrollmentRepository{exec: exec},
		wallets:     &postgresWalletRepository{exec: exec},
		matches:     &postgresMatchRepository{exec: exec},
		standings:   &postgresStandingRepository{exec: exec},
		generations: &postgresGenerationRepository{exec: exec},
	}
}

func (r *pgRepositories) Tournaments() TournamentRepository { return r.tournaments }
func (r *pgRepositories) Enrollments() EnrollmentRepository { return r.enrollments }
func (r *pgRepositories) Wallets() WalletRepository         { return r.wallets }
func (r *pgRepositories) Matches() MatchRepository          { return r.matches }
func (r *pgRepositories) Standings() StandingRepository     { return r.standings }
func (r *pgRepositories) Generations() GenerationRepository { return r.generations }

type PostgresStore struct {
	*pgRepositories
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pgRepositories: newPGRepositories(db),
		db:             db,
		logger:         logger,
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("%w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(ctx, newPGRepositories(tx))
	return txErr
}
