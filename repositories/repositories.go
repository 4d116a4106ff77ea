package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrEnrollmentConflict  = errors.New("participant already holds an active enrollment for this tournament")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrNegativeBalance     = errors.New("wallet balance cannot go negative")
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchAlreadySettled = errors.New("match outcome already recorded")
	ErrBatchExists         = errors.New("generation batch already exists for this stage")
	ErrBatchNotFound       = errors.New("generation batch not found")
	ErrJobNotFound         = errors.New("generation job not found")
	ErrJobConflict         = errors.New("a pending generation job already exists for this stage")
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type TournamentRepository interface {
	Create(ctx context.Context, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int) (*models.Tournament, error)
	Update(ctx context.Context, t *models.Tournament) error
	ListDueForClose(ctx context.Context, now time.Time) ([]*models.Tournament, error)
}

type EnrollmentRepository interface {
	Create(ctx context.Context, e *models.Enrollment) error
	GetByID(ctx context.Context, id int) (*models.Enrollment, error)
	GetForUpdate(ctx context.Context, id int) (*models.Enrollment, error)
	GetActive(ctx context.Context, tournamentID, participantID int) (*models.Enrollment, error)
	// ListActive returns active enrollments ordered by seed.
	ListActive(ctx context.Context, tournamentID int) ([]*models.Enrollment, error)
	Update(ctx context.Context, e *models.Enrollment) error
	// CompactSeeds moves every active seed above afterSeed down by one.
	CompactSeeds(ctx context.Context, tournamentID, afterSeed int) error
}

type WalletRepository interface {
	// Ensure creates an empty wallet if none exists.
	Ensure(ctx context.Context, ownerID int) error
	Get(ctx context.Context, ownerID int) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, ownerID int) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, ownerID int, balance int64) error
	CreateTransaction(ctx context.Context, tx *models.CreditTransaction) error
	ListTransactions(ctx context.Context, ownerID, limit int) ([]*models.CreditTransaction, error)
}

type MatchRepository interface {
	Create(ctx context.Context, m *models.Match) error
	UpdateNextMatchInfo(ctx context.Context, matchID int, winnerTo, winnerSlot, loserTo, loserSlot *int) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetForUpdate(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, stage *models.MatchStage) ([]*models.Match, error)
	// Settle writes the outcome only while the match is unresolved.
	Settle(ctx context.Context, m *models.Match) error
	SetSlot(ctx context.Context, matchID, slot, participantID int, seed *int) error
	CountUnresolved(ctx context.Context, tournamentID int) (int, error)
}

type StandingRepository interface {
	// Replace swaps the whole standing set of one scope.
	Replace(ctx context.Context, tournamentID int, scope models.StandingScope, group *int, standings []*models.Standing) error
	List(ctx context.Context, tournamentID int, scope models.StandingScope, group *int) ([]*models.Standing, error)
}

type GenerationRepository interface {
	CreateBatch(ctx context.Context, b *models.GenerationBatch) error
	GetBatch(ctx context.Context, tournamentID int, stage models.MatchStage) (*models.GenerationBatch, error)
	CreateJob(ctx context.Context, j *models.GenerationJob) error
	GetJob(ctx context.Context, id string) (*models.GenerationJob, error)
	FindPendingJob(ctx context.Context, tournamentID int, stage models.MatchStage) (*models.GenerationJob, error)
	UpdateJob(ctx context.Context, j *models.GenerationJob) error
	ListStalePending(ctx context.Context, updatedBefore time.Time) ([]*models.GenerationJob, error)
}

// Repositories groups every repository bound to one executor.
type Repositories interface {
	Tournaments() TournamentRepository
	Enrollments() EnrollmentRepository
	Wallets() WalletRepository
	Matches() MatchRepository
	Standings() StandingRepository
	Generations() GenerationRepository
}

// Store adds transactions on top of Repositories. fn runs with repositories
// bound to the transaction; returning an error rolls everything back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
