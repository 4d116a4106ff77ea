package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryEnrollDebitsAndAssignsSeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 500))

	_, err := env.ledger.Deposit(ctx, 7, 1200)
	require.NoError(t, err)
	_, err = env.ledger.Deposit(ctx, 8, 500)
	require.NoError(t, err)

	first, err := env.ledger.TryEnroll(ctx, tour.ID, 7, 500)
	require.NoError(t, err)
	second, err := env.ledger.TryEnroll(ctx, tour.ID, 8, 500)
	require.NoError(t, err)

	assert.Equal(t, 1, first.SeedIndex)
	assert.Equal(t, 2, second.SeedIndex)
	assert.Equal(t, models.EnrollmentActive, first.Status)
	assert.Equal(t, int64(700), env.balance(t, 7))
	assert.Equal(t, int64(0), env.balance(t, 8))
	assert.Equal(t, 2, env.tournament(t, tour.ID).EnrolledCount)

	txs, err := env.ledger.Transactions(ctx, 7, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	debit := txs[0]
	assert.Equal(t, models.TxTypeEnrollmentDebit, debit.Type)
	assert.Equal(t, int64(-500), debit.Amount)
	assert.Equal(t, int64(1200), debit.BalanceBefore)
	assert.Equal(t, int64(700), debit.BalanceAfter)
	require.NotNil(t, debit.ReferenceID)
	assert.Equal(t, first.ID, *debit.ReferenceID)
	assert.Equal(t, 2, env.publisher.count(brackets.EventEnrollmentsChanged))
}

func TestTryEnrollRetryReturnsExistingEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 300))
	_, err := env.ledger.Deposit(ctx, 7, 1000)
	require.NoError(t, err)

	first, err := env.ledger.TryEnroll(ctx, tour.ID, 7, 300)
	require.NoError(t, err)
	again, err := env.ledger.TryEnroll(ctx, tour.ID, 7, 300)

	require.ErrorIs(t, err, ErrAlreadyEnrolled)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(700), env.balance(t, 7))
	assert.Equal(t, 1, env.tournament(t, tour.ID).EnrolledCount)
}

func TestTryEnrollRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv, tour *models.Tournament)
		cost    int64
		wantErr error
	}{
		{
			name:    "insufficient funds",
			setup:   func(t *testing.T, env *testEnv, tour *models.Tournament) {},
			cost:    500,
			wantErr: ErrInsufficientFunds,
		},
		{
			name: "cost mismatch",
			setup: func(t *testing.T, env *testEnv, tour *models.Tournament) {
				_, err := env.ledger.Deposit(ctx, 7, 1000)
				require.NoError(t, err)
			},
			cost:    100,
			wantErr: ErrCostMismatch,
		},
		{
			name:    "negative cost",
			setup:   func(t *testing.T, env *testEnv, tour *models.Tournament) {},
			cost:    -1,
			wantErr: ErrValidationFailed,
		},
		{
			name: "tournament not open",
			setup: func(t *testing.T, env *testEnv, tour *models.Tournament) {
				_, err := env.ledger.Deposit(ctx, 7, 1000)
				require.NoError(t, err)
				_, err = env.lifecycle.Cancel(ctx, tour.ID)
				require.NoError(t, err)
			},
			cost:    500,
			wantErr: ErrTournamentNotOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 500))
			tt.setup(t, env, tour)
			before := env.balance(t, 7)

			e, err := env.ledger.TryEnroll(ctx, tour.ID, 7, tt.cost)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, e)
			assert.Equal(t, before, env.balance(t, 7))
			assert.Equal(t, 0, env.tournament(t, tour.ID).EnrolledCount)
		})
	}
}

func TestTryEnrollNotEligible(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 0))
	ledger := NewLedgerService(Deps{Store: env.mem}, EligibilityFunc(func(_ context.Context, _, participantID int) (bool, error) {
		return participantID != 13, nil
	}), nil)

	_, err := ledger.TryEnroll(context.Background(), tour.ID, 13, 0)
	require.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = ledger.TryEnroll(context.Background(), tour.ID, 14, 0)
	require.NoError(t, err)
}

func TestTryEnrollFullTournamentClosesAndGenerates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 4, 0))

	env.enrollPlayers(t, tour, 4)

	closed := env.tournament(t, tour.ID)
	assert.Equal(t, models.StatusInProgress, closed.Status)
	require.NotNil(t, closed.CloseReason)
	assert.Equal(t, models.CloseReasonCapacity, *closed.CloseReason)
	assert.Len(t, env.matches(t, tour.ID, nil), 3)

	_, err := env.ledger.TryEnroll(ctx, tour.ID, 500, 0)
	require.ErrorIs(t, err, ErrTournamentNotOpen)
}

func TestConcurrentDuplicateEnrollDebitsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 500))
	_, err := env.ledger.Deposit(ctx, 7, 500)
	require.NoError(t, err)

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		dup      int
		enrolled = map[int]bool{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := env.ledger.TryEnroll(ctx, tour.ID, 7, 500)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyEnrolled):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
				return
			}
			enrolled[e.ID] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, dup)
	assert.Len(t, enrolled, 1)
	assert.Equal(t, int64(0), env.balance(t, 7))

	active, err := env.mem.Enrollments().ListActive(ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestReleaseRefundsAndCompactsSeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatLeague, 8, 200))
	enrollments := env.enrollPlayers(t, tour, 3)

	require.NoError(t, env.ledger.Release(ctx, enrollments[0].ID))

	assert.Equal(t, int64(200), env.balance(t, enrollments[0].ParticipantID))
	active, err := env.mem.Enrollments().ListActive(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].SeedIndex)
	assert.Equal(t, enrollments[1].ParticipantID, active[0].ParticipantID)
	assert.Equal(t, 2, active[1].SeedIndex)

	reloaded := env.tournament(t, tour.ID)
	assert.Equal(t, 2, reloaded.EnrolledCount)
	assert.Equal(t, 3, reloaded.NextSeed)

	err = env.ledger.Release(ctx, enrollments[0].ID)
	require.ErrorIs(t, err, ErrEnrollmentNotActive)

	// the next arrival continues the compacted sequence
	late := 100 + 50
	_, err = env.ledger.Deposit(ctx, late, 200)
	require.NoError(t, err)
	e, err := env.ledger.TryEnroll(ctx, tour.ID, late, 200)
	require.NoError(t, err)
	assert.Equal(t, 3, e.SeedIndex)
}

func TestReleaseAfterCloseIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatLeague, 8, 200))
	enrollments := env.enrollPlayers(t, tour, 1)
	_, err := env.lifecycle.CloseEnrollment(ctx, tour.ID, models.CloseReasonManual)
	require.NoError(t, err)

	err = env.ledger.Release(ctx, enrollments[0].ID)
	require.ErrorIs(t, err, ErrReleaseNotAllowed)
	assert.Equal(t, int64(0), env.balance(t, enrollments[0].ParticipantID))
}

func TestBalanceNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.openTournament(t, tournamentInput(models.FormatLeague, 8, 300))
	b := env.openTournament(t, tournamentInput(models.FormatLeague, 8, 300))
	_, err := env.ledger.Deposit(ctx, 7, 400)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, tour := range []*models.Tournament{a, b, a, b} {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _ = env.ledger.TryEnroll(ctx, id, 7, 300)
		}(tour.ID)
	}
	wg.Wait()

	assert.Equal(t, int64(100), env.balance(t, 7))

	txs, err := env.ledger.Transactions(ctx, 7, 10)
	require.NoError(t, err)
	for _, tx := range txs {
		assert.GreaterOrEqual(t, tx.BalanceAfter, int64(0))
	}
}

func TestDepositValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.Deposit(context.Background(), 7, 0)
	require.ErrorIs(t, err, ErrValidationFailed)

	w, err := env.ledger.Balance(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)
}
