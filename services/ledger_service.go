package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
)

const (
	defaultTransactionsLimit = 50
	maxTransactionsLimit     = 500
)

type LedgerService interface {
	// TryEnroll reserves a place and debits the entry cost. A repeated call
	// for an already enrolled participant returns the existing enrollment
	// together with ErrAlreadyEnrolled.
	TryEnroll(ctx context.Context, tournamentID, participantID int, cost int64) (*models.Enrollment, error)
	Release(ctx context.Context, enrollmentID int) error
	Enrollment(ctx context.Context, enrollmentID int) (*models.Enrollment, error)
	Deposit(ctx context.Context, ownerID int, amount int64) (*models.Wallet, error)
	Balance(ctx context.Context, ownerID int) (*models.Wallet, error)
	Transactions(ctx context.Context, ownerID, limit int) ([]*models.CreditTransaction, error)
}

type ledgerService struct {
	Deps
	eligibility EligibilityChecker
	onClosed    TournamentHook
}

// NewLedgerService wires the ledger. onClosed runs after a commit that
// closed enrollment by reaching capacity; it may be nil.
func NewLedgerService(deps Deps, eligibility EligibilityChecker, onClosed TournamentHook) LedgerService {
	if eligibility == nil {
		eligibility = AllowAll
	}
	return &ledgerService{
		Deps:        deps.withDefaults(),
		eligibility: eligibility,
		onClosed:    onClosed,
	}
}

func (s *ledgerService) TryEnroll(ctx context.Context, tournamentID, participantID int, cost int64) (enrollment *models.Enrollment, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = CodeOf(err)
		}
		s.Metrics.EnrollmentAttempt(result)
	}()

	if tournamentID <= 0 || participantID <= 0 {
		return nil, fmt.Errorf("%w: tournament and participant ids must be positive", ErrValidationFailed)
	}
	if cost < 0 {
		return nil, fmt.Errorf("%w: cost cannot be negative", ErrValidationFailed)
	}

	eligible, err := s.eligibility.IsEligible(ctx, tournamentID, participantID)
	if err != nil {
		return nil, fmt.Errorf("eligibility check failed for participant %d: %w", participantID, err)
	}
	if !eligible {
		return nil, ErrNotEligible
	}

	var (
		existing *models.Enrollment
		closed   bool
	)
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		if err := tx.Wallets().Ensure(ctx, participantID); err != nil {
			return err
		}
		wallet, err := tx.Wallets().GetForUpdate(ctx, participantID)
		if err != nil {
			return err
		}
		tournament, err := tx.Tournaments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}

		active, err := tx.Enrollments().GetActive(ctx, tournamentID, participantID)
		switch {
		case err == nil:
			existing = active
			return ErrAlreadyEnrolled
		case !errors.Is(err, repositories.ErrEnrollmentNotFound):
			return err
		}

		if tournament.Status != models.StatusReadyForEnrollment {
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotOpen, tournamentID, tournament.Status)
		}
		if tournament.EnrolledCount >= tournament.MaxParticipants {
			return ErrTournamentFull
		}
		if cost != tournament.EntryCost {
			return fmt.Errorf("%w: expected %d, got %d", ErrCostMismatch, tournament.EntryCost, cost)
		}
		if wallet.Balance < cost {
			return ErrInsufficientFunds
		}

		e := &models.Enrollment{
			TournamentID:  tournamentID,
			ParticipantID: participantID,
			SeedIndex:     tournament.NextSeed,
			Cost:          cost,
			Status:        models.EnrollmentActive,
		}
		if err := tx.Enrollments().Create(ctx, e); err != nil {
			return err
		}
		if cost > 0 {
			if _, err := applyBalanceChange(ctx, tx, participantID, -cost, models.TxTypeEnrollmentDebit, &e.ID); err != nil {
				return err
			}
		}

		tournament.EnrolledCount++
		tournament.NextSeed++
		if tournament.EnrolledCount >= tournament.MaxParticipants {
			reason := models.CloseReasonCapacity
			tournament.Status = models.StatusEnrollmentClosed
			tournament.CloseReason = &reason
			closed = true
		}
		if err := tx.Tournaments().Update(ctx, tournament); err != nil {
			return fmt.Errorf("failed to update tournament counters: %w", err)
		}
		enrollment = e
		return nil
	})
	if errors.Is(err, ErrAlreadyEnrolled) {
		return existing, ErrAlreadyEnrolled
	}
	if errors.Is(err, repositories.ErrEnrollmentConflict) {
		// lost a race against a concurrent identical request
		active, getErr := s.Store.Enrollments().GetActive(ctx, tournamentID, participantID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to re-read enrollment after conflict: %w", getErr)
		}
		return active, ErrAlreadyEnrolled
	}
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.Logger.InfoContext(ctx, "participant enrolled",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participant_id", participantID),
		slog.Int("seed", enrollment.SeedIndex),
		slog.Int64("cost", cost))
	s.Metrics.CreditsMoved(string(models.TxTypeEnrollmentDebit), cost)
	s.Audit.Record(ctx, AuditFact{
		Action:        AuditEnrolled,
		TournamentID:  tournamentID,
		ParticipantID: participantID,
		EnrollmentID:  enrollment.ID,
		Amount:        cost,
	})
	s.Publisher.Publish(tournamentID, brackets.EventEnrollmentsChanged, enrollment)

	if closed {
		s.Publisher.Publish(tournamentID, brackets.EventTournamentStatus, map[string]interface{}{
			"status": models.StatusEnrollmentClosed,
			"reason": models.CloseReasonCapacity,
		})
		if s.onClosed != nil {
			if hookErr := s.onClosed(ctx, tournamentID); hookErr != nil {
				s.Logger.ErrorContext(ctx, "enrollment closed hook failed",
					slog.Int("tournament_id", tournamentID), slog.Any("error", hookErr))
			}
		}
	}
	return enrollment, nil
}

func (s *ledgerService) Enrollment(ctx context.Context, enrollmentID int) (*models.Enrollment, error) {
	e, err := s.Store.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return e, nil
}

func (s *ledgerService) Release(ctx context.Context, enrollmentID int) error {
	current, err := s.Store.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		return handleRepositoryError(err)
	}

	var refunded int64
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		if err := tx.Wallets().Ensure(ctx, current.ParticipantID); err != nil {
			return err
		}
		if _, err := tx.Wallets().GetForUpdate(ctx, current.ParticipantID); err != nil {
			return err
		}
		tournament, err := tx.Tournaments().GetForUpdate(ctx, current.TournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		e, err := tx.Enrollments().GetForUpdate(ctx, enrollmentID)
		if err != nil {
			return handleRepositoryError(err)
		}

		if e.Status != models.EnrollmentActive {
			return ErrEnrollmentNotActive
		}
		if tournament.Status != models.StatusReadyForEnrollment {
			return fmt.Errorf("%w: tournament %d is %s", ErrReleaseNotAllowed, tournament.ID, tournament.Status)
		}

		if err := releaseEnrollmentInTx(ctx, tx, e); err != nil {
			return err
		}
		if err := tx.Enrollments().CompactSeeds(ctx, tournament.ID, e.SeedIndex); err != nil {
			return fmt.Errorf("failed to compact seeds: %w", err)
		}

		tournament.EnrolledCount--
		tournament.NextSeed--
		if err := tx.Tournaments().Update(ctx, tournament); err != nil {
			return fmt.Errorf("failed to update tournament counters: %w", err)
		}
		refunded = e.Cost
		return nil
	})
	if err != nil {
		return handleRepositoryError(err)
	}

	s.Logger.InfoContext(ctx, "enrollment released",
		slog.Int("enrollment_id", enrollmentID),
		slog.Int("tournament_id", current.TournamentID),
		slog.Int64("refunded", refunded))
	s.Metrics.CreditsMoved(string(models.TxTypeEnrollmentRefund), refunded)
	s.Audit.Record(ctx, AuditFact{
		Action:        AuditReleased,
		TournamentID:  current.TournamentID,
		ParticipantID: current.ParticipantID,
		EnrollmentID:  enrollmentID,
		Amount:        refunded,
	})
	s.Publisher.Publish(current.TournamentID, brackets.EventEnrollmentsChanged, map[string]int{"released_enrollment_id": enrollmentID})
	return nil
}

func (s *ledgerService) Deposit(ctx context.Context, ownerID int, amount int64) (*models.Wallet, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: owner id must be positive", ErrValidationFailed)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrValidationFailed)
	}

	var wallet *models.Wallet
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		if err := tx.Wallets().Ensure(ctx, ownerID); err != nil {
			return err
		}
		if _, err := applyBalanceChange(ctx, tx, ownerID, amount, models.TxTypeDeposit, nil); err != nil {
			return err
		}
		w, err := tx.Wallets().Get(ctx, ownerID)
		if err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.Metrics.CreditsMoved(string(models.TxTypeDeposit), amount)
	s.Audit.Record(ctx, AuditFact{Action: AuditDeposit, ParticipantID: ownerID, Amount: amount})
	return wallet, nil
}

func (s *ledgerService) Balance(ctx context.Context, ownerID int) (*models.Wallet, error) {
	w, err := s.Store.Wallets().Get(ctx, ownerID)
	if errors.Is(err, repositories.ErrWalletNotFound) {
		return &models.Wallet{OwnerID: ownerID}, nil
	}
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return w, nil
}

func (s *ledgerService) Transactions(ctx context.Context, ownerID, limit int) ([]*models.CreditTransaction, error) {
	if limit <= 0 {
		limit = defaultTransactionsLimit
	}
	if limit > maxTransactionsLimit {
		limit = maxTransactionsLimit
	}
	txs, err := s.Store.Wallets().ListTransactions(ctx, ownerID, limit)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return txs, nil
}

// applyBalanceChange moves a wallet balance by delta and writes the audit
// row. The wallet row must already exist.
func applyBalanceChange(ctx context.Context, tx repositories.Repositories, ownerID int, delta int64, txType models.CreditTransactionType, referenceID *int) (*models.CreditTransaction, error) {
	wallet, err := tx.Wallets().GetForUpdate(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet %d: %w", ownerID, err)
	}

	balanceBefore := wallet.Balance
	balanceAfter := balanceBefore + delta
	if balanceAfter < 0 {
		return nil, ErrInsufficientFunds
	}
	if err := tx.Wallets().UpdateBalance(ctx, ownerID, balanceAfter); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	record := &models.CreditTransaction{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Amount:        delta,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Type:          txType,
		ReferenceID:   referenceID,
	}
	if err := tx.Wallets().CreateTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create transaction record: %w", err)
	}
	return record, nil
}

// releaseEnrollmentInTx refunds the recorded cost and marks the enrollment
// released. Seeds and tournament counters are left to the caller.
func releaseEnrollmentInTx(ctx context.Context, tx repositories.Repositories, e *models.Enrollment) error {
	if e.Cost > 0 {
		if _, err := applyBalanceChange(ctx, tx, e.ParticipantID, e.Cost, models.TxTypeEnrollmentRefund, &e.ID); err != nil {
			return err
		}
	}
	now := time.Now().UTC()
	e.Status = models.EnrollmentReleased
	e.ReleasedAt = &now
	if err := tx.Enrollments().Update(ctx, e); err != nil {
		return fmt.Errorf("failed to release enrollment %d: %w", e.ID, err)
	}
	return nil
}

// lockWalletsInTx locks the wallets of every active enrollment in owner id
// order. Callers that go on to lock the tournament keep the same order as
// TryEnroll.
func lockWalletsInTx(ctx context.Context, tx repositories.Repositories, enrollments []*models.Enrollment) error {
	owners := make([]int, 0, len(enrollments))
	for _, e := range enrollments {
		owners = append(owners, e.ParticipantID)
	}
	sort.Ints(owners)
	for _, owner := range owners {
		if err := tx.Wallets().Ensure(ctx, owner); err != nil {
			return err
		}
		if _, err := tx.Wallets().GetForUpdate(ctx, owner); err != nil {
			return err
		}
	}
	return nil
}

// refundAllInTx releases every active enrollment of a tournament and
// returns the total refunded. The tournament row must be locked.
func refundAllInTx(ctx context.Context, tx repositories.Repositories, tournament *models.Tournament) (int64, error) {
	active, err := tx.Enrollments().ListActive(ctx, tournament.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list active enrollments: %w", err)
	}
	var total int64
	for _, e := range active {
		if err := tx.Wallets().Ensure(ctx, e.ParticipantID); err != nil {
			return 0, err
		}
		if err := releaseEnrollmentInTx(ctx, tx, e); err != nil {
			return 0, err
		}
		total += e.Cost
	}
	tournament.EnrolledCount = 0
	tournament.NextSeed = 1
	return total, nil
}
