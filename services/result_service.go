package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

// OutcomeReport is one result submission. Authorized is decided by the
// caller (role check) and is never read from the request body.
type OutcomeReport struct {
	MatchID    int                 `json:"match_id"`
	Outcome    models.MatchOutcome `json:"outcome"`
	ScoreA     *int                `json:"score_a,omitempty"`
	ScoreB     *int                `json:"score_b,omitempty"`
	ReportedBy int                 `json:"reported_by"`
	Authorized bool                `json:"-"`
}

type ResultService interface {
	RecordOutcome(ctx context.Context, report OutcomeReport) (*models.Match, error)
	// SettleForfeits awards every ready match against a forfeited
	// participant to the opponent and returns how many were settled.
	SettleForfeits(ctx context.Context, tournamentID int) (int, error)
	// CheckCompletion completes the tournament when nothing is left to play
	// and auto-completion is on.
	CheckCompletion(ctx context.Context, tournamentID int) error
}

type resultService struct {
	Deps
	autoComplete bool
	onComplete   TournamentHook
}

func NewResultService(deps Deps, autoComplete bool, onComplete TournamentHook) ResultService {
	return &resultService{
		Deps:         deps.withDefaults(),
		autoComplete: autoComplete,
		onComplete:   onComplete,
	}
}

func validateReport(r OutcomeReport) error {
	if r.MatchID <= 0 {
		return fmt.Errorf("%w: match id must be positive", ErrValidationFailed)
	}
	if !r.Outcome.IsTerminal() {
		return ErrInvalidOutcome
	}
	if (r.ScoreA == nil) != (r.ScoreB == nil) {
		return fmt.Errorf("%w: both scores or none must be given", ErrScoreMismatch)
	}
	if r.ScoreA == nil {
		return nil
	}
	a, b := *r.ScoreA, *r.ScoreB
	if a < 0 || b < 0 {
		return fmt.Errorf("%w: scores cannot be negative", ErrValidationFailed)
	}
	switch {
	case r.Outcome == models.OutcomeParticipantAWin && a <= b,
		r.Outcome == models.OutcomeParticipantBWin && b <= a,
		r.Outcome == models.OutcomeDraw && a != b:
		return fmt.Errorf("%w: %d-%d is not a %s", ErrScoreMismatch, a, b, r.Outcome)
	}
	return nil
}

func (s *resultService) RecordOutcome(ctx context.Context, report OutcomeReport) (*models.Match, error) {
	if err := validateReport(report); err != nil {
		return nil, err
	}
	if !report.Authorized {
		return nil, ErrNotAuthorized
	}

	settled, err := s.settle(ctx, report, false)
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "match outcome recorded",
		slog.Int("match_id", settled.ID),
		slog.Int("tournament_id", settled.TournamentID),
		slog.String("outcome", string(settled.Outcome)),
		slog.Int("reported_by", report.ReportedBy))
	if err := s.CheckCompletion(ctx, settled.TournamentID); err != nil {
		s.Logger.ErrorContext(ctx, "completion check failed",
			slog.Int("tournament_id", settled.TournamentID), slog.Any("error", err))
	}
	return settled, nil
}

// settle writes the outcome and moves the winner and loser into the slots
// their match feeds. system settlements skip the draw rule.
func (s *resultService) settle(ctx context.Context, report OutcomeReport, system bool) (*models.Match, error) {
	current, err := s.Store.Matches().GetByID(ctx, report.MatchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	var settled *models.Match
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		t, err := tx.Tournaments().GetForUpdate(ctx, current.TournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		m, err := tx.Matches().GetForUpdate(ctx, report.MatchID)
		if err != nil {
			return handleRepositoryError(err)
		}

		if t.Status != models.StatusInProgress {
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotReady, t.ID, t.Status)
		}
		if m.Outcome != models.OutcomeUnresolved {
			return ErrAlreadySettled
		}
		if !m.Ready() {
			return ErrMatchNotReady
		}
		if report.Outcome == models.OutcomeDraw && !system && !t.Format.AllowsDraw(m.Stage) {
			return ErrDrawNotAllowed
		}

		now := time.Now().UTC()
		m.Outcome = report.Outcome
		m.ScoreA, m.ScoreB = report.ScoreA, report.ScoreB
		m.SettledAt = &now
		if report.ReportedBy > 0 {
			m.ReportedBy = intPtr(report.ReportedBy)
		}
		var winnerSeed, loserSeed *int
		switch report.Outcome {
		case models.OutcomeParticipantAWin:
			m.WinnerID, m.LoserID = m.ParticipantA, m.ParticipantB
			winnerSeed, loserSeed = m.SeedA, m.SeedB
		case models.OutcomeParticipantBWin:
			m.WinnerID, m.LoserID = m.ParticipantB, m.ParticipantA
			winnerSeed, loserSeed = m.SeedB, m.SeedA
		}
		if err := tx.Matches().Settle(ctx, m); err != nil {
			return handleRepositoryError(err)
		}

		if m.WinnerID != nil && m.WinnerToMatch != nil && m.WinnerToSlot != nil {
			if err := tx.Matches().SetSlot(ctx, *m.WinnerToMatch, *m.WinnerToSlot, *m.WinnerID, winnerSeed); err != nil {
				return fmt.Errorf("failed to advance winner of match %d: %w", m.ID, err)
			}
		}
		if m.LoserID != nil && m.LoserToMatch != nil && m.LoserToSlot != nil {
			if err := tx.Matches().SetSlot(ctx, *m.LoserToMatch, *m.LoserToSlot, *m.LoserID, loserSeed); err != nil {
				return fmt.Errorf("failed to move loser of match %d: %w", m.ID, err)
			}
		}
		settled = m
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.Metrics.OutcomeRecorded(string(settled.Outcome))
	s.Audit.Record(ctx, AuditFact{
		Action:        AuditOutcomeRecorded,
		TournamentID:  settled.TournamentID,
		MatchID:       settled.ID,
		ParticipantID: report.ReportedBy,
		Detail:        string(settled.Outcome),
	})
	s.Publisher.Publish(settled.TournamentID, brackets.EventMatchUpdated, settled)
	return settled, nil
}

func (s *resultService) SettleForfeits(ctx context.Context, tournamentID int) (int, error) {
	enrollments, err := s.Store.Enrollments().ListActive(ctx, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to list enrollments: %w", err)
	}
	forfeited := make(map[int]bool)
	for _, e := range enrollments {
		if e.Forfeit {
			forfeited[e.ParticipantID] = true
		}
	}
	if len(forfeited) == 0 {
		return 0, nil
	}

	settledCount := 0
	for {
		matches, err := s.Store.Matches().ListByTournament(ctx, tournamentID, nil)
		if err != nil {
			return settledCount, fmt.Errorf("failed to list matches: %w", err)
		}
		progressed := false
		for _, m := range matches {
			if m.Outcome != models.OutcomeUnresolved || !m.Ready() {
				continue
			}
			aOut, bOut := forfeited[*m.ParticipantA], forfeited[*m.ParticipantB]
			if !aOut && !bOut {
				continue
			}
			outcome := models.OutcomeParticipantAWin
			if aOut && !bOut {
				outcome = models.OutcomeParticipantBWin
			}
			_, err := s.settle(ctx, OutcomeReport{MatchID: m.ID, Outcome: outcome}, true)
			if errors.Is(err, ErrAlreadySettled) {
				continue
			}
			if err != nil {
				return settledCount, fmt.Errorf("failed to settle forfeit in match %d: %w", m.ID, err)
			}
			settledCount++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	if settledCount > 0 {
		s.Logger.InfoContext(ctx, "forfeits settled",
			slog.Int("tournament_id", tournamentID), slog.Int("matches", settledCount))
	}
	return settledCount, nil
}

func (s *resultService) CheckCompletion(ctx context.Context, tournamentID int) error {
	if !s.autoComplete || s.onComplete == nil {
		return nil
	}
	t, err := s.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if t.Status != models.StatusInProgress {
		return nil
	}
	pending, err := s.Store.Matches().CountUnresolved(ctx, tournamentID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}
	if t.Format == models.FormatGroupStagePlacement {
		// the placement wave is an explicit step
		if _, err := s.Store.Generations().GetBatch(ctx, tournamentID, models.StagePlacement); err != nil {
			return nil
		}
	}

	err = s.onComplete(ctx, tournamentID)
	if errors.Is(err, ErrInvalidTransition) {
		return nil
	}
	return err
}
