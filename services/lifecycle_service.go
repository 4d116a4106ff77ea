package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

const (
	MaxParticipantsLimit = 1024
	maxNameLength        = 255
)

type CreateTournamentInput struct {
	Name               string                       `json:"name"`
	Format             models.BracketFormat         `json:"format"`
	ParticipantType    models.FormatParticipantType `json:"participant_type"`
	OrganizerID        int                          `json:"organizer_id"`
	MinParticipants    int                          `json:"min_participants"`
	MaxParticipants    int                          `json:"max_participants"`
	EntryCost          int64                        `json:"entry_cost"`
	EnrollmentDeadline time.Time                    `json:"enrollment_deadline"`
	MatchDuration      models.MatchDuration         `json:"match_duration"`
	Constraints        models.BracketConstraints    `json:"constraints"`
}

// StandingsArchiver stores the final standings somewhere durable and
// returns a public URL.
type StandingsArchiver interface {
	ArchiveStandings(ctx context.Context, t *models.Tournament, standings []models.Standing) (string, error)
}

type LifecycleService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	SubmitForInstructor(ctx context.Context, id int) (*models.Tournament, error)
	AcceptInstructor(ctx context.Context, id, instructorID int) (*models.Tournament, error)
	CloseEnrollment(ctx context.Context, id int, reason string) (*models.Tournament, error)
	Complete(ctx context.Context, id int) (*models.Tournament, error)
	// Cancel refunds every active enrollment in the same transaction.
	Cancel(ctx context.Context, id int) (*models.Tournament, error)
	// CloseDueEnrollments closes every open tournament whose deadline has
	// passed and returns how many were closed.
	CloseDueEnrollments(ctx context.Context, now time.Time) (int, error)
	// Withdraw marks an enrolled participant as forfeiting. The seed is
	// kept; their matches are awarded to opponents once generated.
	Withdraw(ctx context.Context, enrollmentID int) (*models.Enrollment, error)
}

type lifecycleService struct {
	Deps
	ranking  RankingService
	archiver StandingsArchiver
	onClosed TournamentHook
}

func NewLifecycleService(deps Deps, ranking RankingService, archiver StandingsArchiver, onClosed TournamentHook) LifecycleService {
	return &lifecycleService{
		Deps:     deps.withDefaults(),
		ranking:  ranking,
		archiver: archiver,
		onClosed: onClosed,
	}
}

func validateCreateInput(in *CreateTournamentInput) error {
	in.Name = strings.TrimSpace(in.Name)
	var problems []string
	if in.Name == "" || len(in.Name) > maxNameLength {
		problems = append(problems, "name is required and must be at most 255 characters")
	}
	if _, err := models.ParseBracketFormat(string(in.Format)); err != nil {
		problems = append(problems, err.Error())
	}
	if in.ParticipantType != models.FormatParticipantSolo && in.ParticipantType != models.FormatParticipantTeam {
		problems = append(problems, "participant_type must be solo or team")
	}
	if in.OrganizerID <= 0 {
		problems = append(problems, "organizer_id must be positive")
	}
	if in.MaxParticipants > MaxParticipantsLimit || in.MaxParticipants < in.Format.MinParticipants() {
		problems = append(problems, fmt.Sprintf("max_participants must be between %d and %d", in.Format.MinParticipants(), MaxParticipantsLimit))
	}
	if in.MinParticipants < 1 || in.MinParticipants > in.MaxParticipants {
		problems = append(problems, "min_participants must be between 1 and max_participants")
	}
	if in.EntryCost < 0 {
		problems = append(problems, "entry_cost cannot be negative")
	}
	if in.EnrollmentDeadline.IsZero() || !in.EnrollmentDeadline.After(time.Now()) {
		problems = append(problems, "enrollment_deadline must be in the future")
	}
	if !in.MatchDuration.Valid() {
		problems = append(problems, "match_duration must be 1, 3 or 5")
	}
	c := in.Constraints
	if c.Legs < 0 || c.Legs > 2 {
		problems = append(problems, "constraints.legs must be 1 or 2")
	}
	if c.GroupSize != 0 && c.GroupSize < 2 {
		problems = append(problems, "constraints.group_size must be at least 2")
	}
	if c.KingOfCourtRounds < 0 || c.ChallengersPerRound < 0 {
		problems = append(problems, "king of court constraints cannot be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

func (s *lifecycleService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateCreateInput(&input); err != nil {
		return nil, err
	}
	t := &models.Tournament{
		Name:               input.Name,
		Format:             input.Format,
		ParticipantType:    input.ParticipantType,
		OrganizerID:        input.OrganizerID,
		MinParticipants:    input.MinParticipants,
		MaxParticipants:    input.MaxParticipants,
		EntryCost:          input.EntryCost,
		EnrollmentDeadline: input.EnrollmentDeadline.UTC(),
		MatchDuration:      input.MatchDuration,
		Constraints:        input.Constraints,
		Status:             models.StatusDraft,
		EnrolledCount:      0,
		NextSeed:           1,
	}
	if err := s.Store.Tournaments().Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	s.Logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID),
		slog.String("format", string(t.Format)),
		slog.Int("max_participants", t.MaxParticipants))
	return t, nil
}

func (s *lifecycleService) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.Store.Tournaments().GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return t, nil
}

// transition moves a tournament to next under its row lock. mutate may
// adjust other fields and runs after the transition check.
func (s *lifecycleService) transition(ctx context.Context, id int, next models.TournamentStatus, mutate func(ctx context.Context, tx repositories.Repositories, t *models.Tournament) error) (*models.Tournament, models.TournamentStatus, error) {
	var (
		updated  *models.Tournament
		previous models.TournamentStatus
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		t, err := tx.Tournaments().GetForUpdate(ctx, id)
		if err != nil {
			return handleRepositoryError(err)
		}
		if !isValidStatusTransition(t.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
		}
		previous = t.Status
		if mutate != nil {
			if err := mutate(ctx, tx, t); err != nil {
				return err
			}
		}
		t.Status = next
		if err := tx.Tournaments().Update(ctx, t); err != nil {
			return fmt.Errorf("failed to update tournament status: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	s.statusChanged(ctx, updated, previous, "")
	return updated, previous, nil
}

func (s *lifecycleService) statusChanged(ctx context.Context, t *models.Tournament, previous models.TournamentStatus, detail string) {
	s.Logger.InfoContext(ctx, "tournament status changed",
		slog.Int("tournament_id", t.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(t.Status)))
	if detail == "" {
		detail = fmt.Sprintf("%s -> %s", previous, t.Status)
	}
	s.Audit.Record(ctx, AuditFact{Action: AuditStatusChanged, TournamentID: t.ID, Detail: detail})
	s.Publisher.Publish(t.ID, brackets.EventTournamentStatus, map[string]interface{}{
		"status":       t.Status,
		"close_reason": t.CloseReason,
	})
}

func (s *lifecycleService) SubmitForInstructor(ctx context.Context, id int) (*models.Tournament, error) {
	t, _, err := s.transition(ctx, id, models.StatusSeekingInstructor, nil)
	return t, err
}

func (s *lifecycleService) AcceptInstructor(ctx context.Context, id, instructorID int) (*models.Tournament, error) {
	if instructorID <= 0 {
		return nil, fmt.Errorf("%w: instructor id must be positive", ErrValidationFailed)
	}
	t, _, err := s.transition(ctx, id, models.StatusReadyForEnrollment, func(ctx context.Context, tx repositories.Repositories, t *models.Tournament) error {
		t.InstructorID = intPtr(instructorID)
		return nil
	})
	return t, err
}

func (s *lifecycleService) CloseEnrollment(ctx context.Context, id int, reason string) (*models.Tournament, error) {
	switch reason {
	case models.CloseReasonDeadline, models.CloseReasonCapacity, models.CloseReasonManual:
	default:
		return nil, fmt.Errorf("%w: unknown close reason %q", ErrValidationFailed, reason)
	}
	t, _, err := s.transition(ctx, id, models.StatusEnrollmentClosed, func(ctx context.Context, tx repositories.Repositories, t *models.Tournament) error {
		r := reason
		t.CloseReason = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.onClosed != nil {
		if hookErr := s.onClosed(ctx, id); hookErr != nil && !errors.Is(hookErr, ErrGenerationAlreadyRunning) {
			s.Logger.ErrorContext(ctx, "enrollment closed hook failed",
				slog.Int("tournament_id", id), slog.Any("error", hookErr))
		}
	}
	return t, nil
}

func (s *lifecycleService) Complete(ctx context.Context, id int) (*models.Tournament, error) {
	current, err := s.Store.Tournaments().GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !isValidStatusTransition(current.Status, models.StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, models.StatusCompleted)
	}

	standings, err := s.ranking.Recompute(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	t, _, err := s.transition(ctx, id, models.StatusCompleted, func(ctx context.Context, tx repositories.Repositories, t *models.Tournament) error {
		pending, err := tx.Matches().CountUnresolved(ctx, t.ID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("%w: %d unresolved", ErrMatchesStillPending, pending)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.archiver != nil {
		url, archErr := s.archiver.ArchiveStandings(ctx, t, dereferenceStandings(standings))
		if archErr != nil {
			s.Logger.WarnContext(ctx, "failed to archive standings", slog.Int("tournament_id", id), slog.Any("error", archErr))
			return t, nil
		}
		t.StandingsURL = &url
		if err := s.Store.Tournaments().Update(ctx, t); err != nil {
			s.Logger.WarnContext(ctx, "failed to store standings url", slog.Int("tournament_id", id), slog.Any("error", err))
		}
	}
	return t, nil
}

func (s *lifecycleService) Cancel(ctx context.Context, id int) (*models.Tournament, error) {
	var (
		cancelled *models.Tournament
		previous  models.TournamentStatus
		refunded  int64
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		active, err := tx.Enrollments().ListActive(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list active enrollments: %w", err)
		}
		if err := lockWalletsInTx(ctx, tx, active); err != nil {
			return err
		}
		t, err := tx.Tournaments().GetForUpdate(ctx, id)
		if err != nil {
			return handleRepositoryError(err)
		}
		if !isValidStatusTransition(t.Status, models.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, models.StatusCancelled)
		}
		previous = t.Status
		refunded, err = refundAllInTx(ctx, tx, t)
		if err != nil {
			return err
		}
		t.Status = models.StatusCancelled
		if err := tx.Tournaments().Update(ctx, t); err != nil {
			return fmt.Errorf("failed to cancel tournament: %w", err)
		}
		cancelled = t
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	s.Metrics.CreditsMoved(string(models.TxTypeEnrollmentRefund), refunded)
	s.Audit.Record(ctx, AuditFact{Action: AuditRefund, TournamentID: id, Amount: refunded})
	s.statusChanged(ctx, cancelled, previous, fmt.Sprintf("%s -> %s, refunded %d", previous, cancelled.Status, refunded))
	return cancelled, nil
}

func (s *lifecycleService) CloseDueEnrollments(ctx context.Context, now time.Time) (int, error) {
	due, err := s.Store.Tournaments().ListDueForClose(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list tournaments due for close: %w", err)
	}
	closed := 0
	for _, t := range due {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		_, err := s.CloseEnrollment(ctx, t.ID, models.CloseReasonDeadline)
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			s.Logger.ErrorContext(ctx, "failed to close enrollment", slog.Int("tournament_id", t.ID), slog.Any("error", err))
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *lifecycleService) Withdraw(ctx context.Context, enrollmentID int) (*models.Enrollment, error) {
	current, err := s.Store.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	var withdrawn *models.Enrollment
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		t, err := tx.Tournaments().GetForUpdate(ctx, current.TournamentID)
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
		if t.Status != models.StatusEnrollmentClosed {
			return fmt.Errorf("%w: tournament %d is %s", ErrWithdrawNotAllowed, t.ID, t.Status)
		}
		if !e.Forfeit {
			e.Forfeit = true
			if err := tx.Enrollments().Update(ctx, e); err != nil {
				return fmt.Errorf("failed to mark forfeit: %w", err)
			}
		}
		withdrawn = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, AuditFact{
		Action:        AuditWithdrawn,
		TournamentID:  withdrawn.TournamentID,
		ParticipantID: withdrawn.ParticipantID,
		EnrollmentID:  withdrawn.ID,
	})
	s.Publisher.Publish(withdrawn.TournamentID, brackets.EventEnrollmentsChanged, withdrawn)
	return withdrawn, nil
}
