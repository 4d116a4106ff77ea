package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSyncThreshold = 128
	DefaultMaxAttempts   = 3
	defaultRetryBackoff  = 100 * time.Millisecond
)

var (
	errGenerationDiscarded = errors.New("tournament was cancelled, generation discarded")
	errAttemptsExhausted   = errors.New("generation attempts exhausted")
)

// Queue hands generation tasks to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, task models.GenerationTask) error
}

// GenerationHandle is what callers poll while a bracket is being built.
type GenerationHandle struct {
	JobID        string                     `json:"job_id,omitempty"`
	TournamentID int                        `json:"tournament_id"`
	Stage        models.MatchStage          `json:"stage"`
	Path         models.GenerationPath      `json:"path,omitempty"`
	Status       models.GenerationJobStatus `json:"status"`
	Attempts     int                        `json:"attempts"`
	MatchCount   int                        `json:"match_count"`
	Error        *string                    `json:"error,omitempty"`
}

func handleFromJob(j *models.GenerationJob) *GenerationHandle {
	return &GenerationHandle{
		JobID:        j.ID,
		TournamentID: j.TournamentID,
		Stage:        j.Stage,
		Path:         j.Path,
		Status:       j.Status,
		Attempts:     j.Attempts,
		MatchCount:   j.MatchCount,
		Error:        j.Error,
	}
}

// BracketView is the full public picture of a tournament.
type BracketView struct {
	Tournament *models.Tournament `json:"tournament"`
	Matches    []models.Match     `json:"matches"`
	Standings  []models.Standing  `json:"standings"`
}

type GenerationService interface {
	StartGeneration(ctx context.Context, tournamentID int) (*GenerationHandle, error)
	// GeneratePlacement builds the placement wave of a group-stage
	// tournament once every group match is settled.
	GeneratePlacement(ctx context.Context, tournamentID int) (*GenerationHandle, error)
	JobStatus(ctx context.Context, jobID string) (*GenerationHandle, error)
	// ProcessTask is the worker entry point. It is safe to call any number
	// of times for the same task.
	ProcessTask(ctx context.Context, task models.GenerationTask) error
	// RequeueStale re-enqueues async jobs that have not moved for olderThan.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
	BracketView(ctx context.Context, tournamentID int) (*BracketView, error)
}

type GenerationConfig struct {
	SyncThreshold int
	MaxAttempts   int
	RetryBackoff  time.Duration
}

type generationService struct {
	Deps
	cfg     GenerationConfig
	queue   Queue
	results ResultService
	ranking RankingService
	flight  singleflight.Group
}

func NewGenerationService(deps Deps, cfg GenerationConfig, queue Queue, results ResultService, ranking RankingService) GenerationService {
	if cfg.SyncThreshold <= 0 {
		cfg.SyncThreshold = DefaultSyncThreshold
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &generationService{
		Deps:    deps.withDefaults(),
		cfg:     cfg,
		queue:   queue,
		results: results,
		ranking: ranking,
	}
}

func mainStage(format models.BracketFormat) models.MatchStage {
	if format == models.FormatGroupStagePlacement {
		return models.StageGroup
	}
	return models.StageMain
}

func (s *generationService) StartGeneration(ctx context.Context, tournamentID int) (*GenerationHandle, error) {
	v, err, _ := s.flight.Do("main:"+strconv.Itoa(tournamentID), func() (interface{}, error) {
		return s.startGeneration(ctx, tournamentID)
	})
	handle, _ := v.(*GenerationHandle)
	return handle, err
}

func (s *generationService) startGeneration(ctx context.Context, tournamentID int) (*GenerationHandle, error) {
	t, err := s.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	stage := mainStage(t.Format)

	switch t.Status {
	case models.StatusEnrollmentClosed:
	case models.StatusInProgress, models.StatusCompleted:
		batch, err := s.Store.Generations().GetBatch(ctx, t.ID, stage)
		if err != nil {
			return nil, fmt.Errorf("%w: tournament %d is %s without a bracket", ErrTournamentNotReady, t.ID, t.Status)
		}
		return &GenerationHandle{TournamentID: t.ID, Stage: stage, Status: models.JobDone, MatchCount: batch.MatchCount}, nil
	default:
		return nil, fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotReady, t.ID, t.Status)
	}

	path := models.PathSync
	if t.EnrolledCount >= s.cfg.SyncThreshold {
		path = models.PathAsync
	}
	return s.startJob(ctx, t.ID, stage, path)
}

func (s *generationService) GeneratePlacement(ctx context.Context, tournamentID int) (*GenerationHandle, error) {
	v, err, _ := s.flight.Do("placement:"+strconv.Itoa(tournamentID), func() (interface{}, error) {
		return s.generatePlacement(ctx, tournamentID)
	})
	handle, _ := v.(*GenerationHandle)
	return handle, err
}

func (s *generationService) generatePlacement(ctx context.Context, tournamentID int) (*GenerationHandle, error) {
	t, err := s.Store.Tournaments().GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if t.Format != models.FormatGroupStagePlacement {
		return nil, fmt.Errorf("%w: %s has no placement wave", ErrValidationFailed, t.Format)
	}
	if batch, err := s.Store.Generations().GetBatch(ctx, t.ID, models.StagePlacement); err == nil {
		return &GenerationHandle{TournamentID: t.ID, Stage: models.StagePlacement, Status: models.JobDone, MatchCount: batch.MatchCount}, nil
	}
	if t.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotReady, t.ID, t.Status)
	}

	groupStage := models.StageGroup
	matches, err := s.Store.Matches().ListByTournament(ctx, t.ID, &groupStage)
	if err != nil {
		return nil, fmt.Errorf("failed to list group matches: %w", err)
	}
	for _, m := range matches {
		if m.Outcome == models.OutcomeUnresolved {
			return nil, fmt.Errorf("%w: group match %d", ErrMatchesStillPending, m.ID)
		}
	}
	for _, g := range groupNumbers(matches) {
		if _, err := s.ranking.Recompute(ctx, t.ID, intPtr(g)); err != nil {
			return nil, fmt.Errorf("failed to rank group %d: %w", g, err)
		}
	}
	return s.startJob(ctx, t.ID, models.StagePlacement, models.PathSync)
}

// startJob records the job and either runs it inline or queues it. Both
// paths end in runJob.
func (s *generationService) startJob(ctx context.Context, tournamentID int, stage models.MatchStage, path models.GenerationPath) (*GenerationHandle, error) {
	if pending, err := s.Store.Generations().FindPendingJob(ctx, tournamentID, stage); err == nil {
		return handleFromJob(pending), ErrGenerationAlreadyRunning
	}

	job := &models.GenerationJob{
		ID:           uuid.New().String(),
		TournamentID: tournamentID,
		Stage:        stage,
		Path:         path,
		Status:       models.JobPending,
	}
	if err := s.Store.Generations().CreateJob(ctx, job); err != nil {
		if errors.Is(err, repositories.ErrJobConflict) {
			pending, findErr := s.Store.Generations().FindPendingJob(ctx, tournamentID, stage)
			if findErr != nil {
				return nil, ErrGenerationAlreadyRunning
			}
			return handleFromJob(pending), ErrGenerationAlreadyRunning
		}
		return nil, fmt.Errorf("failed to create generation job: %w", err)
	}

	s.Logger.InfoContext(ctx, "generation job created",
		slog.String("job_id", job.ID),
		slog.Int("tournament_id", tournamentID),
		slog.String("stage", string(stage)),
		slog.String("path", string(path)))

	if path == models.PathSync {
		return s.runJob(ctx, job)
	}

	if s.queue == nil {
		return s.failEnqueue(ctx, job, errors.New("no queue configured"))
	}
	task := models.GenerationTask{JobID: job.ID, TournamentID: tournamentID, Stage: stage}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return s.failEnqueue(ctx, job, err)
	}
	return handleFromJob(job), nil
}

func (s *generationService) failEnqueue(ctx context.Context, job *models.GenerationJob, cause error) (*GenerationHandle, error) {
	msg := "enqueue failed: " + cause.Error()
	job.Status = models.JobError
	job.Error = &msg
	if err := s.Store.Generations().UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		s.Logger.ErrorContext(ctx, "failed to mark job as errored", slog.String("job_id", job.ID), slog.Any("error", err))
	}
	s.Logger.WarnContext(ctx, "generation queue unavailable", slog.String("job_id", job.ID), slog.Any("error", cause))
	return handleFromJob(job), fmt.Errorf("%w: %v", ErrWorkerUnavailable, cause)
}

func (s *generationService) JobStatus(ctx context.Context, jobID string) (*GenerationHandle, error) {
	job, err := s.Store.Generations().GetJob(ctx, jobID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return handleFromJob(job), nil
}

func (s *generationService) ProcessTask(ctx context.Context, task models.GenerationTask) error {
	job, err := s.Store.Generations().GetJob(ctx, task.JobID)
	if err != nil {
		return handleRepositoryError(err)
	}
	if job.Status != models.JobPending {
		s.Logger.DebugContext(ctx, "generation task already finished",
			slog.String("job_id", job.ID), slog.String("status", string(job.Status)))
		return nil
	}
	_, err = s.runJob(ctx, job)
	return err
}

func (s *generationService) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if s.queue == nil {
		return 0, nil
	}
	stale, err := s.Store.Generations().ListStalePending(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	requeued := 0
	for _, job := range stale {
		if err := s.Store.Generations().UpdateJob(ctx, job); err != nil {
			s.Logger.WarnContext(ctx, "failed to touch stale job", slog.String("job_id", job.ID), slog.Any("error", err))
			continue
		}
		task := models.GenerationTask{JobID: job.ID, TournamentID: job.TournamentID, Stage: job.Stage}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			return requeued, fmt.Errorf("%w: %v", ErrWorkerUnavailable, err)
		}
		requeued++
	}
	if requeued > 0 {
		s.Logger.InfoContext(ctx, "requeued stale generation jobs", slog.Int("count", requeued))
	}
	return requeued, nil
}

// runJob drives one job to a final state. Each attempt is idempotent, so a
// retry after a partial failure cannot duplicate matches.
func (s *generationService) runJob(ctx context.Context, job *models.GenerationJob) (*GenerationHandle, error) {
	start := time.Now()
	// a job re-delivered after its last attempt goes straight to error
	lastErr := errAttemptsExhausted
	for job.Attempts < s.cfg.MaxAttempts {
		job.Attempts++
		created, err := s.generateAndPersist(ctx, job)
		if err == nil {
			s.Metrics.GenerationFinished(string(job.Path), string(models.JobDone), job.MatchCount, time.Since(start))
			if created {
				s.afterGeneration(ctx, job)
			}
			return handleFromJob(job), nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		s.Logger.WarnContext(ctx, "generation attempt failed",
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempts),
			slog.Any("error", err))
		if err := s.Store.Generations().UpdateJob(ctx, job); err != nil {
			s.Logger.WarnContext(ctx, "failed to record attempt", slog.String("job_id", job.ID), slog.Any("error", err))
		}
		if job.Attempts < s.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(s.cfg.RetryBackoff * time.Duration(job.Attempts)):
				continue
			}
			break
		}
	}

	msg := lastErr.Error()
	job.Status = models.JobError
	job.Error = &msg
	if err := s.Store.Generations().UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		s.Logger.ErrorContext(ctx, "failed to mark job as errored", slog.String("job_id", job.ID), slog.Any("error", err))
	}
	s.Metrics.GenerationFinished(string(job.Path), string(models.JobError), 0, time.Since(start))
	s.Logger.ErrorContext(ctx, "generation job failed",
		slog.String("job_id", job.ID),
		slog.Int("tournament_id", job.TournamentID),
		slog.Int("attempts", job.Attempts),
		slog.Any("error", lastErr))

	switch {
	case errors.Is(lastErr, errGenerationDiscarded):
		return handleFromJob(job), fmt.Errorf("%w: %v", ErrTournamentNotReady, lastErr)
	case !retryable(lastErr):
		return handleFromJob(job), lastErr
	}
	return handleFromJob(job), fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, errGenerationDiscarded) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch KindOf(err) {
	case KindValidation, KindPrecondition, KindConflict, KindNotFound:
		return false
	}
	return true
}

// generateAndPersist is the single generation path. Under the tournament
// lock it re-checks the batch guard, builds the plan, writes every match and
// marks the job done. created is false when the stage already existed.
func (s *generationService) generateAndPersist(ctx context.Context, job *models.GenerationJob) (created bool, err error) {
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		t, err := tx.Tournaments().GetForUpdate(ctx, job.TournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.Status == models.StatusCancelled {
			return errGenerationDiscarded
		}

		batch, err := tx.Generations().GetBatch(ctx, t.ID, job.Stage)
		switch {
		case err == nil:
			return markJobDone(ctx, tx, job, batch.MatchCount)
		case !errors.Is(err, repositories.ErrBatchNotFound):
			return err
		}

		var plan *brackets.Plan
		if job.Stage == models.StagePlacement {
			plan, err = placementPlan(ctx, tx, t)
		} else {
			plan, err = mainPlan(ctx, tx, t)
		}
		if err != nil {
			return err
		}

		if err := persistPlan(ctx, tx, t.ID, plan); err != nil {
			return err
		}
		if err := tx.Generations().CreateBatch(ctx, &models.GenerationBatch{
			TournamentID: t.ID,
			Stage:        job.Stage,
			MatchCount:   len(plan.Matches),
		}); err != nil {
			return fmt.Errorf("failed to record generation batch: %w", err)
		}

		if job.Stage != models.StagePlacement {
			t.Status = models.StatusInProgress
			if err := tx.Tournaments().Update(ctx, t); err != nil {
				return fmt.Errorf("failed to start tournament: %w", err)
			}
		}
		created = true
		return markJobDone(ctx, tx, job, len(plan.Matches))
	})
	return created, err
}

func markJobDone(ctx context.Context, tx repositories.Repositories, job *models.GenerationJob, matchCount int) error {
	job.Status = models.JobDone
	job.MatchCount = matchCount
	job.Error = nil
	return tx.Generations().UpdateJob(ctx, job)
}

func mainPlan(ctx context.Context, tx repositories.Repositories, t *models.Tournament) (*brackets.Plan, error) {
	if t.Status != models.StatusEnrollmentClosed {
		return nil, fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotReady, t.ID, t.Status)
	}
	enrollments, err := tx.Enrollments().ListActive(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	if len(enrollments) < t.MinParticipants {
		return nil, fmt.Errorf("%w: tournament %d needs %d, has %d",
			ErrInsufficientParticipants, t.ID, t.MinParticipants, len(enrollments))
	}
	plan, err := brackets.Generate(ctx, brackets.GenerateBracketParams{
		Format:      t.Format,
		Entrants:    entrantsFromEnrollments(enrollments),
		Constraints: t.Constraints,
	})
	return plan, translateBracketError(err)
}

func placementPlan(ctx context.Context, tx repositories.Repositories, t *models.Tournament) (*brackets.Plan, error) {
	if t.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotReady, t.ID, t.Status)
	}
	groupStage := models.StageGroup
	matches, err := tx.Matches().ListByTournament(ctx, t.ID, &groupStage)
	if err != nil {
		return nil, fmt.Errorf("failed to list group matches: %w", err)
	}
	groups := groupNumbers(matches)
	ranked := make([][]brackets.Entrant, 0, len(groups))
	for _, g := range groups {
		standings, err := tx.Standings().List(ctx, t.ID, models.ScopeGroup, intPtr(g))
		if err != nil {
			return nil, fmt.Errorf("failed to read group %d standings: %w", g, err)
		}
		if len(standings) == 0 {
			return nil, fmt.Errorf("%w: group %d has no standings", ErrMatchesStillPending, g)
		}
		entrants := make([]brackets.Entrant, 0, len(standings))
		for _, st := range standings {
			entrants = append(entrants, brackets.Entrant{ParticipantID: st.ParticipantID, Seed: st.SeedIndex})
		}
		ranked = append(ranked, entrants)
	}
	plan, err := brackets.GeneratePlacement(ctx, ranked, t.Constraints)
	return plan, translateBracketError(err)
}

func translateBracketError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, brackets.ErrInsufficientParticipants):
		return fmt.Errorf("%w: %v", ErrInsufficientParticipants, err)
	case errors.Is(err, brackets.ErrInvalidConstraints), errors.Is(err, brackets.ErrUnsupportedFormat):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return err
}

// persistPlan writes the plan in two passes: rows first, then the links
// between them, because a link needs the database id of its target.
func persistPlan(ctx context.Context, tx repositories.Repositories, tournamentID int, plan *brackets.Plan) error {
	uidToID := make(map[string]int, len(plan.Matches))
	for _, bm := range plan.Matches {
		m := &models.Match{
			TournamentID: tournamentID,
			Stage:        bm.Stage,
			GroupNumber:  bm.GroupNumber,
			Round:        bm.Round,
			OrderInRound: bm.OrderInRound,
			MatchNumber:  bm.MatchNumber,
			BracketUID:   bm.UID,
			ParticipantA: bm.Participant1ID,
			ParticipantB: bm.Participant2ID,
			SeedA:        bm.Seed1,
			SeedB:        bm.Seed2,
			Outcome:      models.OutcomeUnresolved,
		}
		if err := tx.Matches().Create(ctx, m); err != nil {
			return err
		}
		uidToID[bm.UID] = m.ID
	}

	type link struct {
		winnerTo, winnerSlot, loserTo, loserSlot *int
	}
	links := make(map[string]*link)
	for _, bm := range plan.Matches {
		sources := [2]*brackets.SlotSource{bm.Source1, bm.Source2}
		for i, src := range sources {
			if src == nil {
				continue
			}
			if _, ok := uidToID[src.MatchUID]; !ok {
				return fmt.Errorf("match %s references unknown match %s", bm.UID, src.MatchUID)
			}
			l := links[src.MatchUID]
			if l == nil {
				l = &link{}
				links[src.MatchUID] = l
			}
			target, slot := intPtr(uidToID[bm.UID]), intPtr(i+1)
			if src.Loser {
				l.loserTo, l.loserSlot = target, slot
			} else {
				l.winnerTo, l.winnerSlot = target, slot
			}
		}
	}
	for _, bm := range plan.Matches {
		l, ok := links[bm.UID]
		if !ok {
			continue
		}
		if err := tx.Matches().UpdateNextMatchInfo(ctx, uidToID[bm.UID], l.winnerTo, l.winnerSlot, l.loserTo, l.loserSlot); err != nil {
			return fmt.Errorf("failed to link match %s: %w", bm.UID, err)
		}
	}
	return nil
}

func (s *generationService) afterGeneration(ctx context.Context, job *models.GenerationJob) {
	s.Logger.InfoContext(ctx, "bracket generated",
		slog.String("job_id", job.ID),
		slog.Int("tournament_id", job.TournamentID),
		slog.String("stage", string(job.Stage)),
		slog.Int("matches", job.MatchCount),
		slog.Int("attempts", job.Attempts))
	s.Audit.Record(ctx, AuditFact{
		Action:       AuditBracketGenerated,
		TournamentID: job.TournamentID,
		Detail:       fmt.Sprintf("stage=%s matches=%d", job.Stage, job.MatchCount),
	})
	s.Publisher.Publish(job.TournamentID, brackets.EventBracketGenerated, handleFromJob(job))
	if job.Stage != models.StagePlacement {
		s.Publisher.Publish(job.TournamentID, brackets.EventTournamentStatus, map[string]interface{}{
			"status": models.StatusInProgress,
		})
	}

	if s.results == nil {
		return
	}
	if _, err := s.results.SettleForfeits(ctx, job.TournamentID); err != nil {
		s.Logger.ErrorContext(ctx, "failed to settle forfeits", slog.Int("tournament_id", job.TournamentID), slog.Any("error", err))
	}
	if err := s.results.CheckCompletion(ctx, job.TournamentID); err != nil {
		s.Logger.ErrorContext(ctx, "completion check failed", slog.Int("tournament_id", job.TournamentID), slog.Any("error", err))
	}
}

func (s *generationService) BracketView(ctx context.Context, tournamentID int) (*BracketView, error) {
	view := &BracketView{}
	var (
		matches   []*models.Match
		standings []*models.Standing
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.Store.Tournaments().GetByID(gCtx, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		view.Tournament = t
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = s.Store.Matches().ListByTournament(gCtx, tournamentID, nil)
		return err
	})
	g.Go(func() error {
		var err error
		standings, err = s.Store.Standings().List(gCtx, tournamentID, models.ScopeTournament, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	view.Matches = dereferenceMatches(matches)
	view.Standings = dereferenceStandings(standings)
	return view, nil
}

func groupNumbers(matches []*models.Match) []int {
	seen := make(map[int]struct{})
	for _, m := range matches {
		if m.GroupNumber != nil {
			seen[*m.GroupNumber] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Ints(out)
	return out
}
