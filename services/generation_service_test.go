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

// closedTournament enrolls n players and closes enrollment manually. With
// the default threshold generation runs inline on close.
func (env *testEnv) closedTournament(t *testing.T, in CreateTournamentInput, n int) *models.Tournament {
	t.Helper()
	tour := env.openTournament(t, in)
	env.enrollPlayers(t, tour, n)
	_, err := env.lifecycle.CloseEnrollment(context.Background(), tour.ID, models.CloseReasonManual)
	require.NoError(t, err)
	return env.tournament(t, tour.ID)
}

func TestStartGenerationSyncKnockout(t *testing.T) {
	env := newTestEnv(t)
	tour := env.closedTournament(t, tournamentInput(models.FormatKnockout, 16, 0), 8)

	assert.Equal(t, models.StatusInProgress, tour.Status)
	matches := env.matches(t, tour.ID, nil)
	require.Len(t, matches, 7)

	finals := 0
	for _, m := range matches {
		if m.Round == 3 {
			finals++
			assert.Nil(t, m.WinnerToMatch)
			continue
		}
		require.NotNil(t, m.WinnerToMatch, "match %s", m.BracketUID)
		require.NotNil(t, m.WinnerToSlot)
	}
	assert.Equal(t, 1, finals)
	assert.Equal(t, 1, env.publisher.count(brackets.EventBracketGenerated))

	batch, err := env.mem.Generations().GetBatch(context.Background(), tour.ID, models.StageMain)
	require.NoError(t, err)
	assert.Equal(t, 7, batch.MatchCount)
}

func TestStartGenerationIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.closedTournament(t, tournamentInput(models.FormatLeague, 8, 0), 5)
	require.Len(t, env.matches(t, tour.ID, nil), 10)

	handle, err := env.generation.StartGeneration(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, handle.Status)
	assert.Equal(t, 10, handle.MatchCount)
	assert.Len(t, env.matches(t, tour.ID, nil), 10)
}

func TestConcurrentStartGenerationCreatesOneMatchSet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 32, 0))
	env.enrollPlayers(t, tour, 12)

	// close without the hook so the race below is the only generation
	lifecycle := NewLifecycleService(Deps{Store: env.mem}, env.ranking, nil, nil)
	_, err := lifecycle.CloseEnrollment(ctx, tour.ID, models.CloseReasonManual)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.generation.StartGeneration(ctx, tour.ID)
			if err != nil && !errors.Is(err, ErrGenerationAlreadyRunning) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	matches := env.matches(t, tour.ID, nil)
	assert.Len(t, matches, 11)
	uids := map[string]bool{}
	for _, m := range matches {
		assert.False(t, uids[m.BracketUID], "duplicate %s", m.BracketUID)
		uids[m.BracketUID] = true
	}
}

func TestStartGenerationRequiresClosedEnrollment(t *testing.T) {
	env := newTestEnv(t)
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 0))

	_, err := env.generation.StartGeneration(context.Background(), tour.ID)
	require.ErrorIs(t, err, ErrTournamentNotReady)

	_, err = env.generation.StartGeneration(context.Background(), 9999)
	require.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestStartGenerationInsufficientParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatGroupStagePlacement, 16, 0))
	env.enrollPlayers(t, tour, 3)

	lifecycle := NewLifecycleService(Deps{Store: env.mem}, env.ranking, nil, nil)
	_, err := lifecycle.CloseEnrollment(ctx, tour.ID, models.CloseReasonDeadline)
	require.NoError(t, err)

	handle, err := env.generation.StartGeneration(ctx, tour.ID)
	require.ErrorIs(t, err, ErrInsufficientParticipants)
	require.NotNil(t, handle)
	assert.Equal(t, models.JobError, handle.Status)
	assert.Equal(t, 1, handle.Attempts)
	assert.Empty(t, env.matches(t, tour.ID, nil))
	assert.Equal(t, models.StatusEnrollmentClosed, env.tournament(t, tour.ID).Status)
}

func TestAsyncKnockout1024(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 1024, 0))

	// the 1024th enrollment fills the tournament and queues generation
	env.enrollPlayers(t, tour, 1024)
	assert.Equal(t, models.StatusEnrollmentClosed, env.tournament(t, tour.ID).Status)

	tasks := env.queue.drain()
	require.Len(t, tasks, 1)
	task := tasks[0]

	pending, err := env.generation.JobStatus(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, pending.Status)
	assert.Equal(t, models.PathAsync, pending.Path)

	require.NoError(t, env.generation.ProcessTask(ctx, task))

	done, err := env.generation.JobStatus(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, done.Status)
	assert.Equal(t, 1023, done.MatchCount)

	matches := env.matches(t, tour.ID, nil)
	require.Len(t, matches, 1023)
	uids := make(map[string]bool, len(matches))
	for _, m := range matches {
		require.False(t, uids[m.BracketUID])
		uids[m.BracketUID] = true
	}

	// re-enqueueing a finished job changes nothing
	require.NoError(t, env.generation.ProcessTask(ctx, task))
	assert.Len(t, env.matches(t, tour.ID, nil), 1023)
	assert.Equal(t, models.StatusInProgress, env.tournament(t, tour.ID).Status)
}

func TestAsyncPendingJobReportsAlreadyRunning(t *testing.T) {
	env := newTestEnv(t, withSyncThreshold(4))
	ctx := context.Background()
	tour := env.closedTournament(t, tournamentInput(models.FormatLeague, 8, 0), 6)
	require.Len(t, env.queue.drain(), 1)

	handle, err := env.generation.StartGeneration(ctx, tour.ID)
	require.ErrorIs(t, err, ErrGenerationAlreadyRunning)
	require.NotNil(t, handle)
	assert.Equal(t, models.JobPending, handle.Status)
	assert.Empty(t, env.matches(t, tour.ID, nil))
}

func TestEnqueueFailureMarksJobErrored(t *testing.T) {
	env := newTestEnv(t, withSyncThreshold(2))
	ctx := context.Background()
	env.queue.err = errors.New("redis down")
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 0))
	env.enrollPlayers(t, tour, 4)

	lifecycle := NewLifecycleService(Deps{Store: env.mem}, env.ranking, nil, nil)
	_, err := lifecycle.CloseEnrollment(ctx, tour.ID, models.CloseReasonManual)
	require.NoError(t, err)

	handle, err := env.generation.StartGeneration(ctx, tour.ID)
	require.ErrorIs(t, err, ErrWorkerUnavailable)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Equal(t, models.JobError, handle.Status)

	// once the queue is back a new attempt goes through
	env.queue.err = nil
	handle, err = env.generation.StartGeneration(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, handle.Status)
}

func TestCancelledTournamentDiscardsQueuedGeneration(t *testing.T) {
	env := newTestEnv(t, withSyncThreshold(2))
	ctx := context.Background()
	tour := env.closedTournament(t, tournamentInput(models.FormatKnockout, 8, 0), 4)
	tasks := env.queue.drain()
	require.Len(t, tasks, 1)

	_, err := env.lifecycle.Cancel(ctx, tour.ID)
	require.NoError(t, err)

	err = env.generation.ProcessTask(ctx, tasks[0])
	require.ErrorIs(t, err, ErrTournamentNotReady)
	assert.Empty(t, env.matches(t, tour.ID, nil))

	job, err := env.generation.JobStatus(ctx, tasks[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobError, job.Status)
}

func TestRequeueStaleJobs(t *testing.T) {
	env := newTestEnv(t, withSyncThreshold(2))
	ctx := context.Background()
	env.closedTournament(t, tournamentInput(models.FormatKnockout, 8, 0), 4)
	require.Len(t, env.queue.drain(), 1)

	n, err := env.generation.RequeueStale(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, env.queue.drain(), 1)
}

func TestWalkoverCompletesTournament(t *testing.T) {
	env := newTestEnv(t)
	tour := env.closedTournament(t, tournamentInput(models.FormatKnockout, 8, 0), 1)

	assert.Equal(t, models.StatusCompleted, tour.Status)
	assert.Empty(t, env.matches(t, tour.ID, nil))

	standings, err := env.ranking.Standings(context.Background(), tour.ID, nil)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 101, standings[0].ParticipantID)
}

func TestBracketView(t *testing.T) {
	env := newTestEnv(t)
	tour := env.closedTournament(t, tournamentInput(models.FormatKingOfCourt, 8, 0), 4)

	view, err := env.generation.BracketView(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tour.ID, view.Tournament.ID)
	assert.Len(t, view.Matches, 3)
	assert.Empty(t, view.Standings)

	_, err = env.generation.BracketView(context.Background(), 4242)
	require.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestGenerationBelowMinimumParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := tournamentInput(models.FormatKnockout, 16, 0)
	in.MinParticipants = 8
	tour := env.openTournament(t, in)
	env.enrollPlayers(t, tour, 3)

	lifecycle := NewLifecycleService(Deps{Store: env.mem}, env.ranking, nil, nil)
	_, err := lifecycle.CloseEnrollment(ctx, tour.ID, models.CloseReasonManual)
	require.NoError(t, err)

	handle, err := env.generation.StartGeneration(ctx, tour.ID)
	require.ErrorIs(t, err, ErrInsufficientParticipants)
	assert.Equal(t, KindPrecondition, KindOf(err))
	require.NotNil(t, handle)
	assert.Equal(t, models.JobError, handle.Status)
	assert.Equal(t, 1, handle.Attempts)
	assert.Empty(t, env.matches(t, tour.ID, nil))
	assert.Equal(t, models.StatusEnrollmentClosed, env.tournament(t, tour.ID).Status)

	// the organizer can still cancel and refund
	_, err = env.lifecycle.Cancel(ctx, tour.ID)
	require.NoError(t, err)
}

func TestGenerationRetriesThenFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tour := env.openTournament(t, tournamentInput(models.FormatKnockout, 8, 0))
	env.enrollPlayers(t, tour, 4)

	lifecycle := NewLifecycleService(Deps{Store: env.mem}, env.ranking, nil, nil)
	_, err := lifecycle.CloseEnrollment(ctx, tour.ID, models.CloseReasonManual)
	require.NoError(t, err)

	env.faulty.failCreateMatch = true
	handle, err := env.generation.StartGeneration(ctx, tour.ID)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, KindFatal, KindOf(err))
	require.NotNil(t, handle)
	assert.Equal(t, models.JobError, handle.Status)
	assert.Equal(t, 2, handle.Attempts)
	require.NotNil(t, handle.Error)

	job, err := env.generation.JobStatus(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobError, job.Status)
	assert.Empty(t, env.matches(t, tour.ID, nil))
	assert.Equal(t, models.StatusEnrollmentClosed, env.tournament(t, tour.ID).Status)

	env.faulty.failCreateMatch = false
	handle, err = env.generation.StartGeneration(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, handle.Status)
	assert.Equal(t, 3, handle.MatchCount)
	assert.Len(t, env.matches(t, tour.ID, nil), 3)
	assert.Equal(t, models.StatusInProgress, env.tournament(t, tour.ID).Status)
}

func TestProcessTaskWithSpentAttempts(t *testing.T) {
	env := newTestEnv(t, withSyncThreshold(2))
	ctx := context.Background()
	tour := env.closedTournament(t, tournamentInput(models.FormatKnockout, 8, 0), 4)
	tasks := env.queue.drain()
	require.Len(t, tasks, 1)

	// a job whose final error write was lost is still pending with no
	// attempts left
	job, err := env.mem.Generations().GetJob(ctx, tasks[0].JobID)
	require.NoError(t, err)
	job.Attempts = 2
	require.NoError(t, env.mem.Generations().UpdateJob(ctx, job))

	require.NotPanics(t, func() {
		err = env.generation.ProcessTask(ctx, tasks[0])
	})
	require.ErrorIs(t, err, ErrGenerationFailed)

	handle, err := env.generation.JobStatus(ctx, tasks[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobError, handle.Status)
	assert.Equal(t, 2, handle.Attempts)
	assert.Empty(t, env.matches(t, tour.ID, nil))

	// the errored job no longer blocks a fresh run
	n, err := env.generation.RequeueStale(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	handle, err = env.generation.StartGeneration(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, handle.Status)
	tasks = env.queue.drain()
	require.Len(t, tasks, 1)
	require.NoError(t, env.generation.ProcessTask(ctx, tasks[0]))
	assert.Len(t, env.matches(t, tour.ID, nil), 3)
	assert.Equal(t, models.StatusInProgress, env.tournament(t, tour.ID).Status)
}
