package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	TournamentID int
	Type         string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(tournamentID int, eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TournamentID: tournamentID, Type: eventType})
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []models.GenerationTask
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task models.GenerationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) drain() []models.GenerationTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}

type recordingArchiver struct {
	calls int
}

func (a *recordingArchiver) ArchiveStandings(_ context.Context, t *models.Tournament, standings []models.Standing) (string, error) {
	a.calls++
	return "https://archive.test/" + t.Name + ".json", nil
}

// faultyStore fails match writes inside transactions when armed.
type faultyStore struct {
	repositories.Store
	failSetSlot     bool
	failCreateMatch bool
}

var errInjected = errors.New("injected failure")

func (f *faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Repositories) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		return fn(ctx, faultyRepositories{Repositories: tx, store: f})
	})
}

type faultyRepositories struct {
	repositories.Repositories
	store *faultyStore
}

func (r faultyRepositories) Matches() repositories.MatchRepository {
	return faultyMatches{MatchRepository: r.Repositories.Matches(), store: r.store}
}

type faultyMatches struct {
	repositories.MatchRepository
	store *faultyStore
}

func (m faultyMatches) SetSlot(ctx context.Context, matchID, slot, participantID int, seed *int) error {
	if m.store.failSetSlot {
		return errInjected
	}
	return m.MatchRepository.SetSlot(ctx, matchID, slot, participantID, seed)
}

func (m faultyMatches) Create(ctx context.Context, match *models.Match) error {
	if m.store.failCreateMatch {
		return errInjected
	}
	return m.MatchRepository.Create(ctx, match)
}

type testEnv struct {
	mem        *repositories.MemoryStore
	faulty     *faultyStore
	publisher  *recordingPublisher
	queue      *fakeQueue
	archiver   *recordingArchiver
	ledger     LedgerService
	generation GenerationService
	results    ResultService
	ranking    RankingService
	lifecycle  LifecycleService
}

type envOptions struct {
	syncThreshold int
	autoComplete  bool
}

func newTestEnv(t *testing.T, opts ...func(*envOptions)) *testEnv {
	t.Helper()
	o := envOptions{syncThreshold: DefaultSyncThreshold, autoComplete: true}
	for _, opt := range opts {
		opt(&o)
	}

	env := &testEnv{
		mem:       repositories.NewMemoryStore(),
		publisher: &recordingPublisher{},
		queue:     &fakeQueue{},
		archiver:  &recordingArchiver{},
	}
	env.faulty = &faultyStore{Store: env.mem}
	deps := Deps{Store: env.faulty, Publisher: env.publisher}

	startGeneration := func(ctx context.Context, id int) error {
		_, err := env.generation.StartGeneration(ctx, id)
		return err
	}
	env.ranking = NewRankingService(deps)
	env.results = NewResultService(deps, o.autoComplete, func(ctx context.Context, id int) error {
		_, err := env.lifecycle.Complete(ctx, id)
		return err
	})
	env.generation = NewGenerationService(deps, GenerationConfig{
		SyncThreshold: o.syncThreshold,
		MaxAttempts:   2,
		RetryBackoff:  time.Millisecond,
	}, env.queue, env.results, env.ranking)
	env.lifecycle = NewLifecycleService(deps, env.ranking, env.archiver, startGeneration)
	env.ledger = NewLedgerService(deps, AllowAll, startGeneration)
	return env
}

func withSyncThreshold(n int) func(*envOptions) {
	return func(o *envOptions) { o.syncThreshold = n }
}

func withoutAutoComplete() func(*envOptions) {
	return func(o *envOptions) { o.autoComplete = false }
}

func tournamentInput(format models.BracketFormat, maxParticipants int, cost int64) CreateTournamentInput {
	return CreateTournamentInput{
		Name:               "Spring Cup",
		Format:             format,
		ParticipantType:    models.FormatParticipantSolo,
		OrganizerID:        1,
		MinParticipants:    1,
		MaxParticipants:    maxParticipants,
		EntryCost:          cost,
		EnrollmentDeadline: time.Now().Add(24 * time.Hour),
		MatchDuration:      models.MatchDurationThree,
	}
}

// openTournament creates a tournament and walks it to READY_FOR_ENROLLMENT.
func (env *testEnv) openTournament(t *testing.T, in CreateTournamentInput) *models.Tournament {
	t.Helper()
	ctx := context.Background()
	tour, err := env.lifecycle.CreateTournament(ctx, in)
	require.NoError(t, err)
	_, err = env.lifecycle.SubmitForInstructor(ctx, tour.ID)
	require.NoError(t, err)
	tour, err = env.lifecycle.AcceptInstructor(ctx, tour.ID, 99)
	require.NoError(t, err)
	require.Equal(t, models.StatusReadyForEnrollment, tour.Status)
	return tour
}

// enrollPlayers enrolls participants 100+1 .. 100+n, funding them first
// when the tournament has an entry cost.
func (env *testEnv) enrollPlayers(t *testing.T, tour *models.Tournament, n int) []*models.Enrollment {
	t.Helper()
	ctx := context.Background()
	out := make([]*models.Enrollment, 0, n)
	for i := 1; i <= n; i++ {
		pid := 100 + i
		if tour.EntryCost > 0 {
			_, err := env.ledger.Deposit(ctx, pid, tour.EntryCost)
			require.NoError(t, err)
		}
		e, err := env.ledger.TryEnroll(ctx, tour.ID, pid, tour.EntryCost)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func (env *testEnv) tournament(t *testing.T, id int) *models.Tournament {
	t.Helper()
	tour, err := env.mem.Tournaments().GetByID(context.Background(), id)
	require.NoError(t, err)
	return tour
}

func (env *testEnv) matches(t *testing.T, tournamentID int, stage *models.MatchStage) []*models.Match {
	t.Helper()
	ms, err := env.mem.Matches().ListByTournament(context.Background(), tournamentID, stage)
	require.NoError(t, err)
	return ms
}

func (env *testEnv) balance(t *testing.T, ownerID int) int64 {
	t.Helper()
	w, err := env.ledger.Balance(context.Background(), ownerID)
	require.NoError(t, err)
	return w.Balance
}

// playOut settles every ready match with the lower seed winning until
// nothing ready is left.
func (env *testEnv) playOut(t *testing.T, tournamentID int, stage *models.MatchStage) {
	t.Helper()
	ctx := context.Background()
	for {
		progressed := false
		for _, m := range env.matches(t, tournamentID, stage) {
			if m.Outcome != models.OutcomeUnresolved || !m.Ready() {
				continue
			}
			outcome := models.OutcomeParticipantAWin
			if derefInt(m.SeedB) < derefInt(m.SeedA) {
				outcome = models.OutcomeParticipantBWin
			}
			_, err := env.results.RecordOutcome(ctx, OutcomeReport{MatchID: m.ID, Outcome: outcome, ReportedBy: 99, Authorized: true})
			require.NoError(t, err)
			progressed = true
		}
		if !progressed {
			return
		}
	}
}
