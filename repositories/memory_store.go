package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

type standingKey struct {
	tournamentID int
	scope        models.StandingScope
	group        int
}

type batchKey struct {
	tournamentID int
	stage        models.MatchStage
}

type memoryState struct {
	tournaments  map[int]models.Tournament
	enrollments  map[int]models.Enrollment
	wallets      map[int]models.Wallet
	transactions []models.CreditTransaction
	matches      map[int]models.Match
	standings    map[standingKey][]models.Standing
	batches      map[batchKey]models.GenerationBatch
	jobs         map[string]models.GenerationJob

	lastTournamentID int
	lastEnrollmentID int
	lastMatchID      int
	lastStandingID   int
}

func newMemoryState() *memoryState {
	return &memoryState{
		tournaments: make(map[int]models.Tournament),
		enrollments: make(map[int]models.Enrollment),
		wallets:     make(map[int]models.Wallet),
		matches:     make(map[int]models.Match),
		standings:   make(map[standingKey][]models.Standing),
		batches:     make(map[batchKey]models.GenerationBatch),
		jobs:        make(map[string]models.GenerationJob),
	}
}

// clone copies the state. Rows are stored by value and pointer fields are
// always replaced rather than written through, so a shallow copy of each
// row is enough.
func (st *memoryState) clone() *memoryState {
	c := *st
	c.tournaments = make(map[int]models.Tournament, len(st.tournaments))
	for k, v := range st.tournaments {
		c.tournaments[k] = v
	}
	c.enrollments = make(map[int]models.Enrollment, len(st.enrollments))
	for k, v := range st.enrollments {
		c.enrollments[k] = v
	}
	c.wallets = make(map[int]models.Wallet, len(st.wallets))
	for k, v := range st.wallets {
		c.wallets[k] = v
	}
	c.transactions = append([]models.CreditTransaction(nil), st.transactions...)
	c.matches = make(map[int]models.Match, len(st.matches))
	for k, v := range st.matches {
		c.matches[k] = v
	}
	c.standings = make(map[standingKey][]models.Standing, len(st.standings))
	for k, v := range st.standings {
		c.standings[k] = append([]models.Standing(nil), v...)
	}
	c.batches = make(map[batchKey]models.GenerationBatch, len(st.batches))
	for k, v := range st.batches {
		c.batches[k] = v
	}
	c.jobs = make(map[string]models.GenerationJob, len(st.jobs))
	for k, v := range st.jobs {
		c.jobs[k] = v
	}
	return &c
}

// MemoryStore keeps everything in process. A transaction holds the store
// mutex for its whole duration and restores a snapshot on error, which
// gives the same all-or-nothing behaviour as the Postgres store.
type MemoryStore struct {
	*memRepositories
	mu    sync.RWMutex
	state *memoryState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemoryState(), now: time.Now}
	s.memRepositories = &memRepositories{store: s}
	return s
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &memRepositories{store: s, inTx: true})
}

type memRepositories struct {
	store *MemoryStore
	inTx  bool
}

func (r *memRepositories) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memRepositories) rlock() func() {
	if r.inTx {
		return func() {}
	}
	r.store.mu.RLock()
	return r.store.mu.RUnlock
}

func (r *memRepositories) Tournaments() TournamentRepository { return &memTournamentRepository{r} }
func (r *memRepositories) Enrollments() EnrollmentRepository { return &memEnrollmentRepository{r} }
func (r *memRepositories) Wallets() WalletRepository         { return &memWalletRepository{r} }
func (r *memRepositories) Matches() MatchRepository          { return &memMatchRepository{r} }
func (r *memRepositories) Standings() StandingRepository     { return &memStandingRepository{r} }
func (r *memRepositories) Generations() GenerationRepository { return &memGenerationRepository{r} }

type memTournamentRepository struct{ *memRepositories }

func (r *memTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	defer r.lock()()
	st := r.store.state
	st.lastTournamentID++
	t.ID = st.lastTournamentID
	t.CreatedAt = r.store.now()
	t.UpdatedAt = t.CreatedAt
	st.tournaments[t.ID] = *t
	return nil
}

func (r *memTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	defer r.rlock()()
	t, ok := r.store.state.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return &t, nil
}

func (r *memTournamentRepository) GetForUpdate(ctx context.Context, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r *memTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	defer r.lock()()
	cur, ok := r.store.state.tournaments[t.ID]
	if !ok {
		return ErrTournamentNotFound
	}
	cur.Status = t.Status
	cur.InstructorID = t.InstructorID
	cur.EnrolledCount = t.EnrolledCount
	cur.NextSeed = t.NextSeed
	cur.CloseReason = t.CloseReason
	cur.StandingsURL = t.StandingsURL
	cur.UpdatedAt = r.store.now()
	t.UpdatedAt = cur.UpdatedAt
	r.store.state.tournaments[t.ID] = cur
	return nil
}

func (r *memTournamentRepository) ListDueForClose(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	defer r.rlock()()
	var out []*models.Tournament
	for _, t := range r.store.state.tournaments {
		if t.Status == models.StatusReadyForEnrollment && !t.EnrollmentDeadline.After(now) {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnrollmentDeadline.Equal(out[j].EnrollmentDeadline) {
			return out[i].EnrollmentDeadline.Before(out[j].EnrollmentDeadline)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memEnrollmentRepository struct{ *memRepositories }

func (r *memEnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	defer r.lock()()
	st := r.store.state
	if e.Status == models.EnrollmentActive {
		for _, cur := range st.enrollments {
			if cur.TournamentID == e.TournamentID && cur.ParticipantID == e.ParticipantID && cur.Status == models.EnrollmentActive {
				return ErrEnrollmentConflict
			}
		}
	}
	if _, ok := st.tournaments[e.TournamentID]; !ok {
		return ErrTournamentNotFound
	}
	st.lastEnrollmentID++
	e.ID = st.lastEnrollmentID
	e.EnrolledAt = r.store.now()
	st.enrollments[e.ID] = *e
	return nil
}

func (r *memEnrollmentRepository) GetByID(ctx context.Context, id int) (*models.Enrollment, error) {
	defer r.rlock()()
	e, ok := r.store.state.enrollments[id]
	if !ok {
		return nil, ErrEnrollmentNotFound
	}
	return &e, nil
}

func (r *memEnrollmentRepository) GetForUpdate(ctx context.Context, id int) (*models.Enrollment, error) {
	return r.GetByID(ctx, id)
}

func (r *memEnrollmentRepository) GetActive(ctx context.Context, tournamentID, participantID int) (*models.Enrollment, error) {
	defer r.rlock()()
	for _, e := range r.store.state.enrollments {
		if e.TournamentID == tournamentID && e.ParticipantID == participantID && e.Status == models.EnrollmentActive {
			return &e, nil
		}
	}
	return nil, ErrEnrollmentNotFound
}

func (r *memEnrollmentRepository) ListActive(ctx context.Context, tournamentID int) ([]*models.Enrollment, error) {
	defer r.rlock()()
	out := make([]*models.Enrollment, 0)
	for _, e := range r.store.state.enrollments {
		if e.TournamentID == tournamentID && e.Status == models.EnrollmentActive {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeedIndex < out[j].SeedIndex })
	return out, nil
}

func (r *memEnrollmentRepository) Update(ctx context.Context, e *models.Enrollment) error {
	defer r.lock()()
	cur, ok := r.store.state.enrollments[e.ID]
	if !ok {
		return ErrEnrollmentNotFound
	}
	cur.SeedIndex = e.SeedIndex
	cur.Status = e.Status
	cur.Forfeit = e.Forfeit
	cur.ReleasedAt = e.ReleasedAt
	r.store.state.enrollments[e.ID] = cur
	return nil
}

func (r *memEnrollmentRepository) CompactSeeds(ctx context.Context, tournamentID, afterSeed int) error {
	defer r.lock()()
	for id, e := range r.store.state.enrollments {
		if e.TournamentID == tournamentID && e.Status == models.EnrollmentActive && e.SeedIndex > afterSeed {
			e.SeedIndex--
			r.store.state.enrollments[id] = e
		}
	}
	return nil
}

type memWalletRepository struct{ *memRepositories }

func (r *memWalletRepository) Ensure(ctx context.Context, ownerID int) error {
	defer r.lock()()
	if _, ok := r.store.state.wallets[ownerID]; !ok {
		r.store.state.wallets[ownerID] = models.Wallet{OwnerID: ownerID, UpdatedAt: r.store.now()}
	}
	return nil
}

func (r *memWalletRepository) Get(ctx context.Context, ownerID int) (*models.Wallet, error) {
	defer r.rlock()()
	w, ok := r.store.state.wallets[ownerID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return &w, nil
}

func (r *memWalletRepository) GetForUpdate(ctx context.Context, ownerID int) (*models.Wallet, error) {
	return r.Get(ctx, ownerID)
}

func (r *memWalletRepository) UpdateBalance(ctx context.Context, ownerID int, balance int64) error {
	defer r.lock()()
	w, ok := r.store.state.wallets[ownerID]
	if !ok {
		return ErrWalletNotFound
	}
	if balance < 0 {
		return ErrNegativeBalance
	}
	w.Balance = balance
	w.UpdatedAt = r.store.now()
	r.store.state.wallets[ownerID] = w
	return nil
}

func (r *memWalletRepository) CreateTransaction(ctx context.Context, tx *models.CreditTransaction) error {
	defer r.lock()()
	if _, ok := r.store.state.wallets[tx.OwnerID]; !ok {
		return ErrWalletNotFound
	}
	tx.CreatedAt = r.store.now()
	r.store.state.transactions = append(r.store.state.transactions, *tx)
	return nil
}

func (r *memWalletRepository) ListTransactions(ctx context.Context, ownerID, limit int) ([]*models.CreditTransaction, error) {
	defer r.rlock()()
	out := make([]*models.CreditTransaction, 0)
	txs := r.store.state.transactions
	for i := len(txs) - 1; i >= 0 && len(out) < limit; i-- {
		if txs[i].OwnerID == ownerID {
			tx := txs[i]
			out = append(out, &tx)
		}
	}
	return out, nil
}

type memMatchRepository struct{ *memRepositories }

func (r *memMatchRepository) Create(ctx context.Context, m *models.Match) error {
	defer r.lock()()
	st := r.store.state
	if _, ok := st.tournaments[m.TournamentID]; !ok {
		return ErrTournamentNotFound
	}
	st.lastMatchID++
	m.ID = st.lastMatchID
	m.CreatedAt = r.store.now()
	st.matches[m.ID] = *m
	return nil
}

func (r *memMatchRepository) UpdateNextMatchInfo(ctx context.Context, matchID int, winnerTo, winnerSlot, loserTo, loserSlot *int) error {
	defer r.lock()()
	m, ok := r.store.state.matches[matchID]
	if !ok {
		return ErrMatchNotFound
	}
	m.WinnerToMatch, m.WinnerToSlot = winnerTo, winnerSlot
	m.LoserToMatch, m.LoserToSlot = loserTo, loserSlot
	r.store.state.matches[matchID] = m
	return nil
}

func (r *memMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	defer r.rlock()()
	m, ok := r.store.state.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return &m, nil
}

func (r *memMatchRepository) GetForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return r.GetByID(ctx, id)
}

func (r *memMatchRepository) ListByTournament(ctx context.Context, tournamentID int, stage *models.MatchStage) ([]*models.Match, error) {
	defer r.rlock()()
	out := make([]*models.Match, 0)
	for _, m := range r.store.state.matches {
		if m.TournamentID != tournamentID || (stage != nil && m.Stage != *stage) {
			continue
		}
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMatchRepository) Settle(ctx context.Context, m *models.Match) error {
	defer r.lock()()
	cur, ok := r.store.state.matches[m.ID]
	if !ok || cur.Outcome != models.OutcomeUnresolved {
		return ErrMatchAlreadySettled
	}
	cur.Outcome = m.Outcome
	cur.ScoreA, cur.ScoreB = m.ScoreA, m.ScoreB
	cur.WinnerID, cur.LoserID = m.WinnerID, m.LoserID
	cur.ReportedBy = m.ReportedBy
	cur.SettledAt = m.SettledAt
	r.store.state.matches[m.ID] = cur
	return nil
}

func (r *memMatchRepository) SetSlot(ctx context.Context, matchID, slot, participantID int, seed *int) error {
	defer r.lock()()
	m, ok := r.store.state.matches[matchID]
	if !ok || m.Outcome != models.OutcomeUnresolved {
		return ErrMatchNotFound
	}
	pid := participantID
	switch slot {
	case models.SlotA:
		m.ParticipantA, m.SeedA = &pid, seed
	case models.SlotB:
		m.ParticipantB, m.SeedB = &pid, seed
	default:
		return ErrMatchNotFound
	}
	r.store.state.matches[matchID] = m
	return nil
}

func (r *memMatchRepository) CountUnresolved(ctx context.Context, tournamentID int) (int, error) {
	defer r.rlock()()
	n := 0
	for _, m := range r.store.state.matches {
		if m.TournamentID == tournamentID && m.Outcome == models.OutcomeUnresolved {
			n++
		}
	}
	return n, nil
}

type memStandingRepository struct{ *memRepositories }

func keyFor(tournamentID int, scope models.StandingScope, group *int) standingKey {
	k := standingKey{tournamentID: tournamentID, scope: scope, group: -1}
	if group != nil {
		k.group = *group
	}
	return k
}

func (r *memStandingRepository) Replace(ctx context.Context, tournamentID int, scope models.StandingScope, group *int, standings []*models.Standing) error {
	defer r.lock()()
	rows := make([]models.Standing, len(standings))
	for i, s := range standings {
		r.store.state.lastStandingID++
		s.ID = r.store.state.lastStandingID
		s.TournamentID = tournamentID
		s.Scope = scope
		s.GroupNumber = group
		rows[i] = *s
	}
	r.store.state.standings[keyFor(tournamentID, scope, group)] = rows
	return nil
}

func (r *memStandingRepository) List(ctx context.Context, tournamentID int, scope models.StandingScope, group *int) ([]*models.Standing, error) {
	defer r.rlock()()
	rows := r.store.state.standings[keyFor(tournamentID, scope, group)]
	out := make([]*models.Standing, len(rows))
	for i := range rows {
		s := rows[i]
		out[i] = &s
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

type memGenerationRepository struct{ *memRepositories }

func (r *memGenerationRepository) CreateBatch(ctx context.Context, b *models.GenerationBatch) error {
	defer r.lock()()
	k := batchKey{b.TournamentID, b.Stage}
	if _, ok := r.store.state.batches[k]; ok {
		return ErrBatchExists
	}
	b.CreatedAt = r.store.now()
	r.store.state.batches[k] = *b
	return nil
}

func (r *memGenerationRepository) GetBatch(ctx context.Context, tournamentID int, stage models.MatchStage) (*models.GenerationBatch, error) {
	defer r.rlock()()
	b, ok := r.store.state.batches[batchKey{tournamentID, stage}]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return &b, nil
}

func (r *memGenerationRepository) CreateJob(ctx context.Context, j *models.GenerationJob) error {
	defer r.lock()()
	if j.Status == models.JobPending {
		for _, cur := range r.store.state.jobs {
			if cur.TournamentID == j.TournamentID && cur.Stage == j.Stage && cur.Status == models.JobPending {
				return ErrJobConflict
			}
		}
	}
	j.CreatedAt = r.store.now()
	j.UpdatedAt = j.CreatedAt
	r.store.state.jobs[j.ID] = *j
	return nil
}

func (r *memGenerationRepository) GetJob(ctx context.Context, id string) (*models.GenerationJob, error) {
	defer r.rlock()()
	j, ok := r.store.state.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &j, nil
}

func (r *memGenerationRepository) FindPendingJob(ctx context.Context, tournamentID int, stage models.MatchStage) (*models.GenerationJob, error) {
	defer r.rlock()()
	for _, j := range r.store.state.jobs {
		if j.TournamentID == tournamentID && j.Stage == stage && j.Status == models.JobPending {
			return &j, nil
		}
	}
	return nil, ErrJobNotFound
}

func (r *memGenerationRepository) UpdateJob(ctx context.Context, j *models.GenerationJob) error {
	defer r.lock()()
	cur, ok := r.store.state.jobs[j.ID]
	if !ok {
		return ErrJobNotFound
	}
	cur.Status = j.Status
	cur.Attempts = j.Attempts
	cur.MatchCount = j.MatchCount
	cur.Error = j.Error
	cur.UpdatedAt = r.store.now()
	j.UpdatedAt = cur.UpdatedAt
	r.store.state.jobs[j.ID] = cur
	return nil
}

func (r *memGenerationRepository) ListStalePending(ctx context.Context, updatedBefore time.Time) ([]*models.GenerationJob, error) {
	defer r.rlock()()
	var out []*models.GenerationJob
	for _, j := range r.store.state.jobs {
		if j.Status == models.JobPending && j.Path == models.PathAsync && j.UpdatedAt.Before(updatedBefore) {
			j := j
			out = append(out, &j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
