package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "routes-test-secret"

type apiEnv struct {
	server *httptest.Server
	hub    *brackets.Hub
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := brackets.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	deps := services.Deps{Store: repositories.NewMemoryStore(), Publisher: hub, Metrics: m, Logger: logger}
	var (
		generation services.GenerationService
		lifecycle  services.LifecycleService
	)
	start := func(ctx context.Context, id int) error {
		_, err := generation.StartGeneration(ctx, id)
		return err
	}
	ranking := services.NewRankingService(deps)
	results := services.NewResultService(deps, true, func(ctx context.Context, id int) error {
		_, err := lifecycle.Complete(ctx, id)
		return err
	})
	generation = services.NewGenerationService(deps, services.GenerationConfig{}, nil, results, ranking)
	lifecycle = services.NewLifecycleService(deps, ranking, nil, start)
	ledger := services.NewLedgerService(deps, services.AllowAll, start)

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Tournaments: handlers.NewTournamentHandler(lifecycle),
		Enrollments: handlers.NewEnrollmentHandler(ledger, lifecycle),
		Generation:  handlers.NewGenerationHandler(generation),
		Matches:     handlers.NewMatchHandler(results),
		Standings:   handlers.NewStandingsHandler(ranking),
		Wallets:     handlers.NewWalletHandler(ledger),
		WebSocket:   handlers.NewWebSocketHandler(hub, generation, nil, logger),
	}, Options{JWTSecret: secret, Metrics: m, Gatherer: reg, Logger: logger})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiEnv{server: srv, hub: hub}
}

func token(t *testing.T, userID int, role middleware.Role) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, userID, role)
	require.NoError(t, err)
	return tok
}

func (env *apiEnv) call(t *testing.T, method, path, tok string, body interface{}) (int, map[string]json.RawMessage) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.server.URL+path, rd)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]json.RawMessage{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(bytes.TrimSpace(raw)) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst))
}

func errorCode(t *testing.T, body map[string]json.RawMessage) string {
	t.Helper()
	var code string
	decode(t, body["code"], &code)
	return code
}

// openKnockout creates a 4-player knockout with an entry cost of 10 and
// walks it to READY_FOR_ENROLLMENT.
func (env *apiEnv) openKnockout(t *testing.T) int {
	t.Helper()
	organizer := token(t, 1, middleware.RoleOrganizer)
	status, body := env.call(t, http.MethodPost, "/tournaments", organizer, map[string]interface{}{
		"name":                "Autumn Open",
		"format":              models.FormatKnockout,
		"participant_type":    models.FormatParticipantSolo,
		"min_participants":    2,
		"max_participants":    4,
		"entry_cost":          10,
		"enrollment_deadline": time.Now().Add(time.Hour),
		"match_duration":      3,
	})
	require.Equal(t, http.StatusCreated, status)
	var tour models.Tournament
	decode(t, body["tournament"], &tour)
	assert.Equal(t, 1, tour.OrganizerID)
	assert.Equal(t, models.StatusDraft, tour.Status)

	id := strconv.Itoa(tour.ID)
	status, _ = env.call(t, http.MethodPost, "/tournaments/"+id+"/submit", organizer, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = env.call(t, http.MethodPost, "/tournaments/"+id+"/accept", token(t, 50, middleware.RoleInstructor), nil)
	require.Equal(t, http.StatusOK, status)
	decode(t, body["tournament"], &tour)
	require.Equal(t, models.StatusReadyForEnrollment, tour.Status)
	require.NotNil(t, tour.InstructorID)
	assert.Equal(t, 50, *tour.InstructorID)
	return tour.ID
}

func TestTournamentFlowOverHTTP(t *testing.T) {
	env := newAPI(t)
	tid := env.openKnockout(t)
	id := strconv.Itoa(tid)
	admin := token(t, 1000, middleware.RoleAdmin)

	for pid := 101; pid <= 104; pid++ {
		status, _ := env.call(t, http.MethodPost, "/wallets/"+strconv.Itoa(pid)+"/deposit", admin, map[string]int{"amount": 10})
		require.Equal(t, http.StatusOK, status)
	}

	first := token(t, 101, middleware.RolePlayer)
	status, body := env.call(t, http.MethodPost, "/tournaments/"+id+"/enrollments", first, map[string]int{"cost": 10})
	require.Equal(t, http.StatusCreated, status)
	var enrollment models.Enrollment
	decode(t, body["enrollment"], &enrollment)

	status, body = env.call(t, http.MethodPost, "/tournaments/"+id+"/enrollments", first, map[string]int{"cost": 10})
	require.Equal(t, http.StatusConflict, status, "repeat enrollment returns the existing record")
	assert.Equal(t, "ALREADY_ENROLLED", errorCode(t, body))
	var again models.Enrollment
	decode(t, body["enrollment"], &again)
	assert.Equal(t, enrollment.ID, again.ID)

	status, body = env.call(t, http.MethodPost, "/tournaments/"+id+"/enrollments", token(t, 102, middleware.RolePlayer), map[string]int{"cost": 5})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "COST_MISMATCH", errorCode(t, body))

	for pid := 102; pid <= 104; pid++ {
		status, _ = env.call(t, http.MethodPost, "/tournaments/"+id+"/enrollments", token(t, pid, middleware.RolePlayer), map[string]int{"cost": 10})
		require.Equal(t, http.StatusCreated, status)
	}

	// capacity closed enrollment and the bracket was built synchronously
	status, body = env.call(t, http.MethodGet, "/tournaments/"+id+"/bracket", "", nil)
	require.Equal(t, http.StatusOK, status)
	var matches []models.Match
	decode(t, body["matches"], &matches)
	require.Len(t, matches, 3)

	var semi models.Match
	for _, m := range matches {
		if m.Round == 1 {
			semi = m
			break
		}
	}
	outcome := map[string]interface{}{"outcome": models.OutcomeParticipantAWin, "score_a": 3, "score_b": 1}
	path := "/matches/" + strconv.Itoa(semi.ID) + "/outcome"

	status, body = env.call(t, http.MethodPost, path, first, outcome)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_AUTHORIZED", errorCode(t, body))

	instructor := token(t, 50, middleware.RoleInstructor)
	status, body = env.call(t, http.MethodPost, path, instructor, outcome)
	require.Equal(t, http.StatusOK, status)
	var settled models.Match
	decode(t, body["match"], &settled)
	assert.Equal(t, models.OutcomeParticipantAWin, settled.Outcome)

	status, body = env.call(t, http.MethodPost, path, instructor, outcome)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_SETTLED", errorCode(t, body))

	status, body = env.call(t, http.MethodGet, "/wallets/101", first, nil)
	require.Equal(t, http.StatusOK, status)
	var wallet models.Wallet
	decode(t, body["wallet"], &wallet)
	assert.Zero(t, wallet.Balance)
	var txs []models.CreditTransaction
	decode(t, body["transactions"], &txs)
	assert.Len(t, txs, 2)
}

func TestAuthAndErrorMapping(t *testing.T) {
	env := newAPI(t)

	status, _ := env.call(t, http.MethodPost, "/tournaments", "", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.call(t, http.MethodPost, "/tournaments", token(t, 5, middleware.RolePlayer), map[string]string{"name": "x"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.call(t, http.MethodPost, "/tournaments", token(t, 1, middleware.RoleOrganizer), map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = env.call(t, http.MethodPost, "/tournaments", token(t, 1, middleware.RoleOrganizer), map[string]string{"colour": "red"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, body))

	status, body = env.call(t, http.MethodGet, "/tournaments/999", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "TOURNAMENT_NOT_FOUND", errorCode(t, body))

	status, _ = env.call(t, http.MethodGet, "/tournaments/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.call(t, http.MethodGet, "/generation-jobs/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "JOB_NOT_FOUND", errorCode(t, body))

	status, _ = env.call(t, http.MethodGet, "/wallets/7", token(t, 8, middleware.RolePlayer), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.call(t, http.MethodPost, "/wallets/8/deposit", token(t, 8, middleware.RolePlayer), map[string]int{"amount": 100})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestEnrollmentOwnership(t *testing.T) {
	env := newAPI(t)
	id := strconv.Itoa(env.openKnockout(t))
	admin := token(t, 1000, middleware.RoleAdmin)

	enrollmentIDs := map[int]string{}
	for pid := 101; pid <= 102; pid++ {
		status, _ := env.call(t, http.MethodPost, "/wallets/"+strconv.Itoa(pid)+"/deposit", admin, map[string]int{"amount": 10})
		require.Equal(t, http.StatusOK, status)
		status, body := env.call(t, http.MethodPost, "/tournaments/"+id+"/enrollments", token(t, pid, middleware.RolePlayer), map[string]int{"cost": 10})
		require.Equal(t, http.StatusCreated, status)
		var e models.Enrollment
		decode(t, body["enrollment"], &e)
		enrollmentIDs[pid] = strconv.Itoa(e.ID)
	}

	other := token(t, 102, middleware.RolePlayer)
	status, body := env.call(t, http.MethodDelete, "/enrollments/"+enrollmentIDs[101], other, nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_AUTHORIZED", errorCode(t, body))

	status, body = env.call(t, http.MethodPost, "/enrollments/"+enrollmentIDs[101]+"/withdraw", other, nil)
	require.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_AUTHORIZED", errorCode(t, body))

	status, body = env.call(t, http.MethodDelete, "/enrollments/9999", other, nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "ENROLLMENT_NOT_FOUND", errorCode(t, body))

	status, _ = env.call(t, http.MethodDelete, "/enrollments/"+enrollmentIDs[101], token(t, 101, middleware.RolePlayer), nil)
	assert.Equal(t, http.StatusNoContent, status)

	// the organizer may release anyone from their tournament
	status, _ = env.call(t, http.MethodDelete, "/enrollments/"+enrollmentIDs[102], token(t, 1, middleware.RoleOrganizer), nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = env.call(t, http.MethodGet, "/wallets/102", other, nil)
	require.Equal(t, http.StatusOK, status)
	var wallet models.Wallet
	decode(t, body["wallet"], &wallet)
	assert.Equal(t, int64(10), wallet.Balance)
}

func TestPreconditionFailures(t *testing.T) {
	env := newAPI(t)
	tid := env.openKnockout(t)
	id := strconv.Itoa(tid)
	organizer := token(t, 1, middleware.RoleOrganizer)

	status, body := env.call(t, http.MethodPost, "/tournaments/"+id+"/generation", organizer, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "TOURNAMENT_NOT_READY", errorCode(t, body))

	status, body = env.call(t, http.MethodPost, "/tournaments/"+id+"/enrollments", token(t, 101, middleware.RolePlayer), map[string]int{"cost": 10})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", errorCode(t, body))

	status, _ = env.call(t, http.MethodPost, "/tournaments/"+id+"/cancel", organizer, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = env.call(t, http.MethodPost, "/tournaments/"+id+"/close", organizer, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, body))
}

func TestMetricsAndHealth(t *testing.T) {
	env := newAPI(t)
	env.call(t, http.MethodGet, "/tournaments/1", "", nil)

	resp, err := env.server.Client().Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "tournament_engine_")

	resp, err = env.server.Client().Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWebSocketSnapshotAndEvents(t *testing.T) {
	env := newAPI(t)
	tid := env.openKnockout(t)
	id := strconv.Itoa(tid)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/tournaments/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg brackets.WebSocketMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, brackets.EventBracketSnapshot, msg.Type)

	room := brackets.RoomForTournament(tid)
	require.Eventually(t, func() bool { return env.hub.ClientCount(room) == 1 }, time.Second, 5*time.Millisecond)

	status, _ := env.call(t, http.MethodPost, "/tournaments/"+id+"/cancel", token(t, 1, middleware.RoleOrganizer), nil)
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, brackets.EventTournamentStatus, msg.Type)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(env.server.URL, "http")+"/ws/tournaments/999", nil)
	require.Error(t, err)
}
