package services

import (
	"context"
	"io"
	"log/slog"

	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/repositories"
)

// EligibilityChecker answers whether a participant may enter a tournament.
// Licensing and specialization rules live behind it.
type EligibilityChecker interface {
	IsEligible(ctx context.Context, tournamentID, participantID int) (bool, error)
}

// EligibilityFunc adapts a plain function to EligibilityChecker.
type EligibilityFunc func(ctx context.Context, tournamentID, participantID int) (bool, error)

func (f EligibilityFunc) IsEligible(ctx context.Context, tournamentID, participantID int) (bool, error) {
	return f(ctx, tournamentID, participantID)
}

// AllowAll admits everyone.
var AllowAll = EligibilityFunc(func(context.Context, int, int) (bool, error) { return true, nil })

// EventPublisher pushes realtime events to tournament subscribers.
// brackets.Hub implements it.
type EventPublisher interface {
	Publish(tournamentID int, eventType string, payload interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(int, string, interface{}) {}

// AuditFact is one audit-worthy state change. Storage is external.
type AuditFact struct {
	Action        string `json:"action"`
	TournamentID  int    `json:"tournament_id,omitempty"`
	ParticipantID int    `json:"participant_id,omitempty"`
	EnrollmentID  int    `json:"enrollment_id,omitempty"`
	MatchID       int    `json:"match_id,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

type AuditSink interface {
	Record(ctx context.Context, fact AuditFact)
}

// LogAuditSink writes audit facts to a structured logger.
type LogAuditSink struct {
	Logger *slog.Logger
}

func (s LogAuditSink) Record(ctx context.Context, fact AuditFact) {
	s.Logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("action", fact.Action),
		slog.Int("tournament_id", fact.TournamentID),
		slog.Int("participant_id", fact.ParticipantID),
		slog.Int("enrollment_id", fact.EnrollmentID),
		slog.Int("match_id", fact.MatchID),
		slog.Int64("amount", fact.Amount),
		slog.String("detail", fact.Detail),
	)
}

// Audit actions.
const (
	AuditEnrolled          = "enrollment.created"
	AuditReleased          = "enrollment.released"
	AuditWithdrawn         = "enrollment.withdrawn"
	AuditDeposit           = "wallet.deposit"
	AuditRefund            = "wallet.refund"
	AuditStatusChanged     = "tournament.status_changed"
	AuditBracketGenerated  = "bracket.generated"
	AuditOutcomeRecorded   = "match.outcome_recorded"
	AuditStandingsComputed = "standings.computed"
)

// TournamentHook is called after a committed state change. Hooks run
// outside any transaction.
type TournamentHook func(ctx context.Context, tournamentID int) error

// Deps bundles the collaborators every service needs.
type Deps struct {
	Store     repositories.Store
	Publisher EventPublisher
	Audit     AuditSink
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Publisher == nil {
		d.Publisher = noopPublisher{}
	}
	if d.Audit == nil {
		d.Audit = LogAuditSink{Logger: d.Logger}
	}
	return d
}
