package models

import "time"

// TournamentStatus mirrors the tournament_status enum in the database.
type TournamentStatus string

const (
	StatusDraft              TournamentStatus = "DRAFT"
	StatusSeekingInstructor  TournamentStatus = "SEEKING_INSTRUCTOR"
	StatusReadyForEnrollment TournamentStatus = "READY_FOR_ENROLLMENT"
	StatusEnrollmentClosed   TournamentStatus = "ENROLLMENT_CLOSED"
	StatusInProgress         TournamentStatus = "IN_PROGRESS"
	StatusCompleted          TournamentStatus = "COMPLETED"
	StatusCancelled          TournamentStatus = "CANCELLED"
)

func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Tournament struct {
	ID                 int                   `json:"id" db:"id"`
	Name               string                `json:"name" db:"name"`
	Format             BracketFormat         `json:"format" db:"format"`
	ParticipantType    FormatParticipantType `json:"participant_type" db:"participant_type"`
	OrganizerID        int                   `json:"organizer_id" db:"organizer_id"`
	InstructorID       *int                  `json:"instructor_id,omitempty" db:"instructor_id"`
	MinParticipants    int                   `json:"min_participants" db:"min_participants"`
	MaxParticipants    int                   `json:"max_participants" db:"max_participants"`
	EntryCost          int64                 `json:"entry_cost" db:"entry_cost"`
	EnrollmentDeadline time.Time             `json:"enrollment_deadline" db:"enrollment_deadline"`
	MatchDuration      MatchDuration         `json:"match_duration" db:"match_duration"`
	Constraints        BracketConstraints    `json:"constraints" db:"-"`
	Status             TournamentStatus      `json:"status" db:"status"`
	EnrolledCount      int                   `json:"enrolled_count" db:"enrolled_count"`
	NextSeed           int                   `json:"-" db:"next_seed"`
	CloseReason        *string               `json:"close_reason,omitempty" db:"close_reason"`
	StandingsURL       *string               `json:"standings_url,omitempty" db:"standings_url"`
	CreatedAt          time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at" db:"updated_at"`
}

// Enrollment closing reasons.
const (
	CloseReasonDeadline = "deadline"
	CloseReasonCapacity = "capacity"
	CloseReasonManual   = "manual"
)
