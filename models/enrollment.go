package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive   EnrollmentStatus = "active"
	EnrollmentReleased EnrollmentStatus = "released"
)

// Enrollment is a participant's claim on a tournament slot. SeedIndex is the
// arrival order, contiguous from 1 among active enrollments.
type Enrollment struct {
	ID            int              `json:"id" db:"id"`
	TournamentID  int              `json:"tournament_id" db:"tournament_id"`
	ParticipantID int              `json:"participant_id" db:"participant_id"`
	SeedIndex     int              `json:"seed_index" db:"seed_index"`
	Cost          int64            `json:"cost" db:"cost"`
	Status        EnrollmentStatus `json:"status" db:"status"`
	Forfeit       bool             `json:"forfeit" db:"forfeit"`
	EnrolledAt    time.Time        `json:"enrolled_at" db:"enrolled_at"`
	ReleasedAt    *time.Time       `json:"released_at,omitempty" db:"released_at"`
}
