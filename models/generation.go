package models

import "time"

type GenerationJobStatus string

const (
	JobPending GenerationJobStatus = "pending"
	JobDone    GenerationJobStatus = "done"
	JobError   GenerationJobStatus = "error"
)

type GenerationPath string

const (
	PathSync  GenerationPath = "sync"
	PathAsync GenerationPath = "async"
)

// GenerationBatch guards against generating the same stage twice.
type GenerationBatch struct {
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Stage        MatchStage `json:"stage" db:"stage"`
	MatchCount   int        `json:"match_count" db:"match_count"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

type GenerationJob struct {
	ID           string              `json:"id" db:"id"`
	TournamentID int                 `json:"tournament_id" db:"tournament_id"`
	Stage        MatchStage          `json:"stage" db:"stage"`
	Path         GenerationPath      `json:"path" db:"path"`
	Status       GenerationJobStatus `json:"status" db:"status"`
	Attempts     int                 `json:"attempts" db:"attempts"`
	MatchCount   int                 `json:"match_count" db:"match_count"`
	Error        *string             `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}

// GenerationTask is the message carried by the generation queue.
type GenerationTask struct {
	JobID        string     `json:"job_id"`
	TournamentID int        `json:"tournament_id"`
	Stage        MatchStage `json:"stage"`
}
