package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// handlePQError maps constraint violations onto repository sentinels.
func handlePQError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation:
		switch pqErr.Constraint {
		case "enrollments_active_participant_key":
			return ErrEnrollmentConflict
		case "generation_batches_pkey":
			return ErrBatchExists
		case "generation_jobs_pending_key":
			return ErrJobConflict
		}
	case pgerrcode.CheckViolation:
		if pqErr.Constraint == "wallets_balance_non_negative" {
			return ErrNegativeBalance
		}
	case pgerrcode.ForeignKeyViolation:
		if pqErr.Constraint == "enrollments_tournament_id_fkey" || pqErr.Constraint == "matches_tournament_id_fkey" {
			return ErrTournamentNotFound
		}
	}
	return err
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
