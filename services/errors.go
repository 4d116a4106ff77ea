package services

import (
	"errors"

	"github.com/Dosada05/tournament-engine/repositories"
)

// ErrorKind groups errors by how a caller should react to them.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindConflict        ErrorKind = "conflict"
	KindPrecondition    ErrorKind = "precondition"
	KindPaymentRequired ErrorKind = "payment_required"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindTransient       ErrorKind = "transient"
	KindFatal           ErrorKind = "fatal"
	KindInternal        ErrorKind = "internal"
)

// Error is a service error with a stable reason code. The package-level
// values below are sentinels: wrap them with fmt.Errorf("%w: ...") to add
// detail and compare with errors.Is.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrValidationFailed = newError(KindValidation, "VALIDATION_FAILED", "validation failed")
	ErrCostMismatch     = newError(KindValidation, "COST_MISMATCH", "enrollment cost does not match the tournament entry cost")
	ErrInvalidOutcome   = newError(KindValidation, "INVALID_OUTCOME", "outcome must be PARTICIPANT_A_WIN, PARTICIPANT_B_WIN or DRAW")
	ErrDrawNotAllowed   = newError(KindValidation, "DRAW_NOT_ALLOWED", "draws are not allowed in this stage")
	ErrScoreMismatch    = newError(KindValidation, "SCORE_MISMATCH", "reported scores contradict the outcome")

	ErrAlreadyEnrolled          = newError(KindConflict, "ALREADY_ENROLLED", "participant is already enrolled in this tournament")
	ErrTournamentFull           = newError(KindConflict, "TOURNAMENT_FULL", "tournament has reached its participant limit")
	ErrAlreadySettled           = newError(KindConflict, "ALREADY_SETTLED", "match outcome has already been recorded")
	ErrGenerationAlreadyRunning = newError(KindConflict, "GENERATION_ALREADY_RUNNING", "bracket generation is already running for this tournament")
	ErrEnrollmentNotActive      = newError(KindConflict, "ENROLLMENT_NOT_ACTIVE", "enrollment has already been released")

	ErrTournamentNotOpen        = newError(KindPrecondition, "TOURNAMENT_NOT_OPEN", "tournament is not open for enrollment")
	ErrInsufficientParticipants = newError(KindPrecondition, "INSUFFICIENT_PARTICIPANTS", "not enough participants for this format")
	ErrMatchesStillPending      = newError(KindPrecondition, "MATCHES_STILL_PENDING", "some matches in scope are still unresolved")
	ErrMatchNotReady            = newError(KindPrecondition, "MATCH_NOT_READY", "match is still waiting for a participant")
	ErrInvalidTransition        = newError(KindPrecondition, "INVALID_TRANSITION", "invalid tournament status transition")
	ErrReleaseNotAllowed        = newError(KindPrecondition, "RELEASE_NOT_ALLOWED", "enrollment can only be released while enrollment is open")
	ErrWithdrawNotAllowed       = newError(KindPrecondition, "WITHDRAW_NOT_ALLOWED", "withdrawal is only possible after enrollment closed")
	ErrNotEligible              = newError(KindPrecondition, "NOT_ELIGIBLE", "participant is not eligible for this tournament")
	ErrTournamentNotReady       = newError(KindPrecondition, "TOURNAMENT_NOT_READY", "tournament is not in a state that allows this operation")

	ErrInsufficientFunds = newError(KindPaymentRequired, "INSUFFICIENT_FUNDS", "wallet balance is lower than the entry cost")

	ErrNotAuthorized = newError(KindForbidden, "NOT_AUTHORIZED", "caller is not allowed to perform this operation")

	ErrTournamentNotFound = newError(KindNotFound, "TOURNAMENT_NOT_FOUND", "tournament not found")
	ErrEnrollmentNotFound = newError(KindNotFound, "ENROLLMENT_NOT_FOUND", "enrollment not found")
	ErrMatchNotFound      = newError(KindNotFound, "MATCH_NOT_FOUND", "match not found")
	ErrJobNotFound        = newError(KindNotFound, "JOB_NOT_FOUND", "generation job not found")
	ErrWalletNotFound     = newError(KindNotFound, "WALLET_NOT_FOUND", "wallet not found")

	ErrWorkerUnavailable = newError(KindTransient, "WORKER_UNAVAILABLE", "generation queue is unavailable, retry later")

	ErrGenerationFailed = newError(KindFatal, "GENERATION_FAILED", "bracket generation failed")
)

// KindOf reports the kind of err, or KindInternal for errors outside the
// taxonomy.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// CodeOf returns the reason code of err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return "INTERNAL_ERROR"
}

// handleRepositoryError translates repository sentinels into service errors.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrEnrollmentNotFound):
		return ErrEnrollmentNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrJobNotFound):
		return ErrJobNotFound
	case errors.Is(err, repositories.ErrWalletNotFound):
		return ErrWalletNotFound
	case errors.Is(err, repositories.ErrEnrollmentConflict):
		return ErrAlreadyEnrolled
	case errors.Is(err, repositories.ErrMatchAlreadySettled):
		return ErrAlreadySettled
	case errors.Is(err, repositories.ErrNegativeBalance):
		return ErrInsufficientFunds
	case errors.Is(err, repositories.ErrJobConflict):
		return ErrGenerationAlreadyRunning
	}
	return err
}
