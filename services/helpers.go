package services

import (
	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
)

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusDraft:              {models.StatusSeekingInstructor, models.StatusCancelled},
		models.StatusSeekingInstructor:  {models.StatusReadyForEnrollment, models.StatusCancelled},
		models.StatusReadyForEnrollment: {models.StatusEnrollmentClosed, models.StatusCancelled},
		models.StatusEnrollmentClosed:   {models.StatusInProgress, models.StatusCancelled},
		models.StatusInProgress:         {models.StatusCompleted, models.StatusCancelled},
		models.StatusCompleted:          {},
		models.StatusCancelled:          {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func intPtr(v int) *int {
	return &v
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// entrantsFromEnrollments converts active enrollments, already ordered by
// seed, into generator input.
func entrantsFromEnrollments(enrollments []*models.Enrollment) []brackets.Entrant {
	out := make([]brackets.Entrant, 0, len(enrollments))
	for _, e := range enrollments {
		out = append(out, brackets.Entrant{
			ParticipantID: e.ParticipantID,
			Seed:          e.SeedIndex,
			Forfeit:       e.Forfeit,
		})
	}
	return out
}

func dereferenceMatches(slice []*models.Match) []models.Match {
	if slice == nil {
		return []models.Match{}
	}
	result := make([]models.Match, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}

func dereferenceStandings(slice []*models.Standing) []models.Standing {
	if slice == nil {
		return []models.Standing{}
	}
	result := make([]models.Standing, len(slice))
	for i, ptr := range slice {
		if ptr != nil {
			result[i] = *ptr
		}
	}
	return result
}
