package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

type RankingService interface {
	// Recompute ranks one scope from settled matches and replaces the stored
	// standings. A nil group means the whole tournament. Once the tournament
	// is completed the stored standings are returned unchanged.
	Recompute(ctx context.Context, tournamentID int, group *int) ([]*models.Standing, error)
	Standings(ctx context.Context, tournamentID int, group *int) ([]*models.Standing, error)
}

type rankingService struct {
	Deps
}

func NewRankingService(deps Deps) RankingService {
	return &rankingService{Deps: deps.withDefaults()}
}

func scopeFor(group *int) models.StandingScope {
	if group != nil {
		return models.ScopeGroup
	}
	return models.ScopeTournament
}

func (s *rankingService) Standings(ctx context.Context, tournamentID int, group *int) ([]*models.Standing, error) {
	if _, err := s.Store.Tournaments().GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err)
	}
	return s.Store.Standings().List(ctx, tournamentID, scopeFor(group), group)
}

func (s *rankingService) Recompute(ctx context.Context, tournamentID int, group *int) ([]*models.Standing, error) {
	var (
		result []*models.Standing
		frozen bool
	)
	scope := scopeFor(group)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		// the tournament lock orders us after any in-flight outcome
		t, err := tx.Tournaments().GetForUpdate(ctx, tournamentID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if t.Status == models.StatusCompleted {
			frozen = true
			result, err = tx.Standings().List(ctx, tournamentID, scope, group)
			return err
		}
		if t.Status != models.StatusInProgress {
			return fmt.Errorf("%w: tournament %d is %s", ErrTournamentNotReady, t.ID, t.Status)
		}

		standings, err := computeStandings(ctx, tx, t, group)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, st := range standings {
			st.ComputedAt = now
		}
		if err := tx.Standings().Replace(ctx, tournamentID, scope, group, standings); err != nil {
			return fmt.Errorf("failed to store standings: %w", err)
		}
		result = standings
		return nil
	})
	if err != nil {
		return nil, err
	}
	if frozen {
		return result, nil
	}

	s.Metrics.StandingsRecomputed()
	s.Logger.InfoContext(ctx, "standings recomputed",
		slog.Int("tournament_id", tournamentID),
		slog.String("scope", string(scope)),
		slog.Int("group", derefInt(group)),
		slog.Int("participants", len(result)))
	s.Audit.Record(ctx, AuditFact{
		Action:       AuditStandingsComputed,
		TournamentID: tournamentID,
		Detail:       fmt.Sprintf("scope=%s group=%d", scope, derefInt(group)),
	})
	s.Publisher.Publish(tournamentID, brackets.EventStandingsUpdated, map[string]interface{}{
		"scope":     scope,
		"group":     group,
		"standings": dereferenceStandings(result),
	})
	return result, nil
}

// computeStandings reads the scope's matches inside tx, so it sees either
// all or none of a concurrent settlement.
func computeStandings(ctx context.Context, tx repositories.Repositories, t *models.Tournament, group *int) ([]*models.Standing, error) {
	enrollments, err := tx.Enrollments().ListActive(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	entrants := entrantsFromEnrollments(enrollments)
	seeds := make(map[int]int, len(entrants))
	for _, e := range entrants {
		seeds[e.ParticipantID] = e.Seed
	}

	all, err := tx.Matches().ListByTournament(ctx, t.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	if group != nil {
		var inGroup []*models.Match
		for _, m := range all {
			if m.Stage == models.StageGroup && sameInt(m.GroupNumber, group) {
				inGroup = append(inGroup, m)
			}
		}
		if len(inGroup) == 0 {
			return nil, fmt.Errorf("%w: tournament %d has no group %d", ErrValidationFailed, t.ID, *group)
		}
		if err := requireSettled(inGroup); err != nil {
			return nil, err
		}
		return rankLeague(participantsOf(inGroup, seeds), inGroup), nil
	}

	if len(all) == 0 && len(entrants) == 1 {
		walkover := &models.Standing{ParticipantID: entrants[0].ParticipantID, SeedIndex: entrants[0].Seed, Rank: 1}
		return []*models.Standing{walkover}, nil
	}
	if err := requireSettled(all); err != nil {
		return nil, err
	}

	switch t.Format {
	case models.FormatLeague:
		return rankLeague(entrants, all), nil
	case models.FormatKnockout:
		return rankKnockout(entrants, all), nil
	case models.FormatKingOfCourt:
		return rankKingOfCourt(entrants, all), nil
	case models.FormatGroupStagePlacement:
		return placementStandings(ctx, tx, t, all, seeds)
	}
	return nil, fmt.Errorf("%w: unsupported format %s", ErrValidationFailed, t.Format)
}

func placementStandings(ctx context.Context, tx repositories.Repositories, t *models.Tournament, all []*models.Match, seeds map[int]int) ([]*models.Standing, error) {
	if _, err := tx.Generations().GetBatch(ctx, t.ID, models.StagePlacement); err != nil {
		return nil, fmt.Errorf("%w: placement wave has not been generated", ErrMatchesStillPending)
	}
	var groupMatches, placement []*models.Match
	for _, m := range all {
		switch m.Stage {
		case models.StageGroup:
			groupMatches = append(groupMatches, m)
		case models.StagePlacement:
			placement = append(placement, m)
		}
	}

	groups := groupNumbers(groupMatches)
	ranked := make([][]brackets.Entrant, 0, len(groups))
	for _, g := range groups {
		standings, err := tx.Standings().List(ctx, t.ID, models.ScopeGroup, intPtr(g))
		if err != nil {
			return nil, fmt.Errorf("failed to read group %d standings: %w", g, err)
		}
		entrants := make([]brackets.Entrant, 0, len(standings))
		for _, st := range standings {
			entrants = append(entrants, brackets.Entrant{ParticipantID: st.ParticipantID, Seed: st.SeedIndex})
		}
		ranked = append(ranked, entrants)
	}

	out := rankPlacement(brackets.PlacementTiers(ranked), placement)
	for _, st := range out {
		if seed, ok := seeds[st.ParticipantID]; ok {
			st.SeedIndex = seed
		}
	}
	return out, nil
}

func requireSettled(matches []*models.Match) error {
	pending := 0
	for _, m := range matches {
		if m.Outcome == models.OutcomeUnresolved {
			pending++
		}
	}
	if pending > 0 {
		return fmt.Errorf("%w: %d unresolved", ErrMatchesStillPending, pending)
	}
	return nil
}

// participantsOf lists everyone seated in the given matches, with their
// tournament seed.
func participantsOf(matches []*models.Match, seeds map[int]int) []brackets.Entrant {
	seen := make(map[int]bool)
	var out []brackets.Entrant
	add := func(p *int) {
		if p == nil || seen[*p] {
			return
		}
		seen[*p] = true
		out = append(out, brackets.Entrant{ParticipantID: *p, Seed: seeds[*p]})
	}
	for _, m := range matches {
		add(m.ParticipantA)
		add(m.ParticipantB)
	}
	return out
}
