package services

import (
	"sort"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
)

const (
	pointsWin  = 3
	pointsDraw = 1
)

// tallyMatches accumulates per-participant stats over settled matches.
// Participants that appear in matches but not in entrants are ignored.
func tallyMatches(entrants []brackets.Entrant, matches []*models.Match) map[int]*models.Standing {
	table := make(map[int]*models.Standing, len(entrants))
	for _, e := range entrants {
		table[e.ParticipantID] = &models.Standing{ParticipantID: e.ParticipantID, SeedIndex: e.Seed}
	}
	for _, m := range matches {
		if !m.Outcome.IsTerminal() || !m.Ready() {
			continue
		}
		a, b := table[*m.ParticipantA], table[*m.ParticipantB]
		scoreA, scoreB := derefInt(m.ScoreA), derefInt(m.ScoreB)
		record(a, scoreA, scoreB, m.Outcome, models.OutcomeParticipantAWin)
		record(b, scoreB, scoreA, m.Outcome, models.OutcomeParticipantBWin)
	}
	for _, s := range table {
		s.ScoreDifference = s.ScoreFor - s.ScoreAgainst
	}
	return table
}

func record(s *models.Standing, scored, conceded int, outcome, winsWhen models.MatchOutcome) {
	if s == nil {
		return
	}
	s.GamesPlayed++
	s.ScoreFor += scored
	s.ScoreAgainst += conceded
	switch outcome {
	case models.OutcomeDraw:
		s.Draws++
		s.Points += pointsDraw
	case winsWhen:
		s.Wins++
		s.Points += pointsWin
	default:
		s.Losses++
	}
}

func standingsInSeedOrder(entrants []brackets.Entrant, table map[int]*models.Standing) []*models.Standing {
	out := make([]*models.Standing, 0, len(entrants))
	for _, e := range entrants {
		out = append(out, table[e.ParticipantID])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SeedIndex < out[j].SeedIndex })
	return out
}

func assignRanks(list []*models.Standing) []*models.Standing {
	for i, s := range list {
		s.Rank = i + 1
	}
	return list
}

// rankLeague orders by points, then differential, then the head-to-head
// result when exactly two are tied, then seed.
func rankLeague(entrants []brackets.Entrant, matches []*models.Match) []*models.Standing {
	table := tallyMatches(entrants, matches)
	list := standingsInSeedOrder(entrants, table)
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.ScoreDifference != b.ScoreDifference {
			return a.ScoreDifference > b.ScoreDifference
		}
		return a.SeedIndex < b.SeedIndex
	})

	for i := 0; i < len(list); {
		j := i + 1
		for j < len(list) && list[j].Points == list[i].Points && list[j].ScoreDifference == list[i].ScoreDifference {
			j++
		}
		if j-i == 2 {
			first, second := headToHead(list[i].ParticipantID, list[i+1].ParticipantID, matches)
			if second > first {
				list[i], list[i+1] = list[i+1], list[i]
			}
		}
		i = j
	}
	return assignRanks(list)
}

// headToHead returns the points a and b took from their direct matches.
func headToHead(a, b int, matches []*models.Match) (int, int) {
	var pa, pb int
	for _, m := range matches {
		if !m.Outcome.IsTerminal() || !m.Ready() {
			continue
		}
		x, y := *m.ParticipantA, *m.ParticipantB
		if !(x == a && y == b) && !(x == b && y == a) {
			continue
		}
		switch {
		case m.Outcome == models.OutcomeDraw:
			pa += pointsDraw
			pb += pointsDraw
		case m.WinnerID != nil && *m.WinnerID == a:
			pa += pointsWin
		case m.WinnerID != nil && *m.WinnerID == b:
			pb += pointsWin
		}
	}
	return pa, pb
}

// rankKnockout orders by the round a participant was knocked out in, later
// is better. Losers of the same round are split by the margin of their
// losing match, then by seed. The third-place playoff decides places 3
// and 4.
func rankKnockout(entrants []brackets.Entrant, matches []*models.Match) []*models.Standing {
	table := tallyMatches(entrants, matches)
	list := standingsInSeedOrder(entrants, table)

	const champion = int(^uint(0) >> 1)
	reached := make(map[int]int, len(list))
	lossMargin := make(map[int]int, len(list))
	var thirdPlace *models.Match
	finalRound := 0
	for _, m := range matches {
		if m.IsThirdPlace() {
			thirdPlace = m
			continue
		}
		if m.Round > finalRound {
			finalRound = m.Round
		}
	}
	for _, m := range matches {
		if m.IsThirdPlace() || m.LoserID == nil {
			continue
		}
		loser := *m.LoserID
		reached[loser] = m.Round
		if m.ParticipantA != nil && *m.ParticipantA == loser {
			lossMargin[loser] = derefInt(m.ScoreA) - derefInt(m.ScoreB)
		} else {
			lossMargin[loser] = derefInt(m.ScoreB) - derefInt(m.ScoreA)
		}
		if m.Round == finalRound && m.WinnerID != nil {
			reached[*m.WinnerID] = champion
		}
	}
	for _, s := range list {
		r := reached[s.ParticipantID]
		if r != 0 && r != champion {
			round := r
			s.EliminatedInRound = &round
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		ra, rb := reached[a.ParticipantID], reached[b.ParticipantID]
		if ra != rb {
			return ra > rb
		}
		if lossMargin[a.ParticipantID] != lossMargin[b.ParticipantID] {
			return lossMargin[a.ParticipantID] > lossMargin[b.ParticipantID]
		}
		return a.SeedIndex < b.SeedIndex
	})

	if thirdPlace != nil && thirdPlace.WinnerID != nil && thirdPlace.LoserID != nil {
		wi, li := -1, -1
		for i, s := range list {
			switch s.ParticipantID {
			case *thirdPlace.WinnerID:
				wi = i
			case *thirdPlace.LoserID:
				li = i
			}
		}
		if wi > li && li >= 0 {
			list[wi], list[li] = list[li], list[wi]
		}
	}
	return assignRanks(list)
}

// rankKingOfCourt puts whoever holds the court after the last challenge
// first, then orders by wins, differential and seed.
func rankKingOfCourt(entrants []brackets.Entrant, matches []*models.Match) []*models.Standing {
	table := tallyMatches(entrants, matches)
	list := standingsInSeedOrder(entrants, table)

	holder := 0
	var last *models.Match
	for _, m := range matches {
		if last == nil || m.MatchNumber > last.MatchNumber {
			last = m
		}
	}
	if last != nil && last.WinnerID != nil {
		holder = *last.WinnerID
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if (a.ParticipantID == holder) != (b.ParticipantID == holder) {
			return a.ParticipantID == holder
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.ScoreDifference != b.ScoreDifference {
			return a.ScoreDifference > b.ScoreDifference
		}
		return a.SeedIndex < b.SeedIndex
	})
	return assignRanks(list)
}

// rankPlacement ranks a group-stage tournament overall: tiers in order,
// each tier ranked as a knockout over its own placement matches.
func rankPlacement(tiers [][]brackets.Entrant, placement []*models.Match) []*models.Standing {
	byTier := make(map[int][]*models.Match)
	for _, m := range placement {
		byTier[derefInt(m.GroupNumber)] = append(byTier[derefInt(m.GroupNumber)], m)
	}
	var out []*models.Standing
	for i, tier := range tiers {
		ranked := rankKnockout(tier, byTier[i+1])
		out = append(out, ranked...)
	}
	return assignRanks(out)
}
