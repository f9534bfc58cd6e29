package scoring

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Badge names shown next to leaderboard entries.
const (
	BadgeCrown  = "crown"
	BadgeTarget = "target"
	BadgeZap    = "zap"
	BadgeStar   = "star"
)

// Aggregate is one candidate's totals as gathered from the data store.
type Aggregate struct {
	CandidateID     string
	DisplayName     string
	Username        string
	TotalPoints     int
	Tier            Tier
	AccuracyPercent float64
	TestCount       int
}

// LeaderboardEntry is a ranked Aggregate.
type LeaderboardEntry struct {
	Rank            int      `json:"rank"`
	CandidateID     string   `json:"candidate_id"`
	DisplayName     string   `json:"display_name"`
	Username        string   `json:"username"`
	TotalPoints     int      `json:"total_points"`
	Tier            Tier     `json:"tier"`
	AccuracyPercent float64  `json:"accuracy_percent"`
	TestCount       int      `json:"test_count"`
	Badges          []string `json:"badges"`
}

// Leaderboard is a ranked view of candidates, optionally limited to one tier.
type Leaderboard struct {
	Filter  string             `json:"filter"`
	Entries []LeaderboardEntry `json:"entries"`
}

// Standing is a candidate's place on a leaderboard, for "#Rank out of Total".
type Standing struct {
	CandidateID string `json:"candidate_id"`
	Rank        int    `json:"rank"`
	Total       int    `json:"total"`
}

// RankCandidates orders aggregates by points, highest first. Equal points keep
// their input order. A tierFilter of "" or "all" ranks everyone; otherwise
// only candidates in that tier are ranked.
func RankCandidates(aggregates []Aggregate, tierFilter string) (Leaderboard, error) {
	filter := strings.TrimSpace(tierFilter)
	var want Tier
	if filter != "" && !strings.EqualFold(filter, TierAll) {
		t, err := ParseTier(filter)
		if err != nil {
			return Leaderboard{}, err
		}
		want = t
	}

	kept := make([]Aggregate, 0, len(aggregates))
	for _, a := range aggregates {
		if a.TotalPoints < 0 {
			return Leaderboard{}, fmt.Errorf("%w: candidate %s has negative points", ErrInvalidInput, a.CandidateID)
		}
		if want != "" && a.Tier != want {
			continue
		}
		kept = append(kept, a)
	}
	slices.SortStableFunc(kept, func(a, b Aggregate) int {
		return cmp.Compare(b.TotalPoints, a.TotalPoints)
	})

	lb := Leaderboard{Filter: TierAll, Entries: make([]LeaderboardEntry, len(kept))}
	if want != "" {
		lb.Filter = string(want)
	}
	for i, a := range kept {
		e := LeaderboardEntry{
			Rank:            i + 1,
			CandidateID:     a.CandidateID,
			DisplayName:     a.DisplayName,
			Username:        a.Username,
			TotalPoints:     a.TotalPoints,
			Tier:            a.Tier,
			AccuracyPercent: a.AccuracyPercent,
			TestCount:       a.TestCount,
		}
		e.Badges = Badges(e)
		lb.Entries[i] = e
	}
	return lb, nil
}

// Empty reports whether no candidate was ranked.
func (lb Leaderboard) Empty() bool {
	return len(lb.Entries) == 0
}

// Standing returns the candidate's rank and the number of ranked candidates.
func (lb Leaderboard) Standing(candidateID string) (Standing, error) {
	if lb.Empty() {
		return Standing{}, ErrEmptyDataset
	}
	for _, e := range lb.Entries {
		if e.CandidateID == candidateID {
			return Standing{CandidateID: candidateID, Rank: e.Rank, Total: len(lb.Entries)}, nil
		}
	}
	return Standing{}, fmt.Errorf("%w: %s", ErrNotRanked, candidateID)
}

// Top returns at most n leading entries.
func (lb Leaderboard) Top(n int) []LeaderboardEntry {
	if n < 0 {
		n = 0
	}
	return lb.Entries[:min(n, len(lb.Entries))]
}

// Badges returns the achievement badges an entry has earned.
func Badges(e LeaderboardEntry) []string {
	badges := []string{}
	if e.TotalPoints > 300 {
		badges = append(badges, BadgeCrown)
	}
	if e.TestCount > 20 {
		badges = append(badges, BadgeTarget)
	}
	if e.AccuracyPercent > 90 {
		badges = append(badges, BadgeZap)
	}
	if e.Tier == TierExpert {
		badges = append(badges, BadgeStar)
	}
	return badges
}

// Accuracy averages per-submission quality scores (0-10) into a 0-100
// percentage. Nil scores are skipped; no scores at all gives 0.
func Accuracy(scores []*float64) float64 {
	var sum float64
	var n int
	for _, s := range scores {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return 0
	}
	return min(max(sum/float64(n)*10, 0), 100)
}
