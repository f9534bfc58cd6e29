package scoring

import (
	"errors"
	"slices"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestRankCandidatesOrder(t *testing.T) {
	lb, err := RankCandidates([]Aggregate{
		{CandidateID: "2", TotalPoints: 150, Tier: TierNovice},
		{CandidateID: "1", TotalPoints: 300, Tier: TierExpert},
		{CandidateID: "3", TotalPoints: 150, Tier: TierNovice},
	}, "")
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}

	wantIDs := []string{"1", "2", "3"}
	for i, e := range lb.Entries {
		if e.CandidateID != wantIDs[i] {
			t.Errorf("position %d: got %s, want %s", i, e.CandidateID, wantIDs[i])
		}
		if e.Rank != i+1 {
			t.Errorf("position %d: rank %d", i, e.Rank)
		}
	}
	if lb.Filter != TierAll {
		t.Errorf("Filter = %q, want %q", lb.Filter, TierAll)
	}
}

func TestRankCandidatesTieKeepsInputOrder(t *testing.T) {
	in := []Aggregate{
		{CandidateID: "c", TotalPoints: 10},
		{CandidateID: "a", TotalPoints: 10},
		{CandidateID: "b", TotalPoints: 10},
	}
	lb, _ := RankCandidates(in, "all")
	for i, e := range lb.Entries {
		if e.CandidateID != in[i].CandidateID || e.Rank != i+1 {
			t.Errorf("position %d: got %s rank %d", i, e.CandidateID, e.Rank)
		}
	}
}

func TestRankCandidatesTierFilter(t *testing.T) {
	in := []Aggregate{
		{CandidateID: "a", TotalPoints: 300, Tier: TierExpert},
		{CandidateID: "b", TotalPoints: 120, Tier: TierNovice},
		{CandidateID: "c", TotalPoints: 140, Tier: TierNovice},
		{CandidateID: "d", TotalPoints: 0, Tier: TierBeginner},
	}

	lb, err := RankCandidates(in, "novice")
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}
	if lb.Filter != string(TierNovice) {
		t.Errorf("Filter = %q", lb.Filter)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].CandidateID != "c" || lb.Entries[1].CandidateID != "b" {
		t.Fatalf("unexpected entries %+v", lb.Entries)
	}

	st, err := lb.Standing("b")
	if err != nil {
		t.Fatalf("Standing: %v", err)
	}
	if st.Rank != 2 || st.Total != 2 {
		t.Errorf("Standing = %+v, want #2 of 2", st)
	}

	if _, err := lb.Standing("a"); !errors.Is(err, ErrNotRanked) {
		t.Errorf("expected ErrNotRanked, got %v", err)
	}

	if _, err := RankCandidates(in, "Grandmaster"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRankCandidatesZeroSubmissionsStillRanked(t *testing.T) {
	lb, _ := RankCandidates([]Aggregate{
		{CandidateID: "new", TotalPoints: 0, Tier: TierBeginner},
		{CandidateID: "old", TotalPoints: 40, Tier: TierBeginner, AccuracyPercent: 80, TestCount: 4},
	}, "")
	st, err := lb.Standing("new")
	if err != nil {
		t.Fatalf("Standing: %v", err)
	}
	if st.Rank != 2 || st.Total != 2 {
		t.Errorf("Standing = %+v", st)
	}
}

func TestRankCandidatesEmpty(t *testing.T) {
	lb, err := RankCandidates(nil, "")
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}
	if !lb.Empty() {
		t.Error("expected empty leaderboard")
	}
	if lb.Entries == nil {
		t.Error("entries should be an empty slice, not nil")
	}
	if _, err := lb.Standing("x"); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestRankCandidatesNegativePoints(t *testing.T) {
	_, err := RankCandidates([]Aggregate{{CandidateID: "x", TotalPoints: -1}}, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTop(t *testing.T) {
	lb, _ := RankCandidates([]Aggregate{
		{CandidateID: "a", TotalPoints: 3},
		{CandidateID: "b", TotalPoints: 2},
	}, "")
	if got := lb.Top(3); len(got) != 2 {
		t.Errorf("Top(3) returned %d entries", len(got))
	}
	if got := lb.Top(1); len(got) != 1 || got[0].CandidateID != "a" {
		t.Errorf("Top(1) = %+v", got)
	}
	if got := lb.Top(-1); len(got) != 0 {
		t.Errorf("Top(-1) = %+v", got)
	}
}

func TestBadges(t *testing.T) {
	tests := []struct {
		name  string
		entry LeaderboardEntry
		want  []string
	}{
		{"none", LeaderboardEntry{TotalPoints: 10, Tier: TierBeginner}, []string{}},
		{"all", LeaderboardEntry{TotalPoints: 301, TestCount: 21, AccuracyPercent: 95, Tier: TierExpert},
			[]string{BadgeCrown, BadgeTarget, BadgeZap, BadgeStar}},
		{"boundaries excluded", LeaderboardEntry{TotalPoints: 300, TestCount: 20, AccuracyPercent: 90, Tier: TierExpert},
			[]string{BadgeStar}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Badges(tt.entry); !slices.Equal(got, tt.want) {
				t.Errorf("Badges = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name   string
		scores []*float64
		want   float64
	}{
		{"no scores", nil, 0},
		{"all nil", []*float64{nil, nil}, 0},
		{"nil excluded", []*float64{fptr(10), nil, fptr(5)}, 75},
		{"single", []*float64{fptr(8.5)}, 85},
		{"zero counted", []*float64{fptr(0), fptr(10)}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accuracy(tt.scores); got != tt.want {
				t.Errorf("Accuracy = %v, want %v", got, tt.want)
			}
		})
	}
}
