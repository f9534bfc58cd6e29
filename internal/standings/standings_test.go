package standings

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
	"github.com/pavelanni/jsat/internal/store"
)

type fakeSource struct {
	profiles []model.Profile
	snaps    map[string]model.CandidateSnapshot
	failID   string
	calls    atomic.Int32
}

func (f *fakeSource) ListCandidates() ([]model.Profile, error) {
	return f.profiles, nil
}

func (f *fakeSource) CandidateSnapshot(id string) (model.CandidateSnapshot, error) {
	f.calls.Add(1)
	if id == f.failID {
		return model.CandidateSnapshot{}, errors.New("boom")
	}
	return f.snaps[id], nil
}

func candidate(id, first string, points int, tier scoring.Tier, qualities ...float64) (model.Profile, model.CandidateSnapshot) {
	p := model.Profile{ID: id, Username: first, FirstName: first, Role: model.UserRoleCandidate, Active: true}
	snap := model.CandidateSnapshot{
		Profile: p,
		Level:   &model.LevelRow{ProfileID: id, Tier: tier, Progress: points},
		Results: map[int64]model.Result{},
	}
	for i, q := range qualities {
		evID := int64(i + 1)
		snap.Evaluations = append(snap.Evaluations, model.Evaluation{ID: evID, ProfileID: id})
		snap.Results[evID] = model.Result{EvaluationID: evID, Quality: q}
	}
	return p, snap
}

func newFakeSource(cands ...func() (model.Profile, model.CandidateSnapshot)) *fakeSource {
	f := &fakeSource{snaps: map[string]model.CandidateSnapshot{}}
	for _, c := range cands {
		p, s := c()
		f.profiles = append(f.profiles, p)
		f.snaps[p.ID] = s
	}
	return f
}

func TestBuild(t *testing.T) {
	src := newFakeSource(
		func() (model.Profile, model.CandidateSnapshot) { return candidate("a", "ann", 120, scoring.TierNovice, 10, 5) },
		func() (model.Profile, model.CandidateSnapshot) { return candidate("b", "bob", 320, scoring.TierExpert, 10) },
		func() (model.Profile, model.CandidateSnapshot) { return candidate("c", "cat", 120, scoring.TierNovice) },
	)

	board, err := NewBuilder(src, 2).Build(context.Background(), "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(board.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(board.Entries))
	}

	wantOrder := []string{"b", "a", "c"}
	for i, id := range wantOrder {
		if board.Entries[i].CandidateID != id || board.Entries[i].Rank != i+1 {
			t.Errorf("entry %d: expected %s rank %d, got %s rank %d", i, id, i+1, board.Entries[i].CandidateID, board.Entries[i].Rank)
		}
	}
	if got := board.Entries[1].AccuracyPercent; math.Abs(got-75) > 1e-9 {
		t.Errorf("expected accuracy 75 for ann, got %v", got)
	}
	if got := board.Entries[1].TestCount; got != 2 {
		t.Errorf("expected 2 tests for ann, got %d", got)
	}
	if got := board.Entries[0].Badges; len(got) != 3 {
		t.Errorf("expected crown, zap and star for bob, got %v", got)
	}

	st, err := board.Standing("c")
	if err != nil {
		t.Fatalf("Standing: %v", err)
	}
	if st.Rank != 3 || st.Total != 3 {
		t.Errorf("expected #3 out of 3, got #%d out of %d", st.Rank, st.Total)
	}
	if n := src.calls.Load(); n != 3 {
		t.Errorf("expected 3 snapshot loads, got %d", n)
	}
}

func TestBuildTierFilter(t *testing.T) {
	src := newFakeSource(
		func() (model.Profile, model.CandidateSnapshot) { return candidate("a", "ann", 120, scoring.TierNovice) },
		func() (model.Profile, model.CandidateSnapshot) { return candidate("b", "bob", 320, scoring.TierExpert) },
	)

	board, err := NewBuilder(src, 0).Build(context.Background(), "novice")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if board.Filter != string(scoring.TierNovice) || len(board.Entries) != 1 || board.Entries[0].CandidateID != "a" {
		t.Errorf("expected only ann under Novice, got %+v", board.Leaderboard)
	}

	if _, err := NewBuilder(src, 0).Build(context.Background(), "wizard"); !errors.Is(err, scoring.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown tier, got %v", err)
	}
}

func TestBuildLoadError(t *testing.T) {
	src := newFakeSource(
		func() (model.Profile, model.CandidateSnapshot) { return candidate("a", "ann", 10, scoring.TierBeginner) },
		func() (model.Profile, model.CandidateSnapshot) { return candidate("b", "bob", 20, scoring.TierBeginner) },
	)
	src.failID = "b"

	if _, err := NewBuilder(src, 1).Build(context.Background(), ""); err == nil {
		t.Fatal("expected error when a snapshot fails to load")
	}
}

func TestBuildEmpty(t *testing.T) {
	board, err := NewBuilder(newFakeSource(), 0).Build(context.Background(), scoring.TierAll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !board.Empty() {
		t.Errorf("expected empty board, got %d entries", len(board.Entries))
	}
	if _, err := board.Standing("x"); !errors.Is(err, scoring.ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestAggregateDefaultsAndDrift(t *testing.T) {
	p := model.Profile{ID: "n", FirstName: "New"}
	agg, err := Aggregate(model.CandidateSnapshot{Profile: p})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.Tier != scoring.TierBeginner || agg.TotalPoints != 0 || agg.AccuracyPercent != 0 {
		t.Errorf("expected default Beginner/0, got %+v", agg)
	}

	// The stored tier is a memo; points decide.
	agg, err = Aggregate(model.CandidateSnapshot{
		Profile: p,
		Level:   &model.LevelRow{ProfileID: "n", Tier: scoring.TierBeginner, Progress: 210},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.Tier != scoring.TierAdvanced {
		t.Errorf("expected Advanced from 210 points, got %s", agg.Tier)
	}

	// An evaluation without a result is excluded from accuracy.
	agg, _ = Aggregate(model.CandidateSnapshot{
		Profile:     p,
		Evaluations: []model.Evaluation{{ID: 1}, {ID: 2}},
		Results:     map[int64]model.Result{1: {EvaluationID: 1, Quality: 8}},
	})
	if agg.TestCount != 2 || agg.AccuracyPercent != 80 {
		t.Errorf("expected 2 tests and 80%% accuracy, got %d and %v", agg.TestCount, agg.AccuracyPercent)
	}
}

func TestExportWithStore(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	pid, err := s.CreateProfile(model.Profile{FirstName: "Ada", LastName: "Lovelace", PasswordHash: "x", Role: model.UserRoleCandidate, Active: true})
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if _, err := s.CreateProfile(model.Profile{FirstName: "Root", PasswordHash: "x", Role: model.UserRoleAdmin, Active: true}); err != nil {
		t.Fatalf("CreateProfile admin: %v", err)
	}
	qid, err := s.InsertQuestion(model.Question{Title: "Q", ExpectedAnswer: "hi", Difficulty: scoring.TierBeginner})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	aid, err := s.CreateAttempt(pid, qid)
	if err != nil {
		t.Fatalf("CreateAttempt: %v", err)
	}
	ten := 10.0
	_, err = s.SaveSubmission(
		model.Evaluation{AttemptID: aid, ProfileID: pid, QuestionID: qid, EvaluationRecord: scoring.EvaluationRecord{Correctness: 10, TimeTakenMinutes: &ten}},
		model.Result{Level: 1, Score: 1, MaxScore: 1, Percentage: 100, Points: 10, Quality: 10},
	)
	if err != nil {
		t.Fatalf("SaveSubmission: %v", err)
	}

	exp, err := NewBuilder(s, 4).Export(context.Background(), "")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exp.Candidates != 1 {
		t.Fatalf("expected only the candidate to be exported, got %d", exp.Candidates)
	}
	e := exp.Entries[0]
	if e.Username != "adalovelace" || e.TotalPoints != 10 || e.AccuracyPercent != 100 {
		t.Errorf("unexpected entry %+v", e.LeaderboardEntry)
	}
	if e.Metrics.Evaluations != 1 || e.Metrics.Accuracy != 100 || e.Metrics.AvgMinutes != 10 {
		t.Errorf("unexpected metrics %+v", e.Metrics)
	}
}
