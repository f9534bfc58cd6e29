// Package standings gathers every candidate's stored activity and ranks them.
package standings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
)

// DefaultConcurrency bounds the number of candidates loaded at once.
const DefaultConcurrency = 8

// Source is the read side of the store that standings need.
type Source interface {
	ListCandidates() ([]model.Profile, error)
	CandidateSnapshot(profileID string) (model.CandidateSnapshot, error)
}

// Board is a ranked leaderboard together with the snapshots it was built from.
type Board struct {
	scoring.Leaderboard
	Snapshots map[string]model.CandidateSnapshot
}

// Builder loads candidates concurrently and ranks them.
type Builder struct {
	src   Source
	limit int
}

// NewBuilder creates a builder. A limit below 1 uses DefaultConcurrency.
func NewBuilder(src Source, limit int) *Builder {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &Builder{src: src, limit: limit}
}

// Build ranks all active candidates, optionally restricted to one tier.
// The first load error cancels the remaining loads.
func (b *Builder) Build(ctx context.Context, tierFilter string) (*Board, error) {
	candidates, err := b.src.ListCandidates()
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	snaps := make([]model.CandidateSnapshot, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap, err := b.src.CandidateSnapshot(c.ID)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	aggregates := make([]scoring.Aggregate, 0, len(snaps))
	byID := make(map[string]model.CandidateSnapshot, len(snaps))
	for _, snap := range snaps {
		agg, err := Aggregate(snap)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
		byID[snap.Profile.ID] = snap
	}

	lb, err := scoring.RankCandidates(aggregates, tierFilter)
	if err != nil {
		return nil, err
	}
	return &Board{Leaderboard: lb, Snapshots: byID}, nil
}

// Aggregate reduces one candidate's snapshot to the ranking input. A missing
// level row counts as the default Beginner state.
func Aggregate(snap model.CandidateSnapshot) (scoring.Aggregate, error) {
	state := scoring.NewLevelState()
	if snap.Level != nil {
		state = snap.Level.State()
	}
	state, drifted, err := state.Normalize()
	if err != nil {
		return scoring.Aggregate{}, fmt.Errorf("candidate %s: %w", snap.Profile.ID, err)
	}
	if drifted {
		slog.Warn("stored tier disagrees with points", "profile_id", snap.Profile.ID, "points", state.TotalPoints, "tier", state.Tier)
	}
	return scoring.Aggregate{
		CandidateID:     snap.Profile.ID,
		DisplayName:     snap.Profile.DisplayName(),
		Username:        snap.Profile.Username,
		TotalPoints:     state.TotalPoints,
		Tier:            state.Tier,
		AccuracyPercent: scoring.Accuracy(snap.QualityScores()),
		TestCount:       len(snap.Evaluations),
	}, nil
}

// Export builds the leaderboard export document.
func (b *Builder) Export(ctx context.Context, tierFilter string) (*model.LeaderboardExport, error) {
	board, err := b.Build(ctx, tierFilter)
	if err != nil {
		return nil, err
	}
	out := &model.LeaderboardExport{
		GeneratedAt: time.Now().UTC(),
		Filter:      board.Filter,
		Candidates:  len(board.Entries),
		Entries:     make([]model.CandidateExport, 0, len(board.Entries)),
	}
	for _, e := range board.Entries {
		out.Entries = append(out.Entries, model.CandidateExport{
			LeaderboardEntry: e,
			Metrics:          scoring.SummarizeMetrics(board.Snapshots[e.CandidateID].Records()),
		})
	}
	return out, nil
}
