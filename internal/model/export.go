package model

import (
	"time"

	"github.com/pavelanni/jsat/internal/scoring"
)

// LeaderboardExport is the top-level JSON structure for leaderboard export.
type LeaderboardExport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Filter      string            `json:"filter"`
	Candidates  int               `json:"candidates"`
	Entries     []CandidateExport `json:"entries"`
}

// CandidateExport holds one ranked candidate with their metric summary.
type CandidateExport struct {
	scoring.LeaderboardEntry
	Metrics scoring.MetricSummary `json:"metrics"`
}

// CandidateSnapshot is everything stored about one candidate that feeds
// ranking and export.
type CandidateSnapshot struct {
	Profile     Profile
	Level       *LevelRow
	Evaluations []Evaluation
	Results     map[int64]Result // keyed by evaluation ID
}

// QualityScores returns one entry per evaluation: the result's quality, or
// nil when the evaluation has no result.
func (c CandidateSnapshot) QualityScores() []*float64 {
	scores := make([]*float64, 0, len(c.Evaluations))
	for _, e := range c.Evaluations {
		r, ok := c.Results[e.ID]
		if !ok {
			scores = append(scores, nil)
			continue
		}
		q := r.Quality
		scores = append(scores, &q)
	}
	return scores
}

// Records returns the metric records of the candidate's evaluations.
func (c CandidateSnapshot) Records() []scoring.EvaluationRecord {
	recs := make([]scoring.EvaluationRecord, len(c.Evaluations))
	for i, e := range c.Evaluations {
		recs[i] = e.EvaluationRecord
	}
	return recs
}
