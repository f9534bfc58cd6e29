package store

import (
	"fmt"

	"github.com/pavelanni/jsat/internal/model"
)

// CandidateSnapshot loads a candidate's profile, level, evaluations and results.
func (s *Store) CandidateSnapshot(profileID string) (model.CandidateSnapshot, error) {
	var snap model.CandidateSnapshot
	p, err := s.GetProfile(profileID)
	if err != nil {
		return snap, fmt.Errorf("get profile %s: %w", profileID, err)
	}
	if p == nil {
		return snap, fmt.Errorf("profile %s not found", profileID)
	}
	snap.Profile = *p

	if snap.Level, err = s.GetLevel(profileID); err != nil {
		return snap, fmt.Errorf("get level %s: %w", profileID, err)
	}
	if snap.Evaluations, err = s.ListEvaluations(profileID); err != nil {
		return snap, fmt.Errorf("list evaluations %s: %w", profileID, err)
	}
	if snap.Results, err = s.ResultsByEvaluation(profileID); err != nil {
		return snap, fmt.Errorf("list results %s: %w", profileID, err)
	}
	return snap, nil
}
