package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
)

// GetLevel returns a profile's stored level, or nil if the candidate has no activity yet.
func (s *Store) GetLevel(profileID string) (*model.LevelRow, error) {
	var l model.LevelRow
	err := s.db.QueryRow(
		`SELECT profile_id, level_status, progress, updated_at FROM levels WHERE profile_id = ?`, profileID,
	).Scan(&l.ProfileID, &l.Tier, &l.Progress, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// EnsureLevel creates the default level row for a profile if it has none.
func (s *Store) EnsureLevel(profileID string) error {
	state := scoring.NewLevelState()
	_, err := s.db.Exec(
		`INSERT INTO levels (profile_id, level_status, progress, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile_id) DO NOTHING`,
		profileID, state.Tier, state.TotalPoints, time.Now(),
	)
	return err
}

// SetLevel overwrites a profile's level state.
func (s *Store) SetLevel(profileID string, state scoring.LevelState) error {
	return upsertLevel(s.db, profileID, state)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertLevel(db execer, profileID string, state scoring.LevelState) error {
	now := time.Now()
	_, err := db.Exec(
		`INSERT INTO levels (profile_id, level_status, progress, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET level_status = ?, progress = ?, updated_at = ?`,
		profileID, state.Tier, state.TotalPoints, now, state.Tier, state.TotalPoints, now,
	)
	return err
}
