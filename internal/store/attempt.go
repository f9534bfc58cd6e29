package store

import (
	"database/sql"
	"time"

	"github.com/pavelanni/jsat/internal/model"
)

const attemptColumns = `id, profile_id, question_id, status, started_at, submitted_at, total_runs, error_runs`

// CreateAttempt starts a candidate's attempt at a question.
func (s *Store) CreateAttempt(profileID string, questionID int64) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO attempts (profile_id, question_id, status, started_at) VALUES (?, ?, ?, ?)`,
		profileID, questionID, model.AttemptInProgress, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetAttempt returns an attempt by ID, or nil if it does not exist.
func (s *Store) GetAttempt(id int64) (*model.Attempt, error) {
	var a model.Attempt
	err := s.db.QueryRow(`SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id).Scan(
		&a.ID, &a.ProfileID, &a.QuestionID, &a.Status, &a.StartedAt, &a.SubmittedAt, &a.TotalRuns, &a.ErrorRuns,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordRun counts one code run against an attempt.
func (s *Store) RecordRun(attemptID int64, failed bool) error {
	errInc := 0
	if failed {
		errInc = 1
	}
	_, err := s.db.Exec(
		`UPDATE attempts SET total_runs = total_runs + 1, error_runs = error_runs + ? WHERE id = ?`,
		errInc, attemptID,
	)
	return err
}
