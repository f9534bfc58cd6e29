package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
)

// ErrAlreadySubmitted is returned when an attempt is submitted twice.
var ErrAlreadySubmitted = errors.New("attempt already submitted")

// SaveSubmission persists the evaluation and result of an attempt, marks the
// attempt submitted and adds the earned points to the candidate's level, all
// in one transaction. It returns the updated level state.
func (s *Store) SaveSubmission(ev model.Evaluation, res model.Result) (scoring.LevelState, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return scoring.LevelState{}, err
	}
	defer tx.Rollback()

	now := time.Now()
	upd, err := tx.Exec(
		`UPDATE attempts SET status = ?, submitted_at = ? WHERE id = ? AND status = ?`,
		model.AttemptSubmitted, now, ev.AttemptID, model.AttemptInProgress,
	)
	if err != nil {
		return scoring.LevelState{}, err
	}
	if n, _ := upd.RowsAffected(); n == 0 {
		return scoring.LevelState{}, ErrAlreadySubmitted
	}

	r, err := tx.Exec(
		`INSERT INTO evaluations (attempt_id, profile_id, question_id, correctness, line_code, time_taken, runtime, error_made, feedback, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.AttemptID, ev.ProfileID, ev.QuestionID, ev.Correctness, ev.LineCodeScore, ev.TimeTakenMinutes,
		ev.RuntimeScore, ev.ErrorScore, ev.Feedback, now,
	)
	if err != nil {
		return scoring.LevelState{}, fmt.Errorf("insert evaluation: %w", err)
	}
	evalID, err := r.LastInsertId()
	if err != nil {
		return scoring.LevelState{}, err
	}

	_, err = tx.Exec(
		`INSERT INTO results (evaluation_id, level, score, max_score, percentage, points, quality)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evalID, res.Level, res.Score, res.MaxScore, res.Percentage, res.Points, res.Quality,
	)
	if err != nil {
		return scoring.LevelState{}, fmt.Errorf("insert result: %w", err)
	}

	state := scoring.NewLevelState()
	var stored scoring.Tier
	err = tx.QueryRow(`SELECT level_status, progress FROM levels WHERE profile_id = ?`, ev.ProfileID).Scan(&stored, &state.TotalPoints)
	if err != nil && err != sql.ErrNoRows {
		return scoring.LevelState{}, err
	}
	state, err = state.AddPoints(res.Points)
	if err != nil {
		return scoring.LevelState{}, err
	}
	if err := upsertLevel(tx, ev.ProfileID, state); err != nil {
		return scoring.LevelState{}, err
	}
	if stored != "" && stored != state.Tier {
		slog.Info("candidate changed tier", "profile_id", ev.ProfileID, "from", stored, "to", state.Tier)
	}

	return state, tx.Commit()
}

const evaluationColumns = `id, attempt_id, profile_id, question_id, correctness, line_code, time_taken, runtime, error_made, feedback, created_at`

// ListEvaluations returns a profile's evaluations, oldest first.
func (s *Store) ListEvaluations(profileID string) ([]model.Evaluation, error) {
	rows, err := s.db.Query(`SELECT `+evaluationColumns+` FROM evaluations WHERE profile_id = ? ORDER BY id`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var evals []model.Evaluation
	for rows.Next() {
		var e model.Evaluation
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.ProfileID, &e.QuestionID, &e.Correctness, &e.LineCodeScore,
			&e.TimeTakenMinutes, &e.RuntimeScore, &e.ErrorScore, &e.Feedback, &e.CreatedAt); err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

// ListAllEvaluationRecords returns the metric records of every evaluation.
func (s *Store) ListAllEvaluationRecords() ([]scoring.EvaluationRecord, error) {
	rows, err := s.db.Query(`SELECT correctness, line_code, time_taken, runtime, error_made FROM evaluations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []scoring.EvaluationRecord
	for rows.Next() {
		var r scoring.EvaluationRecord
		if err := rows.Scan(&r.Correctness, &r.LineCodeScore, &r.TimeTakenMinutes, &r.RuntimeScore, &r.ErrorScore); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// ResultsByEvaluation returns a profile's results keyed by evaluation ID.
func (s *Store) ResultsByEvaluation(profileID string) (map[int64]model.Result, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.evaluation_id, r.level, r.score, r.max_score, r.percentage, r.points, r.quality
		 FROM results r JOIN evaluations e ON e.id = r.evaluation_id
		 WHERE e.profile_id = ?`, profileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]model.Result)
	for rows.Next() {
		var r model.Result
		if err := rows.Scan(&r.ID, &r.EvaluationID, &r.Level, &r.Score, &r.MaxScore, &r.Percentage, &r.Points, &r.Quality); err != nil {
			return nil, err
		}
		out[r.EvaluationID] = r
	}
	return out, rows.Err()
}
