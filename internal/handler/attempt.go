package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	appI18n "github.com/pavelanni/jsat/internal/i18n"
	"github.com/pavelanni/jsat/internal/judge"
	"github.com/pavelanni/jsat/internal/llm"
	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
)

type startAttemptRequest struct {
	QuestionID int64 `json:"question_id"`
}

type codeRequest struct {
	Code  string `json:"code"`
	Stdin string `json:"stdin,omitempty"`
}

type runResponse struct {
	AttemptID      int64   `json:"attempt_id"`
	Status         string  `json:"status"`
	Accepted       bool    `json:"accepted"`
	Stdout         string  `json:"stdout"`
	Stderr         string  `json:"stderr,omitempty"`
	CompileOutput  string  `json:"compile_output,omitempty"`
	RuntimeSeconds float64 `json:"runtime_seconds"`
	MemoryKB       int     `json:"memory_kb"`
	TotalRuns      int     `json:"total_runs"`
	ErrorRuns      int     `json:"error_runs"`
}

type submitResponse struct {
	Evaluation      scoring.EvaluationResult `json:"evaluation"`
	Record          scoring.EvaluationRecord `json:"record"`
	Points          int                      `json:"points"`
	Level           scoring.LevelState       `json:"level"`
	Progress        scoring.Progress         `json:"progress"`
	ProgressMessage string                   `json:"progress_message"`
	Feedback        string                   `json:"feedback,omitempty"`
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	profile := model.ProfileFromContext(r.Context())
	var req startAttemptRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.question(req.QuestionID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.store.EnsureLevel(profile.ID); err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.store.CreateAttempt(profile.ID, q.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	a, err := h.store.GetAttempt(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	q.ExpectedAnswer = ""
	slog.Info("attempt started", "attempt_id", id, "profile_id", profile.ID, "question_id", q.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"attempt": a, "question": q})
}

// ownAttempt loads an in-progress attempt belonging to the current profile.
func (h *Handler) ownAttempt(r *http.Request) (*model.Attempt, model.Question, error) {
	id, err := idParam(r, "attemptID")
	if err != nil {
		return nil, model.Question{}, err
	}
	a, err := h.store.GetAttempt(id)
	if err != nil {
		return nil, model.Question{}, err
	}
	profile := model.ProfileFromContext(r.Context())
	if a == nil || a.ProfileID != profile.ID {
		return nil, model.Question{}, fmt.Errorf("attempt %d: %w", id, errNotFound)
	}
	q, err := h.question(a.QuestionID)
	if err != nil {
		return nil, model.Question{}, err
	}
	return a, q, nil
}

// execute runs code and counts the run against the attempt.
func (h *Handler) execute(ctx context.Context, a *model.Attempt, q model.Question, req codeRequest) (*judge.Result, error) {
	if h.exec == nil {
		return nil, judge.ErrNotConfigured
	}
	res, err := h.exec.Execute(ctx, judge.Request{
		SourceCode: req.Code,
		LanguageID: h.languageFor(q),
		Stdin:      req.Stdin,
	})
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidInput) || errors.Is(err, judge.ErrNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errExecutionFailed, err)
	}
	if err := h.store.RecordRun(a.ID, !res.Accepted()); err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handler) handleRunAttempt(w http.ResponseWriter, r *http.Request) {
	a, q, err := h.ownAttempt(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if a.Status != model.AttemptInProgress {
		writeError(w, http.StatusConflict, "attempt already submitted")
		return
	}
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.execute(r.Context(), a, q, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	a, err = h.store.GetAttempt(a.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		AttemptID:      a.ID,
		Status:         res.Status.Description,
		Accepted:       res.Accepted(),
		Stdout:         res.Stdout,
		Stderr:         res.Stderr,
		CompileOutput:  res.CompileOutput,
		RuntimeSeconds: res.RuntimeSeconds,
		MemoryKB:       res.MemoryKB,
		TotalRuns:      a.TotalRuns,
		ErrorRuns:      a.ErrorRuns,
	})
}

// handleSubmitAttempt runs the final code once more, scores it at the
// candidate's current level and stores the evaluation.
func (h *Handler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	profile := model.ProfileFromContext(r.Context())
	a, q, err := h.ownAttempt(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if a.Status != model.AttemptInProgress {
		writeError(w, http.StatusConflict, "attempt already submitted")
		return
	}
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	state, err := h.levelState(profile.ID)
	if err != nil {
		fail(w, r, err)
		return
	}

	run, err := h.execute(r.Context(), a, q, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	if a, err = h.store.GetAttempt(a.ID); err != nil {
		fail(w, r, err)
		return
	}

	minutes := time.Since(a.StartedAt).Minutes()
	result, err := scoring.EvaluateLevel(
		state.Tier.Level(), run.Execution(), req.Code, minutes,
		a.ErrorRuns, a.TotalRuns, q.ExpectedAnswer, h.config.CorrectnessMode,
	)
	if err != nil {
		fail(w, r, err)
		return
	}
	record := result.Record()

	feedback := h.review(r.Context(), q, req.Code, run)

	newState, err := h.store.SaveSubmission(
		model.Evaluation{
			AttemptID:        a.ID,
			ProfileID:        profile.ID,
			QuestionID:       q.ID,
			Feedback:         feedback,
			EvaluationRecord: record,
		},
		model.Result{
			Level:      result.Level,
			Score:      result.Score,
			MaxScore:   result.MaxScore,
			Percentage: result.Percentage,
			Points:     result.Points(),
			Quality:    result.QualityScore(),
		},
	)
	if err != nil {
		fail(w, r, err)
		return
	}

	progress, err := scoring.PointsToNextTier(newState.Tier, newState.TotalPoints)
	if err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("attempt submitted",
		"attempt_id", a.ID,
		"profile_id", profile.ID,
		"level", result.Level,
		"score", result.Score,
		"max_score", result.MaxScore,
		"points", result.Points(),
		"total_points", newState.TotalPoints,
	)
	writeJSON(w, http.StatusOK, submitResponse{
		Evaluation:      result,
		Record:          record,
		Points:          result.Points(),
		Level:           newState,
		Progress:        progress,
		ProgressMessage: appI18n.ProgressMessage(r.Context(), progress),
		Feedback:        feedback,
	})
}

// review asks the reviewer for feedback. Failures only cost the feedback.
func (h *Handler) review(ctx context.Context, q model.Question, code string, run *judge.Result) string {
	if h.reviewer == nil {
		return ""
	}
	rev, err := h.reviewer.ReviewSubmission(ctx, llm.Submission{
		Question: q,
		Code:     code,
		Status:   run.Status.Description,
		Stdout:   run.Stdout,
	})
	if err != nil {
		slog.Warn("submission review failed", "question_id", q.ID, "error", err)
		return ""
	}
	return rev.Text()
}
