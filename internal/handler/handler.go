package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/jsat/internal/judge"
	"github.com/pavelanni/jsat/internal/llm"
	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
	"github.com/pavelanni/jsat/internal/standings"
	"github.com/pavelanni/jsat/internal/store"
)

// Reviewer produces advisory feedback for a submission.
type Reviewer interface {
	ReviewSubmission(ctx context.Context, sub llm.Submission) (*llm.Review, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	exec     judge.Executor
	reviewer Reviewer
	board    *standings.Builder
	config   model.ServerConfig
}

// New creates a new Handler. exec and reviewer may be nil: runs then fail with
// 503 and submissions are stored without feedback.
func New(s *store.Store, exec judge.Executor, reviewer Reviewer, cfg model.ServerConfig) (*Handler, error) {
	if cfg.CorrectnessMode == "" {
		cfg.CorrectnessMode = scoring.ModeSubsequence
	}
	if _, err := scoring.ParseMode(string(cfg.CorrectnessMode)); err != nil {
		return nil, err
	}
	return &Handler{
		store:    s,
		exec:     exec,
		reviewer: reviewer,
		board:    standings.NewBuilder(s, cfg.StandingsConcurrency),
		config:   cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)

	r.Get("/csrf", h.handleCSRF)
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(middleware.NoCache)

		r.Post("/logout", h.handleLogout)
		r.Get("/api/me", h.handleMe)
		r.Post("/api/me/role", h.handleChooseRole)
		r.Get("/api/questions", h.handleListQuestions)
		r.Get("/api/questions/categories", h.handleQuestionCategories)
		r.Get("/api/questions/{questionID}", h.handleGetQuestion)
		r.Get("/api/leaderboard", h.handleLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleCandidate))
			r.Post("/api/attempts", h.handleStartAttempt)
			r.Post("/api/attempts/{attemptID}/run", h.handleRunAttempt)
			r.Post("/api/attempts/{attemptID}/submit", h.handleSubmitAttempt)
			r.Get("/api/dashboard", h.handleDashboard)
			r.Get("/api/results", h.handleResults)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleRecruiter, model.UserRoleAdmin))
			r.Get("/api/candidates", h.handleCandidates)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{profileID}/toggle", h.handleToggleUserActive)
			r.Post("/questions", h.handleUploadQuestions)
		})
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := model.ProfileFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":      p,
		"display_name": p.DisplayName(),
		"csrf_token":   model.CSRFTokenFromContext(r.Context()),
	})
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	difficulty := r.URL.Query().Get("difficulty")
	if difficulty != "" {
		t, err := scoring.ParseTier(difficulty)
		if err != nil {
			fail(w, r, err)
			return
		}
		difficulty = string(t)
	}
	questions, err := h.store.ListQuestions(difficulty, r.URL.Query().Get("category"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	if isCandidate(r) {
		for i := range questions {
			questions[i].ExpectedAnswer = ""
		}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "questionID")
	if err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.question(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if isCandidate(r) {
		q.ExpectedAnswer = ""
	}
	writeJSON(w, http.StatusOK, q)
}

// handleQuestionCategories lists the filters a practice page offers.
func (h *Handler) handleQuestionCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListCategories()
	if err != nil {
		fail(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories":   cats,
		"difficulties": scoring.Tiers(),
	})
}

func (h *Handler) question(id int64) (model.Question, error) {
	q, err := h.store.GetQuestion(id)
	if errors.Is(err, sql.ErrNoRows) {
		return q, fmt.Errorf("question %d: %w", id, errNotFound)
	}
	return q, err
}

// levelState returns the candidate's stored level, or the default state.
// A stored tier that disagrees with the points is rewritten.
func (h *Handler) levelState(profileID string) (scoring.LevelState, error) {
	row, err := h.store.GetLevel(profileID)
	if err != nil {
		return scoring.LevelState{}, err
	}
	if row == nil {
		return scoring.NewLevelState(), nil
	}
	state, drifted, err := row.State().Normalize()
	if err != nil {
		return scoring.LevelState{}, err
	}
	if drifted {
		slog.Warn("repairing stored tier", "profile_id", profileID, "stored", row.Tier, "tier", state.Tier)
		if err := h.store.SetLevel(profileID, state); err != nil {
			return scoring.LevelState{}, fmt.Errorf("repair level: %w", err)
		}
	}
	return state, nil
}

func isCandidate(r *http.Request) bool {
	p := model.ProfileFromContext(r.Context())
	return p == nil || p.Role == model.UserRoleCandidate
}

func (h *Handler) languageFor(q model.Question) int {
	if q.LanguageID != 0 {
		return q.LanguageID
	}
	if h.config.LanguageID != 0 {
		return h.config.LanguageID
	}
	return judge.DefaultLanguageID
}

func parseTop(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid top %q", scoring.ErrInvalidInput, s)
	}
	return n, nil
}
