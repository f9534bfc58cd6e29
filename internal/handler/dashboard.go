package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	appI18n "github.com/pavelanni/jsat/internal/i18n"
	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
)

type dashboardResponse struct {
	Level            scoring.LevelState `json:"level"`
	TierName         string             `json:"tier_name"`
	Progress         scoring.Progress   `json:"progress"`
	ProgressMessage  string             `json:"progress_message"`
	Standing         *scoring.Standing  `json:"standing,omitempty"`
	StandingMessage  string             `json:"standing_message"`
	UnlockedMetrics  int                `json:"unlocked_metrics"`
	QuestionsMessage string             `json:"questions_message"`
	TestsCompleted   int                `json:"tests_completed"`
	AverageAccuracy  float64            `json:"average_accuracy"`
	Recent           []recentActivity   `json:"recent"`
}

// recentLimit is how many completed tests the dashboard lists.
const recentLimit = 5

type recentActivity struct {
	EvaluationID int64        `json:"evaluation_id"`
	QuestionID   int64        `json:"question_id"`
	Title        string       `json:"title,omitempty"`
	Category     string       `json:"category,omitempty"`
	Difficulty   scoring.Tier `json:"difficulty,omitempty"`
	Available    bool         `json:"available"`
	Points       *int         `json:"points,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// recent lists the newest evaluations first. A deleted question is reported
// as unavailable rather than failing the dashboard.
func (h *Handler) recent(snap model.CandidateSnapshot) ([]recentActivity, error) {
	out := make([]recentActivity, 0, recentLimit)
	for i := len(snap.Evaluations) - 1; i >= 0 && len(out) < recentLimit; i-- {
		e := snap.Evaluations[i]
		item := recentActivity{EvaluationID: e.ID, QuestionID: e.QuestionID, CreatedAt: e.CreatedAt}
		if res, ok := snap.Results[e.ID]; ok {
			item.Points = &res.Points
		}
		q, err := h.store.GetQuestion(e.QuestionID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, err
		default:
			item.Title, item.Category, item.Difficulty = q.Title, q.Category, q.Difficulty
			item.Available = true
		}
		out = append(out, item)
	}
	return out, nil
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := model.ProfileFromContext(ctx)

	state, err := h.levelState(profile.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	progress, err := scoring.PointsToNextTier(state.Tier, state.TotalPoints)
	if err != nil {
		fail(w, r, err)
		return
	}
	board, err := h.board.Build(ctx, scoring.TierAll)
	if err != nil {
		fail(w, r, err)
		return
	}
	questions, err := h.store.ListQuestions(string(state.Tier), "")
	if err != nil {
		fail(w, r, err)
		return
	}
	snap, err := h.store.CandidateSnapshot(profile.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	recent, err := h.recent(snap)
	if err != nil {
		fail(w, r, err)
		return
	}

	resp := dashboardResponse{
		Level:            state,
		TierName:         appI18n.TierName(ctx, state.Tier),
		Progress:         progress,
		ProgressMessage:  appI18n.ProgressMessage(ctx, progress),
		UnlockedMetrics:  scoring.UnlockedMetrics(state.TotalPoints),
		QuestionsMessage: appI18n.Tp(ctx, "QuestionsAvailable", len(questions)),
		TestsCompleted:   len(snap.Evaluations),
		AverageAccuracy:  scoring.Accuracy(snap.QualityScores()),
		Recent:           recent,
	}
	resp.Standing, resp.StandingMessage = standingFor(r, board.Leaderboard, profile.ID)
	writeJSON(w, http.StatusOK, resp)
}

// standingFor renders the profile's place on a board, or "not ranked".
func standingFor(r *http.Request, lb scoring.Leaderboard, profileID string) (*scoring.Standing, string) {
	st, err := lb.Standing(profileID)
	if errors.Is(err, scoring.ErrEmptyDataset) || errors.Is(err, scoring.ErrNotRanked) {
		return nil, appI18n.T(r.Context(), "NotRanked")
	}
	if err != nil {
		return nil, ""
	}
	return &st, appI18n.StandingMessage(r.Context(), st)
}

type resultRow struct {
	model.Evaluation
	Result *model.Result `json:"result,omitempty"`
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := model.ProfileFromContext(ctx)

	snap, err := h.store.CandidateSnapshot(profile.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	state, err := h.levelState(profile.ID)
	if err != nil {
		fail(w, r, err)
		return
	}

	platform, err := h.store.ListAllEvaluationRecords()
	if err != nil {
		fail(w, r, err)
		return
	}

	rows := make([]resultRow, 0, len(snap.Evaluations))
	for _, e := range snap.Evaluations {
		row := resultRow{Evaluation: e}
		if res, ok := snap.Results[e.ID]; ok {
			row.Result = &res
		}
		rows = append(rows, row)
	}

	resp := map[string]any{
		"results":          rows,
		"metrics":          scoring.SummarizeMetrics(snap.Records()),
		"accuracy":         scoring.Accuracy(snap.QualityScores()),
		"unlocked_metrics": scoring.UnlockedMetrics(state.TotalPoints),
		"platform_average": scoring.SummarizeMetrics(platform),
	}
	if len(rows) == 0 {
		resp["message"] = appI18n.T(ctx, "NoSubmissions")
	}
	writeJSON(w, http.StatusOK, resp)
}

type leaderboardResponse struct {
	scoring.Leaderboard
	Standing        *scoring.Standing `json:"standing,omitempty"`
	StandingMessage string            `json:"standing_message,omitempty"`
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := parseTop(r.URL.Query().Get("top"))
	if err != nil {
		fail(w, r, err)
		return
	}
	board, err := h.board.Build(r.Context(), r.URL.Query().Get("level"))
	if err != nil {
		fail(w, r, err)
		return
	}

	resp := leaderboardResponse{Leaderboard: board.Leaderboard}
	profile := model.ProfileFromContext(r.Context())
	if profile.Role == model.UserRoleCandidate {
		resp.Standing, resp.StandingMessage = standingFor(r, board.Leaderboard, profile.ID)
	}
	if top > 0 {
		resp.Entries = board.Top(top)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCandidates(w http.ResponseWriter, r *http.Request) {
	export, err := h.board.Export(r.Context(), r.URL.Query().Get("level"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}
