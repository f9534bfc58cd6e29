package model

import (
	"context"
	"time"

	"github.com/pavelanni/jsat/internal/scoring"
)

// UserRole represents a profile's access level.
type UserRole string

const (
	// UserRoleCandidate takes tests and appears on the leaderboard.
	UserRoleCandidate UserRole = "candidate"
	// UserRoleRecruiter reviews candidates.
	UserRoleRecruiter UserRole = "recruiter"
	// UserRoleAdmin manages users and the question catalog.
	UserRoleAdmin UserRole = "admin"
)

// ValidRole reports whether r is a known role.
func ValidRole(r UserRole) bool {
	switch r {
	case UserRoleCandidate, UserRoleRecruiter, UserRoleAdmin:
		return true
	}
	return false
}

// Profile represents a system user.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	PasswordHash  string    `json:"-"`
	Role          UserRole  `json:"role"`
	RoleFinalized bool      `json:"role_finalized"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// DisplayName joins first and last name, falling back to the username.
func (p Profile) DisplayName() string {
	name := p.FirstName
	if p.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.LastName
	}
	if name == "" {
		return p.Username
	}
	return name
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	ProfileID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type profileCtxKey struct{}

// ContextWithProfile stores the authenticated profile in the request context.
func ContextWithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileCtxKey{}, p)
}

// ProfileFromContext retrieves the authenticated profile from context, or nil.
func ProfileFromContext(ctx context.Context) *Profile {
	p, _ := ctx.Value(profileCtxKey{}).(*Profile)
	return p
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Question represents a coding question in the catalog.
type Question struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Body           string       `json:"body"`
	Category       string       `json:"category"`
	Difficulty     scoring.Tier `json:"difficulty"`
	ExpectedAnswer string       `json:"expected_answer,omitempty"`
	Starter        string       `json:"starter,omitempty"`
	LanguageID     int          `json:"language_id"`
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Title          string       `json:"title"`
	Body           string       `json:"body"`
	Category       string       `json:"category"`
	Difficulty     scoring.Tier `json:"difficulty"`
	ExpectedAnswer string       `json:"expected_answer"`
	Starter        string       `json:"starter"`
	LanguageID     int          `json:"language_id"`
}

// AttemptStatus represents the status of a test attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// Attempt is one candidate working on one question.
type Attempt struct {
	ID          int64         `json:"id"`
	ProfileID   string        `json:"profile_id"`
	QuestionID  int64         `json:"question_id"`
	Status      AttemptStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	TotalRuns   int           `json:"total_runs"`
	ErrorRuns   int           `json:"error_runs"`
}

// Evaluation is the persisted scoring of a submitted attempt.
type Evaluation struct {
	ID         int64     `json:"id"`
	AttemptID  int64     `json:"attempt_id"`
	ProfileID  string    `json:"profile_id"`
	QuestionID int64     `json:"question_id"`
	Feedback   string    `json:"feedback,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	scoring.EvaluationRecord
}

// Result is the score attached to an evaluation.
type Result struct {
	ID           int64   `json:"id"`
	EvaluationID int64   `json:"evaluation_id"`
	Level        int     `json:"level"`
	Score        int     `json:"score"`
	MaxScore     int     `json:"max_score"`
	Percentage   float64 `json:"percentage"`
	Points       int     `json:"points"`
	Quality      float64 `json:"quality"` // 0-10, feeds accuracy
}

// LevelRow is the stored level state of a candidate. Tier is a memo of Progress.
type LevelRow struct {
	ProfileID string       `json:"profile_id"`
	Tier      scoring.Tier `json:"level_status"`
	Progress  int          `json:"progress"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// State converts the row into a LevelState.
func (l LevelRow) State() scoring.LevelState {
	return scoring.LevelState{Tier: l.Tier, TotalPoints: l.Progress}
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	SecureCookies        bool         // Set Secure flag on cookies (disable for local dev)
	CorrectnessMode      scoring.Mode // subsequence or exact
	LanguageID           int          // default execution language when a question has none
	StandingsConcurrency int          // concurrent candidate loads when ranking
}
