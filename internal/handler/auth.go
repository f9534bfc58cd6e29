package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/jsat/internal/i18n"
	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// csrfMiddleware issues a token cookie on safe requests and requires the same
// token in the X-CSRF-Token header or csrf_token form field on all others.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, _ := r.Cookie(csrfCookieName)

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			token := ""
			if cookie != nil {
				token = cookie.Value
			}
			if token == "" {
				var err error
				token, err = generateCSRFToken()
				if err != nil {
					slog.Error("failed to generate CSRF token", "error", err)
					writeError(w, http.StatusInternalServerError, "internal error")
					return
				}
				h.setCSRFCookie(w, token)
			}
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if cookie == nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "csrf token missing")
			return
		}

		sent := r.Header.Get(csrfHeaderName)
		if sent == "" {
			sent = r.FormValue("csrf_token")
		}
		if sent == "" {
			slog.Warn("CSRF request token missing", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "csrf token missing")
			return
		}

		if len(sent) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "invalid csrf token")
			return
		}

		ctx := model.ContextWithCSRFToken(r.Context(), cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": model.CSRFTokenFromContext(r.Context())})
}

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		authSess, err := h.store.Session(cookie.Value)
		if err != nil {
			slog.Error("failed to look up session", "error", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if authSess == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		profile, err := h.store.GetProfile(authSess.ProfileID)
		if err != nil || profile == nil || !profile.Active {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := model.ContextWithProfile(r.Context(), profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the profile has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile := model.ProfileFromContext(r.Context())
			if profile == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowed {
				if profile.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	profile, err := h.store.GetProfileByUsername(req.Username)
	if err != nil {
		fail(w, r, err)
		return
	}
	if profile == nil {
		writeError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "InvalidCredentials"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "InvalidCredentials"))
		return
	}
	if !profile.Active {
		writeError(w, http.StatusForbidden, appI18n.T(r.Context(), "AccountDisabled"))
		return
	}

	sess, err := h.store.OpenSession(profile.ID)
	if err != nil {
		fail(w, r, fmt.Errorf("open session: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	slog.Info("user logged in", "username", profile.Username, "role", profile.Role)
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.store.CloseSession(cookie.Value); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}

type chooseRoleRequest struct {
	Role model.UserRole `json:"role"`
}

// handleChooseRole lets a profile pick candidate or recruiter once.
func (h *Handler) handleChooseRole(w http.ResponseWriter, r *http.Request) {
	profile := model.ProfileFromContext(r.Context())
	if profile.RoleFinalized {
		writeError(w, http.StatusConflict, "role already chosen")
		return
	}
	var req chooseRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.Role != model.UserRoleCandidate && req.Role != model.UserRoleRecruiter {
		fail(w, r, fmt.Errorf("%w: role %q", scoring.ErrInvalidInput, req.Role))
		return
	}
	if err := h.store.FinalizeRole(profile.ID, req.Role); err != nil {
		fail(w, r, err)
		return
	}
	if req.Role == model.UserRoleCandidate {
		if err := h.store.EnsureLevel(profile.ID); err != nil {
			fail(w, r, err)
			return
		}
	}
	profile.Role = req.Role
	profile.RoleFinalized = true
	slog.Info("role chosen", "username", profile.Username, "role", req.Role)
	writeJSON(w, http.StatusOK, profile)
}
