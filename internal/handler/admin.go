package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
	"github.com/pavelanni/jsat/internal/store"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.ListProfiles()
	if err != nil {
		fail(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

type createUserRequest struct {
	Username  string         `json:"username"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Password  string         `json:"password"`
	Role      model.UserRole `json:"role"`
}

// handleCreateUser creates a profile. A profile created without a role starts
// as a candidate and may still choose its role once.
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if req.Password == "" || (req.Username == "" && req.FirstName == "" && req.LastName == "") {
		fail(w, r, fmt.Errorf("%w: name and password required", scoring.ErrInvalidInput))
		return
	}
	finalized := req.Role != ""
	if req.Role == "" {
		req.Role = model.UserRoleCandidate
	}
	if !model.ValidRole(req.Role) {
		fail(w, r, fmt.Errorf("%w: role %q", scoring.ErrInvalidInput, req.Role))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	id, err := h.store.CreateProfile(model.Profile{
		Username:      strings.TrimSpace(req.Username),
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		PasswordHash:  string(hash),
		Role:          req.Role,
		RoleFinalized: finalized,
		Active:        true,
	})
	if err != nil {
		writeError(w, http.StatusConflict, "failed to create user")
		return
	}
	if req.Role == model.UserRoleCandidate {
		if err := h.store.EnsureLevel(id); err != nil {
			fail(w, r, err)
			return
		}
	}
	p, err := h.store.GetProfile(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "profileID")
	p, err := h.store.GetProfile(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if p == nil {
		fail(w, r, fmt.Errorf("profile %s: %w", id, errNotFound))
		return
	}
	if p.ID == model.ProfileFromContext(r.Context()).ID {
		writeError(w, http.StatusConflict, "cannot deactivate yourself")
		return
	}

	if err := h.store.ToggleProfileActive(id); err != nil {
		slog.Error("failed to toggle profile active", "id", id, "error", err)
		fail(w, r, err)
		return
	}
	p.Active = !p.Active
	if !p.Active {
		n, err := h.store.RevokeSessions(id)
		if err != nil {
			fail(w, r, err)
			return
		}
		slog.Info("profile deactivated", "id", id, "sessions_revoked", n)
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUploadQuestions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("questions_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	hash := store.ContentHash(data)
	storedHash, err := h.store.GetImportedFileHash(header.Filename)
	if err != nil {
		fail(w, r, fmt.Errorf("check import status: %w", err))
		return
	}
	if storedHash == hash {
		writeJSON(w, http.StatusOK, map[string]any{"imported": 0, "duplicate": true})
		return
	}

	n, err := h.store.ImportQuestions(data)
	if err != nil {
		fail(w, r, err)
		return
	}

	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}

	total, err := h.store.QuestionCount()
	if err != nil {
		fail(w, r, err)
		return
	}

	slog.Info("uploaded questions via admin", "filename", header.Filename, "count", n, "total", total)
	writeJSON(w, http.StatusOK, map[string]any{"imported": n, "duplicate": false, "total": total})
}
