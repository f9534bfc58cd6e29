package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/pavelanni/jsat/internal/model"
)

const profileColumns = `id, username, first_name, last_name, password_hash, role, role_finalized, active, created_at`

func scanProfile(sc interface{ Scan(...any) error }, p *model.Profile) error {
	return sc.Scan(&p.ID, &p.Username, &p.FirstName, &p.LastName, &p.PasswordHash, &p.Role, &p.RoleFinalized, &p.Active, &p.CreatedAt)
}

// Username builds a handle from first and last name ("Ada Lovelace" -> "adalovelace").
func Username(first, last string) string {
	return slug.Make(first + last)
}

// CreateProfile inserts a new profile. A missing ID is generated and a missing
// username is derived from the name. It returns the profile ID.
func (s *Store) CreateProfile(p model.Profile) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Username == "" {
		p.Username = Username(p.FirstName, p.LastName)
	}
	if p.Username == "" {
		p.Username = p.ID[:8]
	}
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, username, first_name, last_name, password_hash, role, role_finalized, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.FirstName, p.LastName, p.PasswordHash, p.Role, p.RoleFinalized, p.Active, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create profile", "username", p.Username, "error", err)
		return "", fmt.Errorf("create profile %s: %w", p.Username, err)
	}
	slog.Info("created profile", "id", p.ID, "username", p.Username, "role", p.Role)
	return p.ID, nil
}

// GetProfileByUsername returns a profile by username.
func (s *Store) GetProfileByUsername(username string) (*model.Profile, error) {
	var p model.Profile
	err := scanProfile(s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE username = ?`, username), &p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile returns a profile by ID.
func (s *Store) GetProfile(id string) (*model.Profile, error) {
	var p model.Profile
	err := scanProfile(s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id), &p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfiles returns all profiles, oldest first.
func (s *Store) ListProfiles() ([]model.Profile, error) {
	return s.queryProfiles(`SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at, id`)
}

// ListCandidates returns active candidates, oldest first.
func (s *Store) ListCandidates() ([]model.Profile, error) {
	return s.queryProfiles(
		`SELECT `+profileColumns+` FROM profiles WHERE role = ? AND active = 1 ORDER BY created_at, id`,
		model.UserRoleCandidate,
	)
}

func (s *Store) queryProfiles(query string, args ...any) ([]model.Profile, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := scanProfile(rows, &p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ToggleProfileActive flips the active flag on a profile.
func (s *Store) ToggleProfileActive(id string) error {
	_, err := s.db.Exec(`UPDATE profiles SET active = NOT active WHERE id = ?`, id)
	return err
}

// FinalizeRole sets the profile's role and marks it final.
func (s *Store) FinalizeRole(id string, role model.UserRole) error {
	_, err := s.db.Exec(`UPDATE profiles SET role = ?, role_finalized = 1 WHERE id = ?`, role, id)
	return err
}

// ProfileCount returns the total number of profiles.
func (s *Store) ProfileCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count)
	return count, err
}
