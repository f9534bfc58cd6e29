package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/pavelanni/jsat/internal/model"
)

// SessionTTL is how long a login stays valid without activity.
const SessionTTL = 24 * time.Hour

// OpenSession starts a login for a profile.
func (s *Store) OpenSession(profileID string) (model.AuthSession, error) {
	token, err := newSessionToken()
	if err != nil {
		return model.AuthSession{}, err
	}
	now := s.now()
	sess := model.AuthSession{ID: token, ProfileID: profileID, CreatedAt: now, ExpiresAt: now.Add(SessionTTL)}
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, profile_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.ProfileID, sess.CreatedAt, sess.ExpiresAt,
	); err != nil {
		return model.AuthSession{}, err
	}
	return sess, nil
}

// Session returns the live login for a token, or nil when it is unknown or
// expired. A login used in the second half of its lifetime is extended by
// another SessionTTL.
func (s *Store) Session(token string) (*model.AuthSession, error) {
	var sess model.AuthSession
	err := s.db.QueryRow(
		`SELECT id, profile_id, created_at, expires_at FROM auth_sessions WHERE id = ?`, token,
	).Scan(&sess.ID, &sess.ProfileID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !now.Before(sess.ExpiresAt) {
		return nil, nil
	}
	if sess.ExpiresAt.Sub(now) < SessionTTL/2 {
		sess.ExpiresAt = now.Add(SessionTTL)
		if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`, sess.ExpiresAt, sess.ID); err != nil {
			return nil, err
		}
	}
	return &sess, nil
}

// CloseSession ends one login.
func (s *Store) CloseSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

// RevokeSessions ends every login of a profile and reports how many there were.
func (s *Store) RevokeSessions(profileID string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE profile_id = ?`, profileID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpiredSessions deletes expired logins and reports how many were removed.
func (s *Store) PurgeExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at <= ?`, s.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
