package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelanni/jsat/internal/model"
	"github.com/pavelanni/jsat/internal/scoring"
)

// ImportQuestions validates and stores questions from a JSON array.
func (s *Store) ImportQuestions(data []byte) (int, error) {
	var questions []model.QuestionImport
	if err := json.Unmarshal(data, &questions); err != nil {
		return 0, fmt.Errorf("%w: invalid JSON: %v", scoring.ErrInvalidInput, err)
	}

	parsed := make([]model.Question, 0, len(questions))
	for i, qi := range questions {
		if strings.TrimSpace(qi.Title) == "" {
			return 0, fmt.Errorf("%w: question %d has no title", scoring.ErrInvalidInput, i+1)
		}
		difficulty := scoring.TierBeginner
		if qi.Difficulty != "" {
			t, err := scoring.ParseTier(string(qi.Difficulty))
			if err != nil {
				return 0, fmt.Errorf("question %d: %w", i+1, err)
			}
			difficulty = t
		}
		parsed = append(parsed, model.Question{
			Title:          qi.Title,
			Body:           qi.Body,
			Category:       qi.Category,
			Difficulty:     difficulty,
			ExpectedAnswer: qi.ExpectedAnswer,
			Starter:        qi.Starter,
			LanguageID:     qi.LanguageID,
		})
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, q := range parsed {
		if _, err := insertQuestion(tx, q); err != nil {
			return 0, fmt.Errorf("insert question %q: %w", q.Title, err)
		}
	}
	return len(parsed), tx.Commit()
}

// ContentHash is the hex SHA-256 used to skip re-imports of unchanged files.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
