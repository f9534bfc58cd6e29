package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/jsat/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite has a single writer, and every ":memory:" connection is its own database.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'candidate',
		role_finalized INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (profile_id) REFERENCES profiles(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'Beginner',
		expected_answer TEXT NOT NULL DEFAULT '',
		starter TEXT NOT NULL DEFAULT '',
		language_id INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		started_at DATETIME NOT NULL,
		submitted_at DATETIME,
		total_runs INTEGER NOT NULL DEFAULT 0,
		error_runs INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (profile_id) REFERENCES profiles(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id INTEGER NOT NULL UNIQUE,
		profile_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		correctness REAL NOT NULL DEFAULT 0,
		line_code REAL,
		time_taken REAL,
		runtime REAL,
		error_made REAL,
		feedback TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (attempt_id) REFERENCES attempts(id)
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		evaluation_id INTEGER NOT NULL UNIQUE,
		level INTEGER NOT NULL,
		score INTEGER NOT NULL,
		max_score INTEGER NOT NULL,
		percentage REAL NOT NULL,
		points INTEGER NOT NULL,
		quality REAL NOT NULL,
		FOREIGN KEY (evaluation_id) REFERENCES evaluations(id)
	);

	CREATE TABLE IF NOT EXISTS levels (
		profile_id TEXT PRIMARY KEY,
		level_status TEXT NOT NULL DEFAULT 'Beginner',
		progress INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (profile_id) REFERENCES profiles(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = `id, title, body, category, difficulty, expected_answer, starter, language_id`

func scanQuestion(sc interface{ Scan(...any) error }, q *model.Question) error {
	return sc.Scan(&q.ID, &q.Title, &q.Body, &q.Category, &q.Difficulty, &q.ExpectedAnswer, &q.Starter, &q.LanguageID)
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	return insertQuestion(s.db, q)
}

func insertQuestion(db execer, q model.Question) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO questions (title, body, category, difficulty, expected_answer, starter, language_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.Title, q.Body, q.Category, q.Difficulty, q.ExpectedAnswer, q.Starter, q.LanguageID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListQuestions returns questions, optionally filtered by difficulty and category.
// Empty strings mean no filtering on that field.
func (s *Store) ListQuestions(difficulty, category string) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	var args []any
	if difficulty != "" {
		query += ` AND difficulty = ?`
		args = append(args, difficulty)
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	var q model.Question
	err := scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id), &q)
	return q, err
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// ListCategories returns the distinct question categories, alphabetically.
func (s *Store) ListCategories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM questions WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
