package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS workshops (
			id TEXT PRIMARY KEY,
			tenant_id TEXT,
			title TEXT,
			description TEXT,
			canvas_type TEXT,
			questions TEXT,
			sections TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			workshop_id TEXT,
			tenant_id TEXT,
			participant_id TEXT,
			status TEXT,
			answers TEXT,
			canvas TEXT,
			feedback_status TEXT,
			suggestions TEXT,
			session_id TEXT,
			session_last_updated INTEGER,
			created_at INTEGER,
			updated_at INTEGER,
			FOREIGN KEY(workshop_id) REFERENCES workshops(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_session ON submissions(session_id, session_last_updated);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	return err
}

func (s *SQLiteStore) GetConfig(key string) (string, error) {
	query := `SELECT value FROM configuration WHERE key = ?`
	row := s.db.QueryRow(query, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// Workshop Implementation

func (s *SQLiteStore) SaveWorkshop(ctx context.Context, w *Workshop) error {
	questions, err := json.Marshal(w.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}
	sections, err := json.Marshal(w.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	query := `INSERT INTO workshops (id, tenant_id, title, description, canvas_type, questions, sections)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			title = excluded.title,
			description = excluded.description,
			canvas_type = excluded.canvas_type,
			questions = excluded.questions,
			sections = excluded.sections`
	_, err = s.db.ExecContext(ctx, query, w.ID, w.TenantID, w.Title, w.Description, w.CanvasType, string(questions), string(sections))
	return err
}

const workshopColumns = `id, tenant_id, title, description, canvas_type, questions, sections`

func (s *SQLiteStore) GetWorkshop(ctx context.Context, id string) (*Workshop, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workshopColumns+` FROM workshops WHERE id = ?`, id)
	w, err := scanWorkshop(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workshop %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return w, nil
}

func (s *SQLiteStore) ListWorkshops(ctx context.Context) ([]*Workshop, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workshopColumns+` FROM workshops ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workshops []*Workshop
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, err
		}
		workshops = append(workshops, w)
	}
	return workshops, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkshop(row scanner) (*Workshop, error) {
	var w Workshop
	var questions, sections string
	if err := row.Scan(&w.ID, &w.TenantID, &w.Title, &w.Description, &w.CanvasType, &questions, &sections); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &w.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	if err := json.Unmarshal([]byte(sections), &w.Sections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
	}
	return &w, nil
}

// Submission Implementation

func (s *SQLiteStore) SaveSubmission(ctx context.Context, sub *Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	canvas, err := json.Marshal(sub.Canvas)
	if err != nil {
		return fmt.Errorf("failed to marshal canvas: %w", err)
	}
	var suggestions sql.NullString
	if sub.Suggestions != nil {
		raw, err := json.Marshal(sub.Suggestions)
		if err != nil {
			return fmt.Errorf("failed to marshal suggestions: %w", err)
		}
		suggestions = sql.NullString{String: string(raw), Valid: true}
	}
	var sessionID sql.NullString
	var lastUpdated sql.NullInt64
	if sub.SessionID != "" {
		sessionID = sql.NullString{String: sub.SessionID, Valid: true}
	}
	if sub.SessionLastUpdated != nil {
		lastUpdated = sql.NullInt64{Int64: sub.SessionLastUpdated.UnixNano(), Valid: true}
	}

	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	query := `INSERT INTO submissions (id, workshop_id, tenant_id, participant_id, status, answers, canvas,
			feedback_status, suggestions, session_id, session_last_updated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workshop_id = excluded.workshop_id,
			tenant_id = excluded.tenant_id,
			participant_id = excluded.participant_id,
			status = excluded.status,
			answers = excluded.answers,
			canvas = excluded.canvas,
			feedback_status = excluded.feedback_status,
			suggestions = excluded.suggestions,
			session_id = excluded.session_id,
			session_last_updated = excluded.session_last_updated,
			updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		sub.ID, sub.WorkshopID, sub.TenantID, sub.ParticipantID, sub.Status,
		string(answers), string(canvas), string(sub.FeedbackStatus), suggestions,
		sessionID, lastUpdated, sub.CreatedAt.UnixNano(), sub.UpdatedAt.UnixNano())
	return err
}

const submissionColumns = `id, workshop_id, tenant_id, participant_id, status, answers, canvas,
	feedback_status, suggestions, session_id, session_last_updated, created_at, updated_at`

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return sub, nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, workshopID string) ([]*Submission, error) {
	return s.querySubmissions(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE workshop_id = ? ORDER BY created_at`, workshopID)
}

func (s *SQLiteStore) FindExpiredSessions(ctx context.Context, olderThan time.Time) ([]*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE session_id IS NOT NULL AND session_id != ''
		AND session_last_updated IS NOT NULL AND session_last_updated < ?`
	return s.querySubmissions(ctx, query, olderThan.UnixNano())
}

func (s *SQLiteStore) querySubmissions(ctx context.Context, query string, args ...any) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubmission(row scanner) (*Submission, error) {
	var sub Submission
	var answers, canvas, feedbackStatus string
	var suggestions, sessionID sql.NullString
	var lastUpdated sql.NullInt64
	var createdAt, updatedAt int64

	if err := row.Scan(&sub.ID, &sub.WorkshopID, &sub.TenantID, &sub.ParticipantID, &sub.Status,
		&answers, &canvas, &feedbackStatus, &suggestions, &sessionID, &lastUpdated,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	if err := json.Unmarshal([]byte(canvas), &sub.Canvas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal canvas: %w", err)
	}
	if suggestions.Valid {
		var sg Suggestions
		if err := json.Unmarshal([]byte(suggestions.String), &sg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal suggestions: %w", err)
		}
		sub.Suggestions = &sg
	}
	sub.FeedbackStatus = FeedbackStatus(feedbackStatus)
	sub.SessionID = sessionID.String
	if lastUpdated.Valid {
		t := time.Unix(0, lastUpdated.Int64)
		sub.SessionLastUpdated = &t
	}
	sub.CreatedAt = time.Unix(0, createdAt)
	sub.UpdatedAt = time.Unix(0, updatedAt)
	return &sub, nil
}
