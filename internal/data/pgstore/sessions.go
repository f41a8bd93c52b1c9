package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/jackc/pgx/v5"
)

// ClassSessionStore implements classroom.Store on PostgreSQL.
type ClassSessionStore struct {
	db *DB
}

var _ classroom.Store = (*ClassSessionStore)(nil)

// NewClassSessionStore creates a PostgreSQL-backed class session store.
func NewClassSessionStore(db *DB) *ClassSessionStore {
	return &ClassSessionStore{db: db}
}

const sessionColumns = `id, teacher_id, student_id, status, started_at, finished_at`

func scanSession(row pgx.Row) (classroom.Session, error) {
	var (
		s        classroom.Session
		status   string
		finished *time.Time
	)
	if err := row.Scan(&s.ID, &s.TeacherID, &s.StudentID, &status, &s.StartedAt, &finished); err != nil {
		return classroom.Session{}, err
	}
	s.Status = classroom.Status(status)
	s.FinishedAt = finished
	return s, nil
}

func (s *ClassSessionStore) list(ctx context.Context, query string, args ...any) ([]classroom.Session, error) {
	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (classroom.Session, error) {
		return scanSession(row)
	})
}

// Get returns a session by ID.
func (s *ClassSessionStore) Get(ctx context.Context, id string) (classroom.Session, error) {
	sess, err := scanSession(s.db.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE id = $1`, id))
	if isNotFound(err) {
		return classroom.Session{}, classroom.ErrNotFound
	}
	if err != nil {
		return classroom.Session{}, fmt.Errorf("failed to get class session: %w", err)
	}
	return sess, nil
}

// Create inserts a new session.
func (s *ClassSessionStore) Create(ctx context.Context, sess classroom.Session) error {
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO class_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.TeacherID, sess.StudentID, string(sess.Status), sess.StartedAt, sess.FinishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create class session: %w", classroom.ErrActiveSessionExists)
		}
		return fmt.Errorf("failed to create class session: %w", err)
	}
	return nil
}

// Update saves the status and finish time of an existing session.
func (s *ClassSessionStore) Update(ctx context.Context, sess classroom.Session) error {
	tag, err := s.db.pool.Exec(ctx,
		`UPDATE class_sessions SET status = $2, finished_at = $3 WHERE id = $1`,
		sess.ID, string(sess.Status), sess.FinishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to update class session: %w", classroom.ErrActiveSessionExists)
		}
		return fmt.Errorf("failed to update class session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return classroom.ErrNotFound
	}
	return nil
}

// FindActive returns the teacher's in-progress session.
func (s *ClassSessionStore) FindActive(ctx context.Context, teacherID string) (classroom.Session, error) {
	sess, err := scanSession(s.db.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions
		 WHERE teacher_id = $1 AND status = 'in_progress'
		 ORDER BY started_at DESC LIMIT 1`, teacherID))
	if isNotFound(err) {
		return classroom.Session{}, classroom.ErrNotFound
	}
	if err != nil {
		return classroom.Session{}, fmt.Errorf("failed to find active class session: %w", err)
	}
	return sess, nil
}

// ListByStatus returns the teacher's sessions in status, most recently finished first.
func (s *ClassSessionStore) ListByStatus(ctx context.Context, teacherID string, status classroom.Status) ([]classroom.Session, error) {
	out, err := s.list(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions
		 WHERE teacher_id = $1 AND status = $2
		 ORDER BY COALESCE(finished_at, started_at) DESC, id`, teacherID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list class sessions: %w", err)
	}
	return out, nil
}

// ListActive returns every in-progress session.
func (s *ClassSessionStore) ListActive(ctx context.Context) ([]classroom.Session, error) {
	out, err := s.list(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions WHERE status = 'in_progress' ORDER BY teacher_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active class sessions: %w", err)
	}
	return out, nil
}
