// Package stores implements the domain stores on top of the SQLite database.
package stores

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/data/db"
)

// ClassSessionStore implements classroom.Store using SQLite.
type ClassSessionStore struct {
	db *db.DB
}

var _ classroom.Store = (*ClassSessionStore)(nil)

// NewClassSessionStore creates a new SQLite-backed class session store.
func NewClassSessionStore(db *db.DB) *ClassSessionStore {
	return &ClassSessionStore{db: db}
}

// Get returns a session by ID. Returns ErrNotFound if not found.
func (s *ClassSessionStore) Get(ctx context.Context, id string) (classroom.Session, error) {
	row, err := s.db.Queries().GetClassSession(ctx, id)
	if IsNotFoundError(err) {
		return classroom.Session{}, classroom.ErrNotFound
	}
	if err != nil {
		return classroom.Session{}, fmt.Errorf("failed to get class session: %w", err)
	}
	return rowToSession(row), nil
}

// Create inserts a new session. The partial unique index on in-progress
// sessions turns a concurrent second start into ErrActiveSessionExists.
func (s *ClassSessionStore) Create(ctx context.Context, sess classroom.Session) error {
	err := s.db.Queries().InsertClassSession(ctx, sessionToRow(sess))
	if err != nil {
		if sess.Active() && IsConstraintError(err) {
			return fmt.Errorf("failed to create class session: %w", classroom.ErrActiveSessionExists)
		}
		return fmt.Errorf("failed to create class session: %w", err)
	}
	return nil
}

// Update saves the status and finish time of an existing session.
func (s *ClassSessionStore) Update(ctx context.Context, sess classroom.Session) error {
	row := sessionToRow(sess)
	n, err := s.db.Queries().UpdateClassSessionStatus(ctx, db.UpdateClassSessionStatusParams{
		ID:         row.ID,
		Status:     row.Status,
		FinishedAt: row.FinishedAt,
	})
	if err != nil {
		if sess.Active() && IsConstraintError(err) {
			return fmt.Errorf("failed to update class session: %w", classroom.ErrActiveSessionExists)
		}
		return fmt.Errorf("failed to update class session: %w", err)
	}
	if n == 0 {
		return classroom.ErrNotFound
	}
	return nil
}

// FindActive returns the teacher's in-progress session.
func (s *ClassSessionStore) FindActive(ctx context.Context, teacherID string) (classroom.Session, error) {
	row, err := s.db.Queries().GetActiveClassSession(ctx, teacherID)
	if IsNotFoundError(err) {
		return classroom.Session{}, classroom.ErrNotFound
	}
	if err != nil {
		return classroom.Session{}, fmt.Errorf("failed to find active class session: %w", err)
	}
	return rowToSession(row), nil
}

// ListByStatus returns the teacher's sessions in status, most recently finished first.
func (s *ClassSessionStore) ListByStatus(ctx context.Context, teacherID string, status classroom.Status) ([]classroom.Session, error) {
	rows, err := s.db.Queries().ListClassSessionsByStatus(ctx, teacherID, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list class sessions: %w", err)
	}
	return rowsToSessions(rows), nil
}

// ListActive returns every in-progress session.
func (s *ClassSessionStore) ListActive(ctx context.Context) ([]classroom.Session, error) {
	rows, err := s.db.Queries().ListActiveClassSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active class sessions: %w", err)
	}
	return rowsToSessions(rows), nil
}

func rowsToSessions(rows []db.ClassSession) []classroom.Session {
	out := make([]classroom.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToSession(row))
	}
	return out
}

// rowToSession converts a db.ClassSession to a classroom.Session.
func rowToSession(row db.ClassSession) classroom.Session {
	sess := classroom.Session{
		ID:        row.ID,
		TeacherID: row.TeacherID,
		StudentID: row.StudentID,
		Status:    classroom.Status(row.Status),
		StartedAt: time.Unix(0, row.StartedAt),
	}
	if row.FinishedAt.Valid {
		t := time.Unix(0, row.FinishedAt.Int64)
		sess.FinishedAt = &t
	}
	return sess
}

func sessionToRow(sess classroom.Session) db.ClassSession {
	row := db.ClassSession{
		ID:        sess.ID,
		TeacherID: sess.TeacherID,
		StudentID: sess.StudentID,
		Status:    string(sess.Status),
		StartedAt: sess.StartedAt.UnixNano(),
	}
	if sess.FinishedAt != nil {
		row.FinishedAt = sql.NullInt64{Int64: sess.FinishedAt.UnixNano(), Valid: true}
	}
	return row
}
