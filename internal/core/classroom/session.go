// Package classroom defines class session domain types and interfaces.
package classroom

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a class session does not exist.
	ErrNotFound = errors.New("class session not found")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid class session transition")

	// ErrActiveSessionExists is returned by stores when inserting a second
	// in-progress session for the same teacher violates the uniqueness backstop.
	ErrActiveSessionExists = errors.New("teacher already has a session in progress")
)

// Status represents the lifecycle state of a class session.
// ENUM(in_progress, pending_review, completed, abandoned).
type Status string

const (
	StatusInProgress    Status = "in_progress"
	StatusPendingReview Status = "pending_review"
	StatusCompleted     Status = "completed"
	StatusAbandoned     Status = "abandoned"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusPendingReview, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Session is one tutoring encounter between a teacher and a student.
//
// A teacher owns at most one session in StatusInProgress at a time. The
// session moves to StatusPendingReview when the teacher finishes the class,
// to StatusAbandoned when it is superseded before being finished, and to
// StatusCompleted once homework has been generated from it.
type Session struct {
	ID         string     `json:"id"`
	TeacherID  string     `json:"teacher_id"`
	StudentID  string     `json:"student_id"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// New creates an in-progress session.
func New(id, teacherID, studentID string, now time.Time) Session {
	return Session{
		ID:        id,
		TeacherID: teacherID,
		StudentID: studentID,
		Status:    StatusInProgress,
		StartedAt: now,
	}
}

// Active reports whether the session is in progress.
func (s *Session) Active() bool {
	return s.Status == StatusInProgress
}

// MarkPendingReview ends an in-progress class.
func (s *Session) MarkPendingReview(now time.Time) error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusPendingReview)
	}
	s.Status = StatusPendingReview
	s.FinishedAt = &now
	return nil
}

// MarkAbandoned supersedes an in-progress class that was never finished.
func (s *Session) MarkAbandoned(now time.Time) error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusAbandoned)
	}
	s.Status = StatusAbandoned
	s.FinishedAt = &now
	return nil
}

// MarkCompleted records that homework was generated from a reviewed class.
// The finish timestamp set when the class ended is kept.
func (s *Session) MarkCompleted(now time.Time) error {
	if s.Status != StatusPendingReview {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusCompleted)
	}
	s.Status = StatusCompleted
	if s.FinishedAt == nil {
		s.FinishedAt = &now
	}
	return nil
}

// ConflictError is returned when a teacher tries to start a class while
// another one is still in progress. The caller chooses to resume Existing or
// abandon it and start over.
type ConflictError struct {
	Existing Session
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("class session %s with student %s is already in progress", e.Existing.ID, e.Existing.StudentID)
}

// Is makes errors.Is(err, ErrActiveSessionExists) match conflicts.
func (e *ConflictError) Is(target error) bool {
	return target == ErrActiveSessionExists
}

// Store persists class sessions.
type Store interface {
	// Get returns a session by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Session, error)
	// Create inserts a new session. Returns ErrActiveSessionExists if the
	// teacher already has an in-progress session.
	Create(ctx context.Context, sess Session) error
	// Update saves status and finish timestamp of an existing session.
	Update(ctx context.Context, sess Session) error
	// FindActive returns the teacher's in-progress session, or ErrNotFound.
	FindActive(ctx context.Context, teacherID string) (Session, error)
	// ListByStatus returns the teacher's sessions in the given status,
	// most recently finished first.
	ListByStatus(ctx context.Context, teacherID string, status Status) ([]Session, error)
	// ListActive returns every in-progress session across teachers.
	ListActive(ctx context.Context) ([]Session, error)
}
