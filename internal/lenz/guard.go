// Package lenz wires the live class workflow: the active session guard, the
// per-session ledger of analyzed utterances, the analysis state machine and
// the capture pipeline feeding it.
package lenz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/logging"
	"github.com/colonyops/linglenz/internal/metrics"
	"github.com/colonyops/linglenz/pkg/kv"
)

// Guard enforces that a teacher has at most one class in progress.
//
// Mutations for one teacher are serialized in process through a keyed mutex.
// Across processes the store's uniqueness constraint is the backstop; a
// losing concurrent start surfaces as a *classroom.ConflictError just like
// the in-process check.
type Guard struct {
	sessions classroom.Store
	bus      *eventbus.EventBus
	metrics  *metrics.Metrics
	log      zerolog.Logger
	locks    *kv.Store[string, *sync.Mutex]

	now   func() time.Time
	newID func() string
}

// NewGuard creates a Guard over the session store.
func NewGuard(sessions classroom.Store, bus *eventbus.EventBus, m *metrics.Metrics, log zerolog.Logger) *Guard {
	return &Guard{
		sessions: sessions,
		bus:      bus,
		metrics:  m,
		log:      log,
		locks:    kv.New[string, *sync.Mutex](),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (g *Guard) lock(teacherID string) func() {
	mu, _ := g.locks.GetOrSet(teacherID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// CheckActive returns the teacher's in-progress session, or nil when there is
// none. It never mutates state.
func (g *Guard) CheckActive(ctx context.Context, teacherID string) (*classroom.Session, error) {
	if err := invalidID("teacher", teacherID); err != nil {
		return nil, err
	}

	sess, err := g.sessions.FindActive(ctx, teacherID)
	if errors.Is(err, classroom.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Get returns a session by id.
func (g *Guard) Get(ctx context.Context, sessionID string) (classroom.Session, error) {
	return g.sessions.Get(ctx, sessionID)
}

// StartSession creates an in-progress session for the teacher and student.
// When the teacher already has one, nothing is created and a
// *classroom.ConflictError carrying the existing session is returned.
func (g *Guard) StartSession(ctx context.Context, teacherID, studentID string) (classroom.Session, error) {
	if err := validateParticipants(teacherID, studentID); err != nil {
		return classroom.Session{}, err
	}

	unlock := g.lock(teacherID)
	defer unlock()

	existing, err := g.CheckActive(ctx, teacherID)
	if err != nil {
		return classroom.Session{}, err
	}
	if existing != nil {
		return classroom.Session{}, &classroom.ConflictError{Existing: *existing}
	}

	return g.create(ctx, teacherID, studentID)
}

// Resume returns the teacher's in-progress session without creating anything.
// sessionID may be empty to resume whatever is active.
func (g *Guard) Resume(ctx context.Context, teacherID, sessionID string) (classroom.Session, error) {
	existing, err := g.CheckActive(ctx, teacherID)
	if err != nil {
		return classroom.Session{}, err
	}
	if existing == nil || (sessionID != "" && existing.ID != sessionID) {
		return classroom.Session{}, fmt.Errorf("resume %s: %w", sessionID, classroom.ErrNotFound)
	}

	g.bus.PublishSessionResumed(eventbus.SessionResumedPayload{Session: *existing})
	g.log.Info().
		Ctx(g.logCtx(ctx, *existing)).
		Msg("class session resumed")
	return *existing, nil
}

// AbandonAndStart marks the teacher's in-progress session abandoned, if any,
// then starts a new one with the student.
func (g *Guard) AbandonAndStart(ctx context.Context, teacherID, studentID string) (classroom.Session, error) {
	if err := validateParticipants(teacherID, studentID); err != nil {
		return classroom.Session{}, err
	}

	unlock := g.lock(teacherID)
	defer unlock()

	existing, err := g.CheckActive(ctx, teacherID)
	if err != nil {
		return classroom.Session{}, err
	}
	if existing != nil {
		if err := existing.MarkAbandoned(g.now()); err != nil {
			return classroom.Session{}, err
		}
		if err := g.sessions.Update(ctx, *existing); err != nil {
			return classroom.Session{}, fmt.Errorf("abandon session %s: %w", existing.ID, err)
		}
		g.metrics.RecordSessionTransition(string(classroom.StatusAbandoned))
		g.bus.PublishSessionAbandoned(eventbus.SessionAbandonedPayload{Session: *existing})
		g.log.Info().
			Ctx(g.logCtx(ctx, *existing)).
			Msg("class session abandoned")
	}

	return g.create(ctx, teacherID, studentID)
}

// EndSession moves an in-progress session to pending review. Callers stop
// audio capture before calling it.
func (g *Guard) EndSession(ctx context.Context, sessionID string) (classroom.Session, error) {
	return g.transition(ctx, sessionID, classroom.StatusPendingReview, func(s *classroom.Session, now time.Time) error {
		return s.MarkPendingReview(now)
	})
}

// Complete records that homework was generated from a reviewed session.
func (g *Guard) Complete(ctx context.Context, sessionID string) (classroom.Session, error) {
	return g.transition(ctx, sessionID, classroom.StatusCompleted, func(s *classroom.Session, now time.Time) error {
		return s.MarkCompleted(now)
	})
}

// ListPendingReview returns the teacher's ended sessions awaiting review,
// most recently finished first.
func (g *Guard) ListPendingReview(ctx context.Context, teacherID string) ([]classroom.Session, error) {
	if err := invalidID("teacher", teacherID); err != nil {
		return nil, err
	}
	return g.sessions.ListByStatus(ctx, teacherID, classroom.StatusPendingReview)
}

// ListActive returns every in-progress session across teachers.
func (g *Guard) ListActive(ctx context.Context) ([]classroom.Session, error) {
	return g.sessions.ListActive(ctx)
}

func (g *Guard) create(ctx context.Context, teacherID, studentID string) (classroom.Session, error) {
	sess := classroom.New(g.newID(), teacherID, studentID, g.now())

	if err := g.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, classroom.ErrActiveSessionExists) {
			// Lost a race with another process.
			if existing, findErr := g.CheckActive(ctx, teacherID); findErr == nil && existing != nil {
				return classroom.Session{}, &classroom.ConflictError{Existing: *existing}
			}
		}
		return classroom.Session{}, fmt.Errorf("create session: %w", err)
	}

	g.metrics.RecordSessionTransition(string(classroom.StatusInProgress))
	g.bus.PublishSessionStarted(eventbus.SessionStartedPayload{Session: sess})
	g.log.Info().
		Ctx(g.logCtx(ctx, sess)).
		Str("student_id", sess.StudentID).
		Msg("class session started")
	return sess, nil
}

func (g *Guard) transition(
	ctx context.Context,
	sessionID string,
	to classroom.Status,
	apply func(*classroom.Session, time.Time) error,
) (classroom.Session, error) {
	sess, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		return classroom.Session{}, err
	}

	unlock := g.lock(sess.TeacherID)
	defer unlock()

	// Reload under the teacher lock.
	sess, err = g.sessions.Get(ctx, sessionID)
	if err != nil {
		return classroom.Session{}, err
	}

	if err := apply(&sess, g.now()); err != nil {
		return classroom.Session{}, err
	}
	if err := g.sessions.Update(ctx, sess); err != nil {
		return classroom.Session{}, fmt.Errorf("update session %s: %w", sessionID, err)
	}

	g.metrics.RecordSessionTransition(string(to))
	switch to {
	case classroom.StatusPendingReview:
		g.bus.PublishSessionEnded(eventbus.SessionEndedPayload{Session: sess})
	case classroom.StatusCompleted:
		g.bus.PublishSessionCompleted(eventbus.SessionCompletedPayload{Session: sess})
	}

	g.log.Info().
		Ctx(g.logCtx(ctx, sess)).
		Str("status", string(sess.Status)).
		Msg("class session updated")
	return sess, nil
}

func (g *Guard) logCtx(ctx context.Context, sess classroom.Session) context.Context {
	ctx = logging.WithTeacherID(ctx, sess.TeacherID)
	return logging.WithClassSessionID(ctx, sess.ID)
}

func validateParticipants(teacherID, studentID string) error {
	if err := invalidID("teacher", teacherID); err != nil {
		return err
	}
	return invalidID("student", studentID)
}
