package lenz

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
)

// Watcher polls the session store and publishes session.active-changed when
// a teacher's in-progress class appears, changes or disappears. It picks up
// changes made by other processes sharing the database, so staleness is
// bounded by the poll interval.
type Watcher struct {
	sessions classroom.Store
	bus      *eventbus.EventBus
	interval time.Duration
	log      zerolog.Logger

	known  map[string]classroom.Session // teacher id -> active session
	seeded bool
}

// NewWatcher creates a watcher polling every interval.
func NewWatcher(sessions classroom.Store, bus *eventbus.EventBus, interval time.Duration, log zerolog.Logger) *Watcher {
	return &Watcher{
		sessions: sessions,
		bus:      bus,
		interval: interval,
		log:      log,
		known:    make(map[string]classroom.Session),
	}
}

// Run polls until ctx is cancelled. The first poll records the current state
// without publishing.
func (w *Watcher) Run(ctx context.Context) {
	w.Poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll compares the active sessions in storage with the last poll and
// publishes the differences.
func (w *Watcher) Poll(ctx context.Context) {
	active, err := w.sessions.ListActive(ctx)
	if err != nil {
		w.log.Debug().Err(err).Msg("active session poll failed")
		return
	}

	current := make(map[string]classroom.Session, len(active))
	for _, sess := range active {
		current[sess.TeacherID] = sess
	}

	if w.seeded {
		for teacherID, sess := range current {
			if prev, ok := w.known[teacherID]; ok && prev.ID == sess.ID {
				continue
			}
			s := sess
			w.bus.PublishSessionActiveChanged(eventbus.SessionActiveChangedPayload{TeacherID: teacherID, Active: &s})
		}
		for teacherID := range w.known {
			if _, ok := current[teacherID]; !ok {
				w.bus.PublishSessionActiveChanged(eventbus.SessionActiveChangedPayload{TeacherID: teacherID})
			}
		}
	}

	w.known = current
	w.seeded = true
}
