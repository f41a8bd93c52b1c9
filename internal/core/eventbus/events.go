// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within linglenz.
package eventbus

import (
	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/mistake"
)

// Event names a published event.
type Event string

const (
	// Keep list sorted A-Z
	EventCaptureFailed        Event = "capture.failed"
	EventEntryDeleted         Event = "entry.deleted"
	EventEntryUpdated         Event = "entry.updated"
	EventSessionAbandoned     Event = "session.abandoned"
	EventSessionActiveChanged Event = "session.active-changed"
	EventSessionCompleted     Event = "session.completed"
	EventSessionEnded         Event = "session.ended"
	EventSessionResumed       Event = "session.resumed"
	EventSessionStarted       Event = "session.started"
)

// SessionStartedPayload is emitted when a new class session is created.
type SessionStartedPayload struct {
	Session classroom.Session
}

// SessionResumedPayload is emitted when a teacher returns to an in-progress class.
type SessionResumedPayload struct {
	Session classroom.Session
}

// SessionEndedPayload is emitted when a class moves to pending review.
type SessionEndedPayload struct {
	Session classroom.Session
}

// SessionAbandonedPayload is emitted when an in-progress class is superseded.
type SessionAbandonedPayload struct {
	Session classroom.Session
}

// SessionCompletedPayload is emitted once homework was generated for a class.
type SessionCompletedPayload struct {
	Session classroom.Session
}

// SessionActiveChangedPayload carries the teacher's current in-progress
// session, or nil when the teacher has none. It may be delivered more than
// once for the same state.
type SessionActiveChangedPayload struct {
	TeacherID string
	Active    *classroom.Session
}

// EntryUpdatedPayload is emitted whenever a ledger entry is inserted or
// changes. PreviousID is set when the entry's temporary id was swapped for
// its durable id in the same update.
type EntryUpdatedPayload struct {
	Entry      mistake.Entry
	PreviousID string
}

// EntryDeletedPayload is emitted when an entry is removed from a ledger.
type EntryDeletedPayload struct {
	SessionID string
	EntryID   string
}

// CaptureFailedPayload is emitted once when audio capture cannot start or
// stops because of a device error.
type CaptureFailedPayload struct {
	SessionID string
	Err       error
}
