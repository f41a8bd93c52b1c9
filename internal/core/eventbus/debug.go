package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger logs bus activity: every published event at debug level
// with the identifiers it concerns, dropped events as warnings and subscriber
// panics as errors.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		e := logger.Debug().Str("event", string(event))
		describe(e, payload).Msg("event published")
	})

	bus.OnDrop(func(event Event, payload any) {
		e := logger.Warn().Str("event", string(event))
		describe(e, payload).Msg("event dropped, bus buffer full")
	})

	bus.OnPanic(func(event Event, _ any, recovered any) {
		logger.Error().
			Str("event", string(event)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

// describe adds the identifiers carried by a payload.
func describe(e *zerolog.Event, payload any) *zerolog.Event {
	switch p := payload.(type) {
	case SessionStartedPayload:
		return e.Str("class_session_id", p.Session.ID).Str("teacher_id", p.Session.TeacherID)
	case SessionResumedPayload:
		return e.Str("class_session_id", p.Session.ID).Str("teacher_id", p.Session.TeacherID)
	case SessionEndedPayload:
		return e.Str("class_session_id", p.Session.ID).Str("teacher_id", p.Session.TeacherID)
	case SessionAbandonedPayload:
		return e.Str("class_session_id", p.Session.ID).Str("teacher_id", p.Session.TeacherID)
	case SessionCompletedPayload:
		return e.Str("class_session_id", p.Session.ID).Str("teacher_id", p.Session.TeacherID)
	case SessionActiveChangedPayload:
		e = e.Str("teacher_id", p.TeacherID).Bool("active", p.Active != nil)
		if p.Active != nil {
			e = e.Str("class_session_id", p.Active.ID)
		}
		return e
	case EntryUpdatedPayload:
		e = e.Str("class_session_id", p.Entry.SessionID).
			Str("entry_id", p.Entry.ID).
			Str("status", string(p.Entry.Status))
		if p.PreviousID != "" {
			e = e.Str("previous_id", p.PreviousID)
		}
		return e
	case EntryDeletedPayload:
		return e.Str("class_session_id", p.SessionID).Str("entry_id", p.EntryID)
	case CaptureFailedPayload:
		return e.Str("class_session_id", p.SessionID).AnErr("cause", p.Err)
	}
	return e
}
