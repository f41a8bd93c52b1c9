package eventbus_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/eventbus/testbus"
	"github.com/colonyops/linglenz/internal/core/mistake"
)

func TestRegisterDebugLogger(t *testing.T) {
	tb := testbus.New(t)

	var buf bytes.Buffer
	eventbus.RegisterDebugLogger(tb.EventBus, zerolog.New(&buf).Level(zerolog.DebugLevel))

	tb.PublishSessionStarted(eventbus.SessionStartedPayload{
		Session: classroom.Session{ID: "class-1", TeacherID: "t-1"},
	})
	tb.PublishEntryDeleted(eventbus.EntryDeletedPayload{SessionID: "class-1", EntryID: "e-1"})

	tb.AssertPublished(t, eventbus.EventEntryDeleted)
	assert.Contains(t, buf.String(), "session.started")
	assert.Contains(t, buf.String(), `"teacher_id":"t-1"`)
	assert.Contains(t, buf.String(), `"entry_id":"e-1"`)
}

func TestRegisterDebugLogger_EntryIDSwap(t *testing.T) {
	bus := eventbus.New(4)

	var buf bytes.Buffer
	eventbus.RegisterDebugLogger(bus, zerolog.New(&buf).Level(zerolog.DebugLevel))

	bus.PublishEntryUpdated(eventbus.EntryUpdatedPayload{
		Entry:      mistake.Entry{ID: "durable", SessionID: "class-1", Status: mistake.StatusDone},
		PreviousID: "tmp-abc",
	})

	out := buf.String()
	assert.Contains(t, out, `"entry_id":"durable"`)
	assert.Contains(t, out, `"previous_id":"tmp-abc"`)
	assert.Contains(t, out, `"status":"done"`)
}

func TestEventBus_SubscriberPanicDoesNotStopDispatch(t *testing.T) {
	tb := testbus.New(t)

	panicked := make(chan any, 1)
	tb.OnPanic(func(_ eventbus.Event, _ any, recovered any) {
		panicked <- recovered
	})
	tb.SubscribeEntryDeleted(func(eventbus.EntryDeletedPayload) {
		panic("boom")
	})

	tb.PublishEntryDeleted(eventbus.EntryDeletedPayload{EntryID: "e-1"})
	tb.PublishCaptureFailed(eventbus.CaptureFailedPayload{SessionID: "class-1"})

	tb.AssertPublished(t, eventbus.EventCaptureFailed)
	assert.Equal(t, "boom", <-panicked)
}

func TestEventBus_DropsWhenBufferFull(t *testing.T) {
	bus := eventbus.New(1)

	var dropped []eventbus.Event
	bus.OnDrop(func(e eventbus.Event, _ any) { dropped = append(dropped, e) })

	// Not started, so the second publish overflows the buffer.
	bus.PublishEntryDeleted(eventbus.EntryDeletedPayload{EntryID: "a"})
	bus.PublishEntryDeleted(eventbus.EntryDeletedPayload{EntryID: "b"})

	assert.Equal(t, []eventbus.Event{eventbus.EventEntryDeleted}, dropped)
}
