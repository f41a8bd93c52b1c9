package lenz

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/eventbus/testbus"
)

func TestWatcher_FirstPollSeedsSilently(t *testing.T) {
	store := newMockSessions()
	store.put(activeSession("sess-1", "teacher-1", "student-x"))
	bus := testbus.New(t)

	w := NewWatcher(store, bus.EventBus, time.Hour, zerolog.Nop())
	w.Poll(context.Background())

	bus.AssertNotPublished(t, eventbus.EventSessionActiveChanged, 20*time.Millisecond)
}

func TestWatcher_PublishesChanges(t *testing.T) {
	store := newMockSessions()
	x := activeSession("sess-1", "teacher-1", "student-x")
	store.put(x)
	bus := testbus.New(t)

	w := NewWatcher(store, bus.EventBus, time.Hour, zerolog.Nop())
	ctx := context.Background()
	w.Poll(ctx)

	// Another process abandons X and starts Y.
	require.NoError(t, x.MarkAbandoned(time.Now()))
	store.put(x)
	store.put(activeSession("sess-2", "teacher-1", "student-y"))
	w.Poll(ctx)

	require.True(t, bus.WaitForN(eventbus.EventSessionActiveChanged, 1, waitFor))
	p := bus.Of(eventbus.EventSessionActiveChanged)[0].(eventbus.SessionActiveChangedPayload)
	assert.Equal(t, "teacher-1", p.TeacherID)
	require.NotNil(t, p.Active)
	assert.Equal(t, "sess-2", p.Active.ID)

	// No change, no event.
	w.Poll(ctx)

	// The class ends elsewhere.
	y, err := store.Get(ctx, "sess-2")
	require.NoError(t, err)
	require.NoError(t, y.MarkPendingReview(time.Now()))
	store.put(y)
	w.Poll(ctx)

	require.True(t, bus.WaitForN(eventbus.EventSessionActiveChanged, 2, waitFor))
	time.Sleep(20 * time.Millisecond)
	events := bus.Of(eventbus.EventSessionActiveChanged)
	require.Len(t, events, 2)
	last := events[1].(eventbus.SessionActiveChangedPayload)
	assert.Equal(t, "teacher-1", last.TeacherID)
	assert.Nil(t, last.Active)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	store := newMockSessions()
	bus := testbus.New(t)
	w := NewWatcher(store, bus.EventBus, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	w.Poll(ctx)

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	store.put(classroom.New("sess-9", "teacher-9", "student-9", time.Now()))
	require.True(t, bus.WaitFor(eventbus.EventSessionActiveChanged, waitFor))

	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("watcher did not stop")
	}
}
