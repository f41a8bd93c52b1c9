package eventbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/eventbus/testbus"
)

func lastActiveChanged(t *testing.T, tb *testbus.Bus, n int) eventbus.SessionActiveChangedPayload {
	t.Helper()
	require.True(t, tb.WaitForN(eventbus.EventSessionActiveChanged, n, time.Second))

	payloads := tb.Of(eventbus.EventSessionActiveChanged)
	p, ok := payloads[len(payloads)-1].(eventbus.SessionActiveChangedPayload)
	require.True(t, ok)
	return p
}

func TestActiveSessionRouter_Started(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewActiveSessionRouter(tb.EventBus).Register()

	sess := classroom.New("class-1", "teacher-1", "student-x", time.Now())
	tb.PublishSessionStarted(eventbus.SessionStartedPayload{Session: sess})

	p := lastActiveChanged(t, tb, 1)
	assert.Equal(t, "teacher-1", p.TeacherID)
	require.NotNil(t, p.Active)
	assert.Equal(t, "class-1", p.Active.ID)
}

func TestActiveSessionRouter_EndedClearsActive(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewActiveSessionRouter(tb.EventBus).Register()

	sess := classroom.New("class-1", "teacher-1", "student-x", time.Now())
	require.NoError(t, sess.MarkPendingReview(time.Now()))
	tb.PublishSessionEnded(eventbus.SessionEndedPayload{Session: sess})

	p := lastActiveChanged(t, tb, 1)
	assert.Equal(t, "teacher-1", p.TeacherID)
	assert.Nil(t, p.Active)
}

func TestActiveSessionRouter_ResumeIsNotAChange(t *testing.T) {
	tb := testbus.New(t)
	eventbus.NewActiveSessionRouter(tb.EventBus).Register()

	sess := classroom.New("class-1", "teacher-1", "student-x", time.Now())
	tb.PublishSessionResumed(eventbus.SessionResumedPayload{Session: sess})

	tb.AssertPublished(t, eventbus.EventSessionResumed)
	tb.AssertNotPublished(t, eventbus.EventSessionActiveChanged, 50*time.Millisecond)
}

func TestActiveSessionRouter_NilBus(t *testing.T) {
	var r *eventbus.ActiveSessionRouter
	assert.NotPanics(t, r.Register)
}
