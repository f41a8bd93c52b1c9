package eventbus

import "github.com/colonyops/linglenz/internal/core/classroom"

// ActiveSessionRouter derives session.active-changed events from the session
// lifecycle events, so subscribers that only render the "class in progress"
// affordance need a single subscription.
type ActiveSessionRouter struct {
	bus *EventBus
}

// NewActiveSessionRouter constructs a router publishing on bus.
func NewActiveSessionRouter(bus *EventBus) *ActiveSessionRouter {
	return &ActiveSessionRouter{bus: bus}
}

// Register subscribes all supported event mappings.
func (r *ActiveSessionRouter) Register() {
	if r == nil || r.bus == nil {
		return
	}

	r.bus.SubscribeSessionStarted(func(p SessionStartedPayload) {
		r.active(p.Session.TeacherID, &p.Session)
	})

	r.bus.SubscribeSessionEnded(func(p SessionEndedPayload) {
		r.active(p.Session.TeacherID, nil)
	})

	r.bus.SubscribeSessionAbandoned(func(p SessionAbandonedPayload) {
		r.active(p.Session.TeacherID, nil)
	})
}

func (r *ActiveSessionRouter) active(teacherID string, sess *classroom.Session) {
	var active *classroom.Session
	if sess != nil {
		cp := *sess
		active = &cp
	}
	r.bus.PublishSessionActiveChanged(SessionActiveChangedPayload{
		TeacherID: teacherID,
		Active:    active,
	})
}
