package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/lenz"
	"github.com/colonyops/linglenz/internal/metrics"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	clientQueue = 64
)

// Message is one frame of the teacher event stream.
type Message struct {
	Type       eventbus.Event     `json:"type"`
	TeacherID  string             `json:"teacher_id"`
	SessionID  string             `json:"session_id,omitempty"`
	Session    *classroom.Session `json:"session,omitempty"`
	Entry      *mistake.Entry     `json:"entry,omitempty"`
	PreviousID string             `json:"previous_id,omitempty"`
	EntryID    string             `json:"entry_id,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type client struct {
	teacherID string
	send      chan Message
	done      chan struct{}
	once      sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans bus events out to websocket clients, grouped by teacher.
type Hub struct {
	guard   *lenz.Guard
	classes *lenz.ClassService
	metrics *metrics.Metrics
	log     zerolog.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates a hub with no clients.
func NewHub(guard *lenz.Guard, classes *lenz.ClassService, m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		guard:    guard,
		classes:  classes,
		metrics:  m,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[string]map[*client]struct{}),
	}
}

// Register subscribes the hub to every event a teacher's screens render.
func (h *Hub) Register(bus *eventbus.EventBus) {
	session := func(event eventbus.Event) func(classroom.Session) {
		return func(s classroom.Session) {
			h.broadcast(Message{Type: event, TeacherID: s.TeacherID, SessionID: s.ID, Session: &s})
		}
	}
	started := session(eventbus.EventSessionStarted)
	resumed := session(eventbus.EventSessionResumed)
	ended := session(eventbus.EventSessionEnded)
	abandoned := session(eventbus.EventSessionAbandoned)
	completed := session(eventbus.EventSessionCompleted)

	bus.SubscribeSessionStarted(func(p eventbus.SessionStartedPayload) { started(p.Session) })
	bus.SubscribeSessionResumed(func(p eventbus.SessionResumedPayload) { resumed(p.Session) })
	bus.SubscribeSessionEnded(func(p eventbus.SessionEndedPayload) { ended(p.Session) })
	bus.SubscribeSessionAbandoned(func(p eventbus.SessionAbandonedPayload) { abandoned(p.Session) })
	bus.SubscribeSessionCompleted(func(p eventbus.SessionCompletedPayload) { completed(p.Session) })

	bus.SubscribeSessionActiveChanged(func(p eventbus.SessionActiveChangedPayload) {
		msg := Message{Type: eventbus.EventSessionActiveChanged, TeacherID: p.TeacherID, Session: p.Active}
		if p.Active != nil {
			msg.SessionID = p.Active.ID
		}
		h.broadcast(msg)
	})

	bus.SubscribeEntryUpdated(func(p eventbus.EntryUpdatedPayload) {
		e := p.Entry
		h.broadcast(Message{
			Type:       eventbus.EventEntryUpdated,
			TeacherID:  e.OwnerID,
			SessionID:  e.SessionID,
			Entry:      &e,
			PreviousID: p.PreviousID,
		})
	})

	bus.SubscribeEntryDeleted(func(p eventbus.EntryDeletedPayload) {
		h.broadcast(Message{
			Type:      eventbus.EventEntryDeleted,
			TeacherID: h.teacherOf(p.SessionID),
			SessionID: p.SessionID,
			EntryID:   p.EntryID,
		})
	})

	bus.SubscribeCaptureFailed(func(p eventbus.CaptureFailedPayload) {
		msg := Message{Type: eventbus.EventCaptureFailed, TeacherID: h.teacherOf(p.SessionID), SessionID: p.SessionID}
		if p.Err != nil {
			msg.Error = p.Err.Error()
		}
		h.broadcast(msg)
	})
}

func (h *Hub) teacherOf(sessionID string) string {
	if room, ok := h.classes.Room(sessionID); ok {
		return room.Session.TeacherID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sess, err := h.guard.Get(ctx, sessionID)
	if err != nil {
		return ""
	}
	return sess.TeacherID
}

func (h *Hub) broadcast(msg Message) {
	if msg.TeacherID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[msg.TeacherID] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("teacher_id", c.teacherID).Str("event", string(msg.Type)).Msg("event stream client too slow; disconnecting")
			c.close()
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.teacherID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.teacherID] = set
	}
	set[c] = struct{}{}
	h.metrics.RecordStreamClients(1)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.teacherID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.teacherID)
	}
	h.metrics.RecordStreamClients(-1)
}

// Clients returns the number of connected clients for a teacher.
func (h *Hub) Clients(teacherID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[teacherID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			c.close()
		}
	}
}

// ServeTeacher upgrades to a websocket and streams the teacher's events. The
// first frame is a session.active-changed snapshot of the current state.
func (h *Hub) ServeTeacher(w http.ResponseWriter, r *http.Request) {
	teacherID := r.PathValue("teacher")

	active, err := h.guard.CheckActive(r.Context(), teacherID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	c := &client{
		teacherID: teacherID,
		send:      make(chan Message, clientQueue),
		done:      make(chan struct{}),
	}
	snapshot := Message{Type: eventbus.EventSessionActiveChanged, TeacherID: teacherID, Session: active}
	if active != nil {
		snapshot.SessionID = active.ID
	}
	c.send <- snapshot

	h.add(c)
	defer h.remove(c)

	go h.readLoop(conn, c)
	h.writeLoop(r.Context(), conn, c)
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(conn *websocket.Conn, c *client) {
	defer c.close()

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
