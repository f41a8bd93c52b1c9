package eventbus

import (
	"context"
	"sync"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches published events to subscribers on a single goroutine.
// Publishing never blocks; events are dropped when the buffer is full.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates an event bus with the given buffer size. Start must be called
// to begin dispatching.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

func subscribeTyped[T any](bus *EventBus, event Event, fn func(T)) {
	bus.subscribe(event, func(payload any) {
		if p, ok := payload.(T); ok {
			fn(p)
		}
	})
}

func (bus *EventBus) PublishSessionStarted(p SessionStartedPayload) {
	bus.send(EventSessionStarted, p)
}

func (bus *EventBus) SubscribeSessionStarted(fn func(SessionStartedPayload)) {
	subscribeTyped(bus, EventSessionStarted, fn)
}

func (bus *EventBus) PublishSessionResumed(p SessionResumedPayload) {
	bus.send(EventSessionResumed, p)
}

func (bus *EventBus) SubscribeSessionResumed(fn func(SessionResumedPayload)) {
	subscribeTyped(bus, EventSessionResumed, fn)
}

func (bus *EventBus) PublishSessionEnded(p SessionEndedPayload) {
	bus.send(EventSessionEnded, p)
}

func (bus *EventBus) SubscribeSessionEnded(fn func(SessionEndedPayload)) {
	subscribeTyped(bus, EventSessionEnded, fn)
}

func (bus *EventBus) PublishSessionAbandoned(p SessionAbandonedPayload) {
	bus.send(EventSessionAbandoned, p)
}

func (bus *EventBus) SubscribeSessionAbandoned(fn func(SessionAbandonedPayload)) {
	subscribeTyped(bus, EventSessionAbandoned, fn)
}

func (bus *EventBus) PublishSessionCompleted(p SessionCompletedPayload) {
	bus.send(EventSessionCompleted, p)
}

func (bus *EventBus) SubscribeSessionCompleted(fn func(SessionCompletedPayload)) {
	subscribeTyped(bus, EventSessionCompleted, fn)
}

func (bus *EventBus) PublishSessionActiveChanged(p SessionActiveChangedPayload) {
	bus.send(EventSessionActiveChanged, p)
}

func (bus *EventBus) SubscribeSessionActiveChanged(fn func(SessionActiveChangedPayload)) {
	subscribeTyped(bus, EventSessionActiveChanged, fn)
}

func (bus *EventBus) PublishEntryUpdated(p EntryUpdatedPayload) {
	bus.send(EventEntryUpdated, p)
}

func (bus *EventBus) SubscribeEntryUpdated(fn func(EntryUpdatedPayload)) {
	subscribeTyped(bus, EventEntryUpdated, fn)
}

func (bus *EventBus) PublishEntryDeleted(p EntryDeletedPayload) {
	bus.send(EventEntryDeleted, p)
}

func (bus *EventBus) SubscribeEntryDeleted(fn func(EntryDeletedPayload)) {
	subscribeTyped(bus, EventEntryDeleted, fn)
}

func (bus *EventBus) PublishCaptureFailed(p CaptureFailedPayload) {
	bus.send(EventCaptureFailed, p)
}

func (bus *EventBus) SubscribeCaptureFailed(fn func(CaptureFailedPayload)) {
	subscribeTyped(bus, EventCaptureFailed, fn)
}
