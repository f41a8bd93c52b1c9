package commands

import (
	"context"

	"github.com/colonyops/linglenz/internal/core/eventbus"
	"github.com/colonyops/linglenz/internal/core/mistake"
)

// entryTracker follows entries of one class across their id swap and reports
// when they settle in done or error.
type entryTracker struct {
	updates chan eventbus.EntryUpdatedPayload
	aliases map[string]string
}

// trackEntries subscribes to entry updates of sessionID. It must be created
// before entries are submitted so no update is missed.
func trackEntries(ctx context.Context, bus *eventbus.EventBus, sessionID string) *entryTracker {
	t := &entryTracker{
		updates: make(chan eventbus.EntryUpdatedPayload, 64),
		aliases: make(map[string]string),
	}
	bus.SubscribeEntryUpdated(func(p eventbus.EntryUpdatedPayload) {
		if p.Entry.SessionID != sessionID {
			return
		}
		select {
		case t.updates <- p:
		case <-ctx.Done():
		}
	})
	return t
}

// Updates exposes the raw update stream.
func (t *entryTracker) Updates() <-chan eventbus.EntryUpdatedPayload {
	return t.updates
}

// Await blocks until the entry first known as id reaches done or error.
func (t *entryTracker) Await(ctx context.Context, id string) (mistake.Entry, error) {
	current := t.resolve(id)
	for {
		select {
		case <-ctx.Done():
			return mistake.Entry{}, ctx.Err()
		case p := <-t.updates:
			if p.PreviousID != "" {
				t.aliases[p.PreviousID] = p.Entry.ID
				if p.PreviousID == current {
					current = p.Entry.ID
				}
			}
			if p.Entry.ID != current {
				continue
			}
			if p.Entry.Status == mistake.StatusDone || p.Entry.Status == mistake.StatusError {
				return p.Entry, nil
			}
		}
	}
}

func (t *entryTracker) resolve(id string) string {
	for {
		next, ok := t.aliases[id]
		if !ok {
			return id
		}
		id = next
	}
}
