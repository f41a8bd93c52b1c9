package lenz

import (
	"slices"
	"sync"

	"github.com/colonyops/linglenz/internal/core/mistake"
)

// Ledger is the visible record of one class session's entries, most recent
// first. Position is fixed by when an entry was first inserted, not by when
// its analysis completed.
type Ledger struct {
	sessionID string

	mu      sync.RWMutex
	order   []string // oldest first
	entries map[string]mistake.Entry
}

// NewLedger creates an empty ledger for a session.
func NewLedger(sessionID string) *Ledger {
	return &Ledger{
		sessionID: sessionID,
		entries:   make(map[string]mistake.Entry),
	}
}

// SessionID returns the owning session.
func (l *Ledger) SessionID() string {
	return l.sessionID
}

// Upsert is the single mutation path for entries. When prevID names an entry
// already in the ledger, that entry is replaced in place, which also swaps a
// temporary id for a durable one. Otherwise e is inserted as the newest entry.
func (l *Ledger) Upsert(prevID string, e mistake.Entry) {
	e = e.Clone()

	l.mu.Lock()
	defer l.mu.Unlock()

	if prevID == "" {
		prevID = e.ID
	}

	if _, ok := l.entries[prevID]; ok {
		if prevID != e.ID {
			delete(l.entries, prevID)
			l.order[slices.Index(l.order, prevID)] = e.ID
		}
		l.entries[e.ID] = e
		return
	}

	l.order = append(l.order, e.ID)
	l.entries[e.ID] = e
}

// Load adds persisted records behind anything already present. Records are
// expected newest first; ids already in the ledger are skipped.
func (l *Ledger) Load(records []mistake.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	older := make([]string, 0, len(records))
	for _, rec := range slices.Backward(records) {
		if _, ok := l.entries[rec.ID]; ok {
			continue
		}
		l.entries[rec.ID] = rec.ToEntry()
		older = append(older, rec.ID)
	}
	l.order = append(older, l.order...)
}

// Remove deletes an entry. It reports whether the entry was present.
func (l *Ledger) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; !ok {
		return false
	}
	delete(l.entries, id)
	l.order = slices.DeleteFunc(l.order, func(s string) bool { return s == id })
	return true
}

// Get returns a copy of an entry.
func (l *Ledger) Get(id string) (mistake.Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[id]
	if !ok {
		return mistake.Entry{}, false
	}
	return e.Clone(), true
}

// Entries returns a snapshot, most recent first.
func (l *Ledger) Entries() []mistake.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]mistake.Entry, 0, len(l.order))
	for _, id := range slices.Backward(l.order) {
		out = append(out, l.entries[id].Clone())
	}
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}
