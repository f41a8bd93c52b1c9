// Package mistake defines the analyzed-utterance domain types.
package mistake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("mistake entry not found")

	// ErrInvalidTransition is returned for status changes outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid mistake entry transition")
)

// TempIDPrefix marks identifiers assigned locally before persistence.
const TempIDPrefix = "tmp-"

// Status is the processing status of an entry.
// ENUM(thinking, done, error).
type Status string

const (
	StatusThinking Status = "thinking"
	StatusDone     Status = "done"
	StatusError    Status = "error"
)

// Source records how an utterance entered the pipeline.
// ENUM(audio, manual, retry).
type Source string

const (
	SourceAudio  Source = "audio"
	SourceManual Source = "manual"
	SourceRetry  Source = "retry"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceAudio, SourceManual, SourceRetry:
		return true
	}
	return false
}

// transitions lists every allowed status change. StatusDone has no outgoing edge.
var transitions = map[Status][]Status{
	StatusThinking: {StatusDone, StatusError},
	StatusError:    {StatusThinking},
}

// CanTransition reports whether an entry may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Entry is one analyzed utterance in a class session.
type Entry struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	OwnerID       string    `json:"owner_id"`
	Original      string    `json:"original"`
	Corrected     *string   `json:"corrected,omitempty"`
	Explanation   *string   `json:"explanation,omitempty"`
	Categories    []string  `json:"categories"`
	IsCorrect     bool      `json:"is_correct"`
	Source        Source    `json:"source"`
	Status        Status    `json:"status"`
	AutoRetries   int       `json:"auto_retries"`
	ManualRetries int       `json:"manual_retries"`
	LastError     string    `json:"last_error,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Temporary reports whether the entry still carries a client-assigned id.
func (e *Entry) Temporary() bool {
	return strings.HasPrefix(e.ID, TempIDPrefix)
}

// Transition moves the entry to a new status.
func (e *Entry) Transition(to Status) error {
	if !CanTransition(e.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, to)
	}
	e.Status = to
	return nil
}

// PersistedSource is the source tag written to storage. Entries that needed a
// manual retry are recorded as SourceRetry; the in-memory Source never changes.
func (e *Entry) PersistedSource() Source {
	if e.ManualRetries > 0 {
		return SourceRetry
	}
	return e.Source
}

// Clone returns a deep copy safe to hand to other goroutines.
func (e Entry) Clone() Entry {
	out := e
	if e.Categories != nil {
		out.Categories = append([]string(nil), e.Categories...)
	}
	if e.Corrected != nil {
		v := *e.Corrected
		out.Corrected = &v
	}
	if e.Explanation != nil {
		v := *e.Explanation
		out.Explanation = &v
	}
	return out
}

// Record is the persisted form of a resolved entry.
type Record struct {
	ID          string
	SessionID   string
	OwnerID     string
	Original    string
	Corrected   string
	Explanation string
	Categories  []string
	IsCorrect   bool
	Source      Source
	CreatedAt   time.Time
}

// ToEntry converts a persisted record back to a done entry.
func (r Record) ToEntry() Entry {
	corrected, explanation := r.Corrected, r.Explanation
	return Entry{
		ID:          r.ID,
		SessionID:   r.SessionID,
		OwnerID:     r.OwnerID,
		Original:    r.Original,
		Corrected:   &corrected,
		Explanation: &explanation,
		Categories:  append([]string(nil), r.Categories...),
		IsCorrect:   r.IsCorrect,
		Source:      r.Source,
		Status:      StatusDone,
		CreatedAt:   r.CreatedAt,
	}
}

// Store persists resolved entries.
type Store interface {
	// Insert persists a record and returns it with its durable id assigned.
	Insert(ctx context.Context, rec Record) (Record, error)
	// Delete removes a record. Returns ErrNotFound if not found.
	Delete(ctx context.Context, id string) error
	// ListBySession returns a session's records, newest first.
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
}
