package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies class, teacher and entry identifiers from the event
// context into the log event.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil || ctx == context.Background() {
		return
	}

	if id := GetClassSessionID(ctx); id != "" {
		e.Str(string(classSessionIDKey), id)
	}
	if id := GetTeacherID(ctx); id != "" {
		e.Str(string(teacherIDKey), id)
	}
	if id := GetEntryID(ctx); id != "" {
		e.Str(string(entryIDKey), id)
	}
}
