package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentKey names the subsystem that emitted an event.
const ComponentKey = "cmp"

// Component returns a child of the global logger tagged with a subsystem name.
// Children copy the global logger's writer when created, so build them after
// the logger is configured.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str(ComponentKey, name).Logger()
}

// Class returns a child of l carrying the identifiers of one class, for
// components that live exactly as long as the class room.
func Class(l zerolog.Logger, sessionID, teacherID string) zerolog.Logger {
	ctx := l.With().Str(string(classSessionIDKey), sessionID)
	if teacherID != "" {
		ctx = ctx.Str(string(teacherIDKey), teacherID)
	}
	return ctx.Logger()
}
