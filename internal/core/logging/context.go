package logging

import "context"

type contextKey string

const (
	classSessionIDKey contextKey = "class_session_id"
	teacherIDKey      contextKey = "teacher_id"
	entryIDKey        contextKey = "entry_id"
)

// WithClassSessionID adds a class session ID to the context.
func WithClassSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, classSessionIDKey, id)
}

// WithTeacherID adds a teacher ID to the context.
func WithTeacherID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, teacherIDKey, id)
}

// WithEntryID adds a mistake entry ID to the context.
func WithEntryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, entryIDKey, id)
}

// GetClassSessionID retrieves the class session ID from the context.
// Returns empty string if not present.
func GetClassSessionID(ctx context.Context) string {
	return value(ctx, classSessionIDKey)
}

// GetTeacherID retrieves the teacher ID from the context.
func GetTeacherID(ctx context.Context) string {
	return value(ctx, teacherIDKey)
}

// GetEntryID retrieves the entry ID from the context.
func GetEntryID(ctx context.Context) string {
	return value(ctx, entryIDKey)
}

func value(ctx context.Context, key contextKey) string {
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}
