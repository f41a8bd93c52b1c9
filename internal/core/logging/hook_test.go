package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		setupCtx  func() context.Context
		wantKeys  []string
		wantEmpty []string
	}{
		{
			name: "all identifiers",
			setupCtx: func() context.Context {
				ctx := WithClassSessionID(context.Background(), "class-1")
				ctx = WithTeacherID(ctx, "teacher-1")
				return WithEntryID(ctx, "entry-1")
			},
			wantKeys: []string{"class_session_id", "teacher_id", "entry_id"},
		},
		{
			name: "only entry",
			setupCtx: func() context.Context {
				return WithEntryID(context.Background(), "entry-1")
			},
			wantKeys:  []string{"entry_id"},
			wantEmpty: []string{"class_session_id", "teacher_id"},
		},
		{
			name:      "no context values",
			setupCtx:  context.Background,
			wantEmpty: []string{"class_session_id", "teacher_id", "entry_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(ContextHook{})
			logger.Info().Ctx(tt.setupCtx()).Msg("test")

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			for _, key := range tt.wantKeys {
				assert.Contains(t, entry, key)
			}
			for _, key := range tt.wantEmpty {
				assert.NotContains(t, entry, key)
			}
		})
	}
}
