package validate

import (
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentence(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain sentence", "He go to school", false},
		{"non latin", "Ich gehe zur Schule", false},
		{"cjk", "我去学校", false},
		{"empty string", "", true},
		{"only spaces", "   ", true},
		{"tabs and newlines", "\t\n", true},
		{"digits", "12345", false},
		{"invalid utf8", string([]byte{0xff, 0xfe}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Sentence(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "Sentence(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"uuid", "8d7f2f7e-5a3e-4c1b-9b43-2b8c2d6b3a10", false},
		{"temp id", "tmp-abc123", false},
		{"empty", "", true},
		{"with space", "abc 123", true},
		{"with newline", "abc\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ID(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "ID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		})
	}
}

func TestIDField(t *testing.T) {
	err := criterio.ValidateStruct(
		IDField("teacher_id", ""),
		SentenceField("sentence", "ok then"),
	)

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "teacher_id", fieldErrs[0].Field)
}
