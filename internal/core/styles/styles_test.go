package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThemeNames(t *testing.T) {
	assert.Equal(t, []string{"catppuccin", "gruvbox", "tokyo-night"}, ThemeNames())

	_, ok := GetPalette(DefaultTheme)
	assert.True(t, ok)

	_, ok = GetPalette("solarized")
	assert.False(t, ok)
}

func TestStatus_KeepsText(t *testing.T) {
	for _, s := range []string{"done", "thinking", "error", "in_progress", "unknown"} {
		assert.Contains(t, Status(s), s)
	}
}
