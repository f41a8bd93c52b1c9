package iojson

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Sentence string `json:"sentence"`
}

func TestFileReader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sentence":"I goed home"}`), 0o644))

	fr := &FileReader[sample]{path: path}
	assert.True(t, fr.Provided())

	got, err := fr.Read()
	require.NoError(t, err)
	assert.Equal(t, "I goed home", got.Sentence)
}

func TestFileReader_Stdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sentence":"hello"}`), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	fr := &FileReader[sample]{stdin: f}
	assert.False(t, fr.Provided())

	got, err := fr.Read()
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Sentence)
}

func TestFileReader_Errors(t *testing.T) {
	_, err := (&FileReader[sample]{path: filepath.Join(t.TempDir(), "missing.json")}).Read()
	assert.ErrorContains(t, err, "open file")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = (&FileReader[sample]{path: path}).Read()
	assert.ErrorContains(t, err, "decode JSON")
}
