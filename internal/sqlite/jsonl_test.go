package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	records := []json.RawMessage{
		json.RawMessage(`{"id":"1"}`),
		json.RawMessage(`{"id":"2"}`),
	}
	require.NoError(t, writeJSONL(path, records))

	got, skipped, err := readJSONL(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, records, got)

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJSONL_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"1\"}\n\n{broken\n{\"id\":\"2\"}\n"), 0o644))

	got, skipped, err := readJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, got, 2)
}

func TestReadJSONL_MissingFile(t *testing.T) {
	_, _, err := readJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
