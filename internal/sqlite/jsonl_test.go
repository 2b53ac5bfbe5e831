package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONL_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entity_types.jsonl")
	writeFile(t, path, "old content\n")

	records := []entityTypeJSON{
		{TypeID: "t1", Name: "Task", CreatedAt: "2025-01-15T10:30:00Z"},
		{TypeID: "t2", Name: "R&D <notes>", CreatedAt: "2025-01-15T10:31:00Z"},
	}
	require.NoError(t, writeJSONL(path, records))

	content := readFile(t, path)
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"name":"R&D <notes>"`, "HTML characters are not escaped")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestReadJSONL(t *testing.T) {
	dir := t.TempDir()

	records, skipped, err := readJSONL(filepath.Join(dir, "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, skipped)

	path := filepath.Join(dir, "mixed.jsonl")
	long := strings.Repeat("x", 200*1024)
	writeFile(t, path, `{"a":1}`+"\n\n"+`{"a":`+"\n"+`{"body":"`+long+`"}`+"\n")

	records, skipped, err = readJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, records, 2)

	var rec struct {
		Body string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(records[1], &rec))
	assert.Len(t, rec.Body, len(long), "lines longer than the scanner default are read")
}
