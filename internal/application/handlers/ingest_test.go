package handlers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `{"item_id":"chicken_breast","restaurant_id":1,"stockout_probability":0.82,"days_until_event":2}
{"item_id":"salmon","restaurant_id":1,"stockout_probability":0.91,"days_until_event":1}
not json
`

func TestIngestHandler_Handle(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "predictions.jsonl")
	require.NoError(t, os.WriteFile(testFile, []byte(feed), 0644))

	app := newTestApp(t)
	handler := NewIngestHandler(app.pipeline)

	result, err := handler.Handle(t.Context(), testFile, "")

	require.NoError(t, err)
	assert.Equal(t, testFile, result.FilePath)
	assert.Equal(t, 3, result.Summary.Loaded)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.Equal(t, 2, result.Summary.Admitted)
	assert.Equal(t, 4, result.Summary.ActionsProposed, "one PO for high, three actions for critical")
}

func TestIngestHandler_HandleReader(t *testing.T) {
	app := newTestApp(t)
	handler := NewIngestHandler(app.pipeline)

	csv := "item_id,restaurant_id,surplus_probability,expected_units\nbasil,1,0.8,3\n"
	summary, err := handler.HandleReader(t.Context(), strings.NewReader(csv), "csv")

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Admitted)

	_, err = handler.HandleReader(t.Context(), strings.NewReader(csv), "xml")
	assert.ErrorContains(t, err, "unsupported feed format")
}

func TestIngestHandler_Handle_FileNotFound(t *testing.T) {
	handler := NewIngestHandler(newTestApp(t).pipeline)

	_, err := handler.Handle(t.Context(), "/nonexistent/file.jsonl", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accessing file")
}

func TestIngestHandler_Handle_Directory(t *testing.T) {
	handler := NewIngestHandler(newTestApp(t).pipeline)

	_, err := handler.Handle(t.Context(), t.TempDir(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestIngestHandler_HandleDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.jsonl"), []byte(feed), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "b.jsonl"), []byte(feed), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.md"), []byte("# notes"), 0644))

	handler := NewIngestHandler(newTestApp(t).pipeline)
	var seen []string

	result, err := handler.HandleDirectory(t.Context(), tmpDir, "*.jsonl", false, func(f string) { seen = append(seen, f) })

	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalFiles)
	assert.Len(t, seen, 2)
	assert.Equal(t, 2, result.TotalAlerts, "the second feed is fully deduplicated")
	assert.Equal(t, 0, result.FileResults[1].Summary.Admitted)
	assert.Equal(t, 2, result.FileResults[1].Summary.Suppressed)
}

func TestIsGlobPattern(t *testing.T) {
	assert.True(t, IsGlobPattern("feeds/*.jsonl"))
	assert.False(t, IsGlobPattern("feeds/today.jsonl"))
}
