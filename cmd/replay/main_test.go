package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	content := `{"vehicle_id":"car-1","lat":51.0001,"lng":-0.0995}

not json
{"vehicle_id":"car-1","lat":51.0002,"lng":-0.0994,"speed_mps":31.2}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	frames, err := loadCapture(path)
	require.NoError(t, err)
	// the blank line and invalid line are skipped
	require.Len(t, frames, 2)
	assert.Contains(t, string(frames[0]), "car-1")
	assert.Contains(t, string(frames[1]), "speed_mps")
}

func TestLoadCaptureMissingFile(t *testing.T) {
	_, err := loadCapture(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}
