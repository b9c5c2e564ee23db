package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlog_JSONOutput(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlog(InfoLevel, WithOutput(&buf))

	l.Debug("hidden", "k", 1)
	l.Info("housekeeping sample", "measure", "pressure_1", "value", 1.5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "housekeeping sample", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "pressure_1", rec["measure"])
	assert.InDelta(t, 1.5, rec["value"], 1e-9)
	assert.Contains(t, rec, "ts")
	assert.NotContains(t, rec, "time")
}

func TestSlog_SetLevel(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlog(WarnLevel, WithOutput(&buf))
	assert.Equal(t, WarnLevel, l.Level())

	l.Info("dropped")
	assert.Empty(t, buf.String())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestSlog_WithSharesLevel(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	parent := NewSlog(InfoLevel, WithOutput(&buf))
	child := parent.With("device", "tpg366")

	child.Info("connected")
	assert.Contains(t, buf.String(), `"device":"tpg366"`)

	buf.Reset()
	parent.SetLevel(ErrorLevel)
	child.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		ok    bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"ERROR", ErrorLevel, true},
		{"", InfoLevel, false},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		level, ok := ParseLevel(tt.name)
		assert.Equal(t, tt.level, level, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
	}
}
