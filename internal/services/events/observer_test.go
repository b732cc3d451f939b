package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogObserver_WritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(zerolog.New(&buf))

	obs.Log("Starting backup...")
	obs.Notify("Nexus Backup", "paused")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "backup", first["component"])
	assert.Equal(t, "Starting backup...", first["message"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "warn", second["level"])
	assert.Equal(t, "Nexus Backup", second["title"])
}

func TestFanout_DeliversToAll(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	f := Fanout{a, b}

	f.Log("hello")
	f.Status(true)
	f.Notify("t", "b")

	for _, r := range []*Recorder{a, b} {
		assert.Equal(t, []string{"hello"}, r.Logs())
		assert.Equal(t, []bool{true}, r.Statuses())
		assert.Equal(t, []Notification{{Title: "t", Body: "b"}}, r.Notifications())
	}
}

func TestRecorder_ReturnsCopies(t *testing.T) {
	r := NewRecorder()
	r.Log("one")

	logs := r.Logs()
	logs[0] = "changed"

	assert.Equal(t, []string{"one"}, r.Logs())
}
