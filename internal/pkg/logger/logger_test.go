package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, true)

	l.Debug("hidden")
	l.Info("batch done", "campaign_id", "c-1", "sent", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "batch done", entry["msg"])
	assert.Equal(t, "c-1", entry["campaign_id"])
	assert.Equal(t, "2", entry["sent"])
}

func TestLogger_RedactsEmails(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, true).With("org", "org-1")

	l.Warn("send failed", "recipient_email", "john.doe@example.com", "error", "rejected jane@corp.io")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "jo***@example.com", entry["recipient_email"])
	assert.Equal(t, "rejected ja***@corp.io", entry["error"])
	assert.Equal(t, "org-1", entry["org"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}
