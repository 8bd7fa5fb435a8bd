package audit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoggerRecord_EmitsOneStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	NewLogger(logger).Record(Attempt{
		Tool:       "deploy.launch",
		Service:    "deploy",
		Method:     "POST",
		TargetURL:  "http://deploy.local/api/v2/rollouts/7/launch",
		UserAgent:  "agent/1.0",
		SessionID:  "sess-1",
		StatusCode: 201,
		Result:     "success",
		Elapsed:    250 * time.Millisecond,
	})

	lines := splitJSONLines(t, buf.String())
	require.Len(t, lines, 1)

	entry := lines[0]
	require.Equal(t, "toolgate.dispatch.completed", entry["event"])
	require.Equal(t, "deploy.launch", entry["tool"])
	require.Equal(t, "deploy", entry["service"])
	require.Equal(t, "POST", entry["method"])
	require.Equal(t, "http://deploy.local/api/v2/rollouts/7/launch", entry["target_url"])
	require.Equal(t, "agent/1.0", entry["user_agent"])
	require.Equal(t, "sess-1", entry["session_id"])
	require.Equal(t, "success", entry["result"])
	require.EqualValues(t, 201, entry["status_code"])
	require.EqualValues(t, 250, entry["duration_ms"])
}

func TestLoggerRecord_EmptyResultDefaultsToError(t *testing.T) {
	var buf bytes.Buffer

	NewLogger(zerolog.New(&buf)).Record(Attempt{Tool: "observe.listAlerts"})

	lines := splitJSONLines(t, buf.String())
	require.Len(t, lines, 1)
	require.Equal(t, "error", lines[0]["result"])
}

func TestLoggerRecord_RedactsErrorDetail(t *testing.T) {
	var buf bytes.Buffer

	NewLogger(zerolog.New(&buf)).Record(Attempt{
		Tool:        "registry.sync",
		Result:      "error",
		ErrorDetail: "backend rejected call: Authorization: Bearer abc.def.ghi token=xyz123",
	})

	lines := splitJSONLines(t, buf.String())
	require.Len(t, lines, 1)
	detail, _ := lines[0]["error_detail"].(string)
	require.NotContains(t, detail, "abc.def.ghi")
	require.NotContains(t, detail, "xyz123")
	require.Contains(t, detail, "[REDACTED]")
}

func TestRedactSensitiveText_RedactsTokenLikeSegments(t *testing.T) {
	raw := "request failed: Authorization: Bearer abc.def.ghi token=xyz123 password=hunter2"
	redacted := RedactSensitiveText(raw)

	require.NotContains(t, redacted, "abc.def.ghi")
	require.NotContains(t, redacted, "xyz123")
	require.NotContains(t, redacted, "hunter2")
	require.Contains(t, redacted, "Authorization: [REDACTED]")
	require.Contains(t, redacted, "token=[REDACTED]")
	require.Contains(t, redacted, "password=[REDACTED]")
}

func TestFanout_ForwardsToEverySink(t *testing.T) {
	var first, second bytes.Buffer
	fanout := Fanout{
		NewLogger(zerolog.New(&first)),
		nil, // nil sinks are skipped
		NewLogger(zerolog.New(&second)),
	}

	fanout.Record(Attempt{Tool: "inventory.listHosts", Result: "success"})

	require.Len(t, splitJSONLines(t, first.String()), 1)
	require.Len(t, splitJSONLines(t, second.String()), 1)
}

func splitJSONLines(t *testing.T, payload string) []map[string]any {
	t.Helper()

	rawLines := bytes.Split(bytes.TrimSpace([]byte(payload)), []byte("\n"))
	lines := make([]map[string]any, 0, len(rawLines))
	for _, raw := range rawLines {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var item map[string]any
		require.NoError(t, json.Unmarshal(raw, &item))
		lines = append(lines, item)
	}
	return lines
}
