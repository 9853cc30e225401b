package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTextLogger(buf *bytes.Buffer) *Logger {
	l := &Logger{level: "INFO", format: "text", serviceName: "svc", output: buf}
	return l
}

func newJSONLogger(buf *bytes.Buffer) *Logger {
	l := &Logger{level: "INFO", format: "json", serviceName: "svc", output: buf}
	return l
}

func TestLogger_New_DefaultsToInfoTextFromEnv(t *testing.T) {
	os.Unsetenv("NODEFLOW_LOG_LEVEL")
	os.Unsetenv("NODEFLOW_LOG_FORMAT")
	os.Unsetenv("KUBERNETES_SERVICE_HOST")
	l := New("svc")
	require.Equal(t, "INFO", l.level)
	require.Equal(t, "text", l.format)
}

func TestLogger_New_AutoJSONUnderKubernetes(t *testing.T) {
	os.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")
	defer os.Unsetenv("KUBERNETES_SERVICE_HOST")
	l := New("svc")
	require.Equal(t, "json", l.format)
}

func TestLogger_New_EnvFormatOverridesKubernetesDefault(t *testing.T) {
	os.Setenv("KUBERNETES_SERVICE_HOST", "10.0.0.1")
	os.Setenv("NODEFLOW_LOG_FORMAT", "text")
	defer os.Unsetenv("KUBERNETES_SERVICE_HOST")
	defer os.Unsetenv("NODEFLOW_LOG_FORMAT")
	l := New("svc")
	require.Equal(t, "text", l.format)
}

func TestLogger_TextFormat_IncludesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newTextLogger(&buf)
	l.Info("flow starting", map[string]any{"entry": "a", "node_id": "n1"})

	out := buf.String()
	require.Contains(t, out, "[INFO]")
	require.Contains(t, out, "flow starting")
	require.Contains(t, out, "node_id=n1")
}

func TestLogger_JSONFormat_EmitsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf)
	l.Error("node failed", map[string]any{"node_id": "n1", "error": "boom"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "ERROR", entry["level"])
	require.Equal(t, "node failed", entry["message"])
	require.Equal(t, "n1", entry["node_id"])
}

func TestLogger_ShouldLog_FiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: "WARN", format: "text", serviceName: "svc", output: &buf}

	l.Debug("too quiet", nil)
	l.Info("still too quiet", nil)
	require.Empty(t, buf.String())

	l.Warn("loud enough", nil)
	require.Contains(t, buf.String(), "loud enough")
}

func TestLogger_SetOutput_RedirectsDestination(t *testing.T) {
	var buf bytes.Buffer
	l := New("svc")
	l.SetOutput(&buf)
	l.Info("hello", nil)
	require.True(t, strings.Contains(buf.String(), "hello"))
}

func TestLogger_UnknownLevelLogsAnyway(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: "WEIRD", format: "text", serviceName: "svc", output: &buf}
	l.Info("message", nil)
	require.Contains(t, buf.String(), "message")
}
