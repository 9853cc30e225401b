// Package obslog provides the flow engine's own process logger: JSON lines
// under Kubernetes, human-readable text for local development. Grounded on
// itsneelabh/gomind's telemetry.TelemetryLogger, trimmed to a single
// per-call-site instance (no package-level singleton — a scheduler run
// already owns a *Logger the way it owns a *SpanStack) and stdlib-only,
// since nothing in the example pack wires a third-party structured-logging
// library for this concern; gomind's own logger reaches for the same
// encoding/json + fmt + os combination.
package obslog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

var levels = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// Logger is a leveled, format-switching process logger.
type Logger struct {
	mu          sync.RWMutex
	level       string
	format      string // "text" or "json"
	serviceName string
	output      io.Writer
}

// New builds a Logger for serviceName. Level and format default from
// NODEFLOW_LOG_LEVEL / NODEFLOW_LOG_FORMAT, falling back to INFO/text, with
// JSON auto-selected under Kubernetes the way the teacher's logger does.
func New(serviceName string) *Logger {
	level := strings.ToUpper(os.Getenv("NODEFLOW_LOG_LEVEL"))
	if level == "" {
		level = "INFO"
	}

	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if envFormat := os.Getenv("NODEFLOW_LOG_FORMAT"); envFormat != "" {
		format = envFormat
	}

	return &Logger{
		level:       level,
		format:      format,
		serviceName: serviceName,
		output:      os.Stdout,
	}
}

func (l *Logger) Info(msg string, fields map[string]any)  { l.log("INFO", msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log("WARN", msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log("ERROR", msg, fields) }
func (l *Logger) Debug(msg string, fields map[string]any) { l.log("DEBUG", msg, fields) }

// SetOutput redirects the destination writer (tests use this to capture
// output instead of writing to stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *Logger) log(level, msg string, fields map[string]any) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.shouldLog(level) {
		return
	}

	timestamp := time.Now().Format(time.RFC3339)
	if l.format == "json" {
		l.logJSON(timestamp, level, msg, fields)
	} else {
		l.logText(timestamp, level, msg, fields)
	}
}

func (l *Logger) logJSON(timestamp, level, msg string, fields map[string]any) {
	entry := map[string]any{
		"timestamp": timestamp,
		"level":     level,
		"service":   l.serviceName,
		"message":   msg,
	}
	for k, v := range fields {
		if k == "timestamp" || k == "level" || k == "service" || k == "message" {
			continue
		}
		entry[k] = v
	}
	if data, err := json.Marshal(entry); err == nil {
		fmt.Fprintln(l.output, string(data))
	}
}

func (l *Logger) logText(timestamp, level, msg string, fields map[string]any) {
	var b strings.Builder
	if len(fields) > 0 {
		b.WriteString(" ")
		if nodeID, ok := fields["node_id"]; ok {
			fmt.Fprintf(&b, "node_id=%v ", nodeID)
		}
		if traceID, ok := fields["trace_id"]; ok {
			fmt.Fprintf(&b, "trace_id=%v ", traceID)
		}
		if errv, ok := fields["error"]; ok {
			fmt.Fprintf(&b, "error=%q ", fmt.Sprint(errv))
		}
		for k, v := range fields {
			if k == "node_id" || k == "trace_id" || k == "error" {
				continue
			}
			fmt.Fprintf(&b, "%s=%v ", k, v)
		}
	}
	fmt.Fprintf(l.output, "%s [%s] [%s] %s%s\n", timestamp, level, l.serviceName, msg, b.String())
}

func (l *Logger) shouldLog(level string) bool {
	cur, ok1 := levels[l.level]
	msgLevel, ok2 := levels[level]
	if !ok1 || !ok2 {
		return true
	}
	return msgLevel >= cur
}
