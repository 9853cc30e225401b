package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/nodeflow/nodeflow"
)

var colors = map[string]string{
	nodeflow.SpanKindFlow: "\033[95m",
	nodeflow.SpanKindNode: "\033[94m",
	"event":                "\033[90m",
	"error":                "\033[91m",
}

const colorReset = "\033[0m"

// Console is a nodeflow.Tracer that streams depth-indented span/event lines
// to a writer, color-coding by kind when the writer is a terminal. Grounded
// on the original's ConsoleTracer.
type Console struct {
	mu         sync.Mutex
	w          io.Writer
	enableColor bool
	depths     map[string]int
}

// NewConsole builds a Console writing to w (os.Stdout if nil). enableColor
// mirrors the original's isatty auto-detection when w is os.Stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	enableColor := false
	if f, ok := w.(*os.File); ok {
		info, err := f.Stat()
		enableColor = err == nil && (info.Mode()&os.ModeCharDevice) != 0
	}
	return &Console{w: w, enableColor: enableColor, depths: map[string]int{}}
}

func (c *Console) OnSpanStart(span nodeflow.Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	depth := c.depths[span.ParentSpanID] + 1
	if span.ParentSpanID == "" {
		depth = 0
	}
	c.depths[span.SpanID] = depth
	c.write(span.Kind, fmt.Sprintf("[%s] start name=%s", strings.ToUpper(span.Kind), span.Name), depth)
}

func (c *Console) OnSpanEnd(span nodeflow.Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	depth := c.depths[span.SpanID]
	delete(c.depths, span.SpanID)
	msg := fmt.Sprintf("[%s] end status=%s", strings.ToUpper(span.Kind), span.Status)
	if span.Error != "" {
		msg += " error=" + span.Error
	}
	c.write(span.Kind, msg, depth)
}

func (c *Console) OnEvent(event nodeflow.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	depth := c.depths[event.SpanID]
	msg := event.Message
	if len(event.Attributes) > 0 {
		var attrs []string
		for k, v := range event.Attributes {
			attrs = append(attrs, fmt.Sprintf("%s=%v", k, v))
		}
		attrText := strings.Join(attrs, " ")
		if msg != "" {
			msg = msg + " " + attrText
		} else {
			msg = attrText
		}
	}
	colorKey := "event"
	if strings.EqualFold(event.Level, nodeflow.LevelError) {
		colorKey = "error"
	}
	label := fmt.Sprintf("[%s]", event.EventType)
	if msg != "" {
		label += " " + msg
	}
	c.write(colorKey, label, depth)
}

func (c *Console) write(colorKey, message string, depth int) {
	indent := strings.Repeat("  ", max(depth, 0))
	payload := message
	if c.enableColor {
		if color, ok := colors[colorKey]; ok {
			payload = color + message + colorReset
		}
	}
	fmt.Fprintf(c.w, "%s%s\n", indent, payload)
}
