package app

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Logger writes JSON lines tagged with the subsystem that emitted them, so
// one log file serves the whole client.
type Logger struct {
	out       io.Writer
	component string
}

type LogEvent struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func NewLogger(out io.Writer) *Logger {
	return &Logger{out: out}
}

// NewFileLogger logs to <root>/earthworm.log so log lines never bleed into
// the terminal UI. Falls back to a discard logger if the file is unusable.
func NewFileLogger(root string) *Logger {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return &Logger{out: io.Discard}
	}
	f, err := os.OpenFile(filepath.Join(root, "earthworm.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return &Logger{out: io.Discard}
	}
	return &Logger{out: f}
}

// WithComponent returns a logger that stamps every event with the given
// subsystem name. The underlying writer is shared.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{out: l.out, component: name}
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.write("info", message, fields)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.write("error", message, fields)
}

func (l *Logger) write(level, message string, fields map[string]interface{}) {
	evt := LogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Component: l.component,
		Message:   message,
		Fields:    fields,
	}
	payload, _ := json.Marshal(evt)
	payload = append(payload, '\n')
	_, _ = l.out.Write(payload)
}
