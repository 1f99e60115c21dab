package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogMessage is a single record captured by TestLogger
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// recorder holds the messages shared by a TestLogger and every logger derived from it
type recorder struct {
	mu       sync.Mutex
	messages []LogMessage
}

// TestLogger captures log output in memory so tests can assert on it
type TestLogger struct {
	rec    *recorder
	fields map[string]interface{}
	err    error
}

// NewTestLogger creates an empty TestLogger
func NewTestLogger() *TestLogger {
	return &TestLogger{rec: &recorder{}}
}

func (l *TestLogger) Debug(msg string) { l.log("debug", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("info", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("warn", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("error", msg, nil) }

// Fatal records the message without exiting
func (l *TestLogger) Fatal(msg string) { l.log("fatal", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("debug", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("info", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("warn", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("error", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.log("fatal", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return &TestLogger{rec: l.rec, fields: merge(l.fields, fields), err: l.err}
}

func (l *TestLogger) WithError(err error) Logger {
	return &TestLogger{rec: l.rec, fields: l.fields, err: err}
}

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l
}

// GetZerolog returns nil; TestLogger has no zerolog backing
func (l *TestLogger) GetZerolog() *zerolog.Logger {
	return nil
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.messages = append(l.rec.messages, LogMessage{
		Level:   level,
		Message: msg,
		Fields:  merge(l.fields, fields),
		Error:   l.err,
	})
}

// GetMessages returns a copy of everything logged so far
func (l *TestLogger) GetMessages() []LogMessage {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	out := make([]LogMessage, len(l.rec.messages))
	copy(out, l.rec.messages)
	return out
}

// GetMessagesByLevel returns the messages logged at level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports whether any message contains text
func (l *TestLogger) HasMessage(text string) bool {
	for _, m := range l.GetMessages() {
		if strings.Contains(m.Message, text) {
			return true
		}
	}
	return false
}

// HasError reports whether anything was logged at error level or above
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("error")) > 0 || len(l.GetMessagesByLevel("fatal")) > 0
}

// Clear drops all captured messages
func (l *TestLogger) Clear() {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.messages = nil
}

func (l *TestLogger) String() string {
	var b strings.Builder
	for _, m := range l.GetMessages() {
		fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(m.Level), m.Message)
		if len(m.Fields) > 0 {
			fmt.Fprintf(&b, " %v", m.Fields)
		}
		if m.Error != nil {
			fmt.Fprintf(&b, " error=%v", m.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func merge(base, extra map[string]interface{}) map[string]interface{} {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
