package server

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warn", "error"
}

// consoleCore is a zapcore.Core that forwards entries to a browser console
// channel. Sends never block; entries are dropped when the channel is full.
type consoleCore struct {
	zapcore.LevelEnabler
	fields      []zapcore.Field
	consoleChan chan<- ConsoleMessage
}

// newConsoleCore creates a core writing entries at or above level to consoleChan
func newConsoleCore(level zapcore.LevelEnabler, consoleChan chan<- ConsoleMessage) zapcore.Core {
	return &consoleCore{LevelEnabler: level, consoleChan: consoleChan}
}

// NewConsoleLogger returns a logger that writes to base and also streams
// to consoleChan
func NewConsoleLogger(base *zap.Logger, consoleChan chan<- ConsoleMessage) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, newConsoleCore(zapcore.InfoLevel, consoleChan))
	}))
}

func (c *consoleCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *consoleCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *consoleCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if c.consoleChan == nil {
		return nil
	}

	select {
	case c.consoleChan <- ConsoleMessage{
		Message:   formatConsoleLine(entry.Message, append(append([]zapcore.Field(nil), c.fields...), fields...)),
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
	}:
	default:
	}
	return nil
}

func (c *consoleCore) Sync() error {
	return nil
}

// formatConsoleLine renders "msg key=value ..." with keys in sorted order
func formatConsoleLine(msg string, fields []zapcore.Field) string {
	if len(fields) == 0 {
		return msg
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
