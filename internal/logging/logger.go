package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

const DefaultBufferSize = 1000

type Logger struct {
	buffer      *LogBuffer
	handler     slog.Handler
	minLevel    Level
	baseContext map[string]string
}

// Options controls how entries are rendered.
type Options struct {
	NoColor    bool
	TimeFormat string
}

func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	return NewLoggerWithOptions(buffer, minLevel, output, Options{NoColor: output != os.Stderr})
}

func NewLoggerWithOptions(buffer *LogBuffer, minLevel Level, output io.Writer, options Options) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	if output == nil {
		output = io.Discard
	}
	timeFormat := options.TimeFormat
	if timeFormat == "" {
		timeFormat = time.TimeOnly
	}
	minLevel = normalizeLevel(minLevel)
	return &Logger{
		buffer: buffer,
		handler: tint.NewHandler(output, &tint.Options{
			Level:      minLevel.slogLevel(),
			TimeFormat: timeFormat,
			NoColor:    options.NoColor,
		}),
		minLevel: minLevel,
	}
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil {
		return nil
	}
	return l.buffer
}

func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return l
	}
	return &Logger{
		buffer:      l.buffer,
		handler:     l.handler,
		minLevel:    l.minLevel,
		baseContext: cloneFields(l.baseContext, fields),
	}
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.log(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.log(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.log(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.log(LevelError, message, fields)
}

func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return levelRank(level) >= levelRank(l.minLevel)
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	if l == nil || !l.Enabled(level) {
		return
	}

	context := cloneFields(l.baseContext, fields)
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   context,
	}
	if len(entry.Context) == 0 {
		entry.Context = nil
	}
	if l.buffer != nil {
		l.buffer.Add(entry)
	}
	if l.handler != nil {
		l.emit(entry)
	}
}

func (l *Logger) emit(entry LogEntry) {
	ctx := context.Background()
	slogLevel := entry.Level.slogLevel()
	if !l.handler.Enabled(ctx, slogLevel) {
		return
	}
	record := slog.NewRecord(entry.Timestamp, slogLevel, entry.Message, 0)
	keys := make([]string, 0, len(entry.Context))
	for key := range entry.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key == "error" {
			record.AddAttrs(tint.Err(errorText(entry.Context[key])))
			continue
		}
		record.AddAttrs(slog.String(key, entry.Context[key]))
	}
	_ = l.handler.Handle(ctx, record)
}

type errorText string

func (e errorText) Error() string {
	return string(e)
}

func normalizeLevel(level Level) Level {
	switch level {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return level
	default:
		return LevelInfo
	}
}

func levelRank(level Level) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

func ParseLevel(value string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warning", "warn":
		return LevelWarning, true
	case "error":
		return LevelError, true
	default:
		return "", false
	}
}

func cloneFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	combined := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		combined[key] = value
	}
	for key, value := range extra {
		combined[key] = value
	}
	return combined
}
