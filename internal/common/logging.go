// Package common provides logging shared by every layer of the proxy.
package common

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// Defaults for the "file" output.
const (
	defaultLogFile    = "logs/th-proxy.log"
	defaultMaxSize    = 500 * 1024
	defaultMaxBackups = 20
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// Logger wraps arbor.ILogger. Every Logger carries its own writer list,
// so building one never changes where another one writes.
type Logger struct {
	arbor.ILogger
}

// NewLogger creates a stderr logger at the given level.
func NewLogger(level string) *Logger {
	return NewLoggerFromConfig(LoggingConfig{Level: level})
}

// NewLoggerFromConfig creates a logger for the configured outputs
// ("console", "file"). Console output goes to stderr: stdout is the
// JSON-RPC channel.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"console"}
	}

	var ws []writers.IWriter
	for _, out := range outputs {
		switch out {
		case "console":
			// arbor's console writer always targets stderr.
			ws = append(ws, writers.ConsoleWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeConsole,
				TimeFormat: timeFormat,
			}))
		case "file":
			ws = append(ws, writers.FileWriter(fileWriterConfig(cfg)))
		}
	}
	return newLogger(cfg.Level, ws...)
}

func fileWriterConfig(cfg LoggingConfig) models.WriterConfiguration {
	wc := models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   cfg.FilePath,
		MaxSize:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		MaxBackups: cfg.MaxBackups,
		TimeFormat: timeFormat,
	}
	if wc.FileName == "" {
		wc.FileName = defaultLogFile
	}
	if wc.MaxSize <= 0 {
		wc.MaxSize = defaultMaxSize
	}
	if wc.MaxBackups <= 0 {
		wc.MaxBackups = defaultMaxBackups
	}
	return wc
}

// NewLoggerWithOutput creates a logger writing one text line per event to w.
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	return newLogger(level, &lineWriter{out: w})
}

// NewSilentLogger creates a logger that discards all output.
func NewSilentLogger() *Logger {
	return newLogger("error", &lineWriter{out: io.Discard})
}

func newLogger(level string, ws ...writers.IWriter) *Logger {
	if level == "" {
		level = "info"
	}
	// An empty list would fall back to arbor's global writer registry.
	if len(ws) == 0 {
		ws = []writers.IWriter{&lineWriter{out: io.Discard}}
	}
	l := arbor.NewLogger().WithWriters(ws).WithLevelFromString(level)
	return &Logger{ILogger: l}
}

// WithCorrelationId returns a new Logger tagged with id.
// The router tags every tool call so its upstream request and response lines group together.
func (l *Logger) WithCorrelationId(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}

// lineWriter renders arbor's JSON events as
// "LEVEL message [cid=...] key=value ..." with fields in key order.
type lineWriter struct {
	mu    sync.Mutex
	out   io.Writer
	level log.Level
}

func (w *lineWriter) Write(p []byte) (int, error) {
	var evt models.LogEvent
	if err := json.Unmarshal(p, &evt); err != nil {
		return len(p), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if evt.Level < w.level {
		return len(p), nil
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(evt.Level.String()))
	b.WriteByte(' ')
	b.WriteString(evt.Message)
	if evt.CorrelationID != "" {
		fmt.Fprintf(&b, " cid=%s", evt.CorrelationID)
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, evt.Fields[k])
	}
	if evt.Error != "" {
		fmt.Fprintf(&b, " error=%s", evt.Error)
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *lineWriter) WithLevel(level log.Level) writers.IWriter {
	w.mu.Lock()
	w.level = level
	w.mu.Unlock()
	return w
}

func (w *lineWriter) GetFilePath() string { return "" }
func (w *lineWriter) Close() error        { return nil }
