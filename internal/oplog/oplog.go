// Package oplog implements the structured operational logger: a
// rotating, leveled NDJSON diagnostic log distinct from the deterministic
// in-memory execution log (execlog). It exists for operators tailing a
// log file, not for the pipeline's own determinism guarantees.
//
// An env-var-gated verbosity switch and a mutex-guarded append writer,
// generalized into leveled NDJSON lines over a rotating file.
package oplog

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the severity of one operational log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{LevelDebug: 0, LevelInfo: 1, LevelWarn: 2, LevelError: 3}

// Options configures the rotating log file and the minimum level recorded.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	MinLevel   Level
}

// DefaultOptions records info level and above, unless DDLTIGHTEN_LOG_LEVEL
// names another recognized level.
func DefaultOptions(path string) Options {
	minLevel := LevelInfo
	if lvl := Level(os.Getenv("DDLTIGHTEN_LOG_LEVEL")); lvl != "" {
		if _, ok := levelRank[lvl]; ok {
			minLevel = lvl
		}
	}
	return Options{Path: path, MaxSizeMB: 20, MaxBackups: 5, MaxAgeDays: 28, MinLevel: minLevel}
}

// entry is one NDJSON line written to the rotating file.
type entry struct {
	TimestampUTC string         `json:"timestampUtc"`
	Level        Level          `json:"level"`
	CacheKey     string         `json:"cacheKey,omitempty"`
	Message      string         `json:"message"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// Logger is the operational logger, safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	out      *lumberjack.Logger
	minLevel Level
	cacheKey string
}

// New opens a rotating operational log at opts.Path.
func New(opts Options) *Logger {
	return &Logger{
		out: &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
		minLevel: opts.MinLevel,
	}
}

// WithCacheKey returns a Logger that stamps every subsequent entry with the
// given evidence-cache key, once the orchestrator has computed one.
func (l *Logger) WithCacheKey(key string) *Logger {
	return &Logger{out: l.out, minLevel: l.minLevel, cacheKey: key}
}

// Debug logs a debug-level entry.
func (l *Logger) Debug(message string, fields map[string]any) { l.write(LevelDebug, message, fields) }

// Info logs an info-level entry.
func (l *Logger) Info(message string, fields map[string]any) { l.write(LevelInfo, message, fields) }

// Warn logs a warn-level entry.
func (l *Logger) Warn(message string, fields map[string]any) { l.write(LevelWarn, message, fields) }

// Error logs an error-level entry.
func (l *Logger) Error(message string, fields map[string]any) { l.write(LevelError, message, fields) }

func (l *Logger) write(level Level, message string, fields map[string]any) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}
	e := entry{
		TimestampUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Level:        level,
		CacheKey:     l.cacheKey,
		Message:      message,
		Fields:       fields,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return // operator telemetry never blocks the pipeline on a marshal failure
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

// Close flushes and closes the underlying rotating file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
