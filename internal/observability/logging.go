// Package observability provides the structured logging wrapper shared
// across the runtime, grounded on the teacher's
// internal/observability/logging.go: a slog.Logger wrapper with
// field-redaction regexes applied before values are written.
package observability

import (
	"context"
	"log/slog"
	"os"
	"regexp"
)

// ContextKey namespaces values carried on a context.Context for logging
// correlation.
type ContextKey string

const (
	RequestIDKey     ContextKey = "request_id"
	SessionIDKey     ContextKey = "session_id"
	AgentIDKey       ContextKey = "agent_id"
	CorrelationIDKey ContextKey = "correlation_id"
)

// DefaultRedactPatterns matches common secret shapes so they never reach
// log output verbatim.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)\s*[:=]\s*\S+`,
	`(?i)bearer\s+[a-z0-9._-]+`,
	`(?i)(secret|password|passwd)\s*[:=]\s*\S+`,
}

// LogConfig configures a Logger.
type LogConfig struct {
	Level          slog.Level
	AddSource      bool
	Output         *os.File
	RedactPatterns []string
}

// DefaultLogConfig returns sane defaults: info level, to stderr, with the
// default redaction patterns.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: slog.LevelInfo, Output: os.Stderr, RedactPatterns: DefaultRedactPatterns}
}

// Logger wraps *slog.Logger with redaction applied to string attribute
// values before they're handed to the underlying handler.
type Logger struct {
	logger  *slog.Logger
	redacts []*regexp.Regexp
}

// New builds a Logger from cfg.
func New(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource})
	l := &Logger{logger: slog.New(handler)}
	for _, p := range cfg.RedactPatterns {
		if re, err := regexp.Compile(p); err == nil {
			l.redacts = append(l.redacts, re)
		}
	}
	return l
}

func (l *Logger) redact(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[redacted]")
	}
	return s
}

func (l *Logger) redactArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			out[i] = l.redact(s)
		} else {
			out[i] = a
		}
	}
	return out
}

// With returns a Logger with the given attributes attached to every
// subsequent record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(l.redactArgs(args)...), redacts: l.redacts}
}

// WithContext attaches request/session/agent/correlation ids found on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	out := l
	for _, key := range []ContextKey{RequestIDKey, SessionIDKey, AgentIDKey, CorrelationIDKey} {
		if v := ctx.Value(key); v != nil {
			out = out.With(string(key), v)
		}
	}
	return out
}

func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(l.redact(msg), l.redactArgs(args)...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(l.redact(msg), l.redactArgs(args)...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(l.redact(msg), l.redactArgs(args)...) }
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(l.redact(msg), l.redactArgs(args)...) }

// Default returns a Logger with DefaultLogConfig.
func Default() *Logger { return New(DefaultLogConfig()) }
