package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/gpioled/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "gpioled"

// redacted replaces the value of attributes whose key names a secret.
const redacted = "[REDACTED]"

// secretKeys are matched against lower-cased attribute keys.
var secretKeys = []string{"secret", "token", "password", "ticket", "authorization"}

// Logger is a slog.Logger with a level that can change at runtime.
//
// Entries carry service and version fields, and attributes whose key
// looks like a credential are redacted. Safe for concurrent use.
type Logger struct {
	*slog.Logger

	level  *slog.LevelVar
	closer io.Closer
}

// New builds the logger described by cfg.
//
// Output "stdout" and "stderr" write to the process streams; "file" writes
// to cfg.File.Path with size-based rotation.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger; Close it to release a log file
func New(cfg config.LoggingConfig, version string) *Logger {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		w = os.Stderr
	case "file":
		rotator := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		}
		w, closer = rotator, rotator
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))
	return &Logger{
		Logger: slog.New(newHandler(w, cfg.Format, level, version)),
		level:  level,
		closer: closer,
	}
}

// newHandler builds a JSON handler, or a text handler for format "text".
func newHandler(w io.Writer, format string, level slog.Leveler, version string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return h.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
}

// redact hides the value of credential-like attributes.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

// parseLevel maps debug, info, warn (or warning) and error to slog levels,
// case-insensitively. Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger with extra attributes. The child shares the
// parent's level and output; only the parent should be closed.
//
//	mqttLog := log.With("component", "mqtt")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// SetLevel changes the minimum level of this logger and every child.
func (l *Logger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}

// ToggleDebug switches between debug and the configured level, and
// returns the level now in effect.
func (l *Logger) ToggleDebug(configured string) slog.Level {
	next := slog.LevelDebug
	if l.level.Level() == slog.LevelDebug {
		next = parseLevel(configured)
	}
	l.level.Set(next)
	return next
}

// Close closes the log file when output is "file".
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default returns an info-level JSON logger on stdout for use before the
// configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
