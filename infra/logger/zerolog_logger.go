package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zerologLogger implements Logger on rs/zerolog with a fixed component
// field. Output is JSON by default; QB_LOG_FORMAT=console switches to a
// human-readable writer and QB_LOG_LEVEL raises or lowers the threshold
// (default info).
type zerologLogger struct {
	z zerolog.Logger
}

// NewZerologLogger creates a Logger tagged with the component name.
func NewZerologLogger(component string) Logger {
	z := zerolog.New(logWriter(os.Stdout)).
		Level(logLevel()).
		With().Timestamp().Str("component", component).Logger()
	return &zerologLogger{z: z}
}

func logWriter(out io.Writer) io.Writer {
	if strings.EqualFold(os.Getenv("QB_LOG_FORMAT"), "console") {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return out
}

func logLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("QB_LOG_LEVEL")))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *zerologLogger) Debugf(format string, args ...any) {
	l.z.Debug().Msgf(format, args...)
}

func (l *zerologLogger) Debugw(msg string, fields map[string]any) {
	l.z.Debug().Fields(fields).Msg(msg)
}

func (l *zerologLogger) Infof(format string, args ...any) {
	l.z.Info().Msgf(format, args...)
}

func (l *zerologLogger) Warnf(format string, args ...any) {
	l.z.Warn().Msgf(format, args...)
}

func (l *zerologLogger) Errorf(format string, args ...any) {
	l.z.Error().Msgf(format, args...)
}
