// Package logger provides leveled structured logging.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger *zerolog.Logger

// parseLevel maps a config level name to a zerolog level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init initializes the default logger with the specified level and format.
// Format "text" writes human-readable console lines with caller info; anything
// else writes one JSON object per line.
func Init(level string, format string) {
	initWithWriter(level, format, os.Stderr)
}

func initWithWriter(level, format string, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = out
	text := strings.ToLower(format) == "text"
	if text {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000", NoColor: true}
	}

	ctx := zerolog.New(w).Level(parseLevel(level)).With().Timestamp()
	if text {
		// Debug/Info/... add one frame on top of zerolog's own.
		ctx = ctx.CallerWithSkipFrameCount(3)
	}
	l := ctx.Logger()
	defaultLogger = &l
}

func Debug(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug().Msgf(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info().Msgf(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn().Msgf(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error().Msgf(format, args...)
	}
}

func Fatal(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	}
	os.Exit(1)
}

// Leveled adapts the default logger to the key/value interface used by
// hashicorp/go-retryablehttp.
type Leveled struct{}

func (Leveled) Error(msg string, kv ...interface{}) { withFields(zerolog.ErrorLevel, msg, kv) }
func (Leveled) Warn(msg string, kv ...interface{})  { withFields(zerolog.WarnLevel, msg, kv) }
func (Leveled) Info(msg string, kv ...interface{})  { withFields(zerolog.DebugLevel, msg, kv) }
func (Leveled) Debug(msg string, kv ...interface{}) { withFields(zerolog.DebugLevel, msg, kv) }

func withFields(level zerolog.Level, msg string, kv []interface{}) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.WithLevel(level).Fields(kv).Msg(msg)
}
