package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

// New builds a logger writing to w. Console output is human readable;
// otherwise records are JSON lines.
func New(w io.Writer, level string, console bool) *Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
	return &Logger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
	os.Exit(1)
}

// Zerolog exposes the underlying logger for structured fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Global logger instance
var GlobalLogger = New(os.Stderr, "info", os.Getenv("ENV") != "production")

// Setup replaces the global logger.
func Setup(level string, console bool) {
	GlobalLogger = New(os.Stderr, level, console)
}

// L returns the global zerolog logger.
func L() *zerolog.Logger {
	return GlobalLogger.Zerolog()
}

// Convenience functions
func Info(format string, v ...interface{}) {
	GlobalLogger.Info(format, v...)
}

func Warn(format string, v ...interface{}) {
	GlobalLogger.Warn(format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.Error(format, v...)
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.Debug(format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.Fatal(format, v...)
}
