// Package log is the pg-exporter logging helper.
package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// SetLevel sets the global logging level from its string representation. Unknown
// values fall back to "info".
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetApplication attaches an "app" field to every subsequent log line.
func SetApplication(name string) {
	logger = logger.With().Str("app", name).Logger()
}

// Debug logs a message at debug level.
func Debug(args ...any) { logger.Debug().Msg(sprint(args...)) }

// Debugln logs a message at debug level, space-joining its arguments.
func Debugln(args ...any) { logger.Debug().Msg(sprintln(args...)) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { logger.Debug().Msgf(format, args...) }

// Info logs a message at info level.
func Info(args ...any) { logger.Info().Msg(sprint(args...)) }

// Infoln logs a message at info level, space-joining its arguments.
func Infoln(args ...any) { logger.Info().Msg(sprintln(args...)) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { logger.Info().Msgf(format, args...) }

// Warn logs a message at warn level.
func Warn(args ...any) { logger.Warn().Msg(sprint(args...)) }

// Warnln logs a message at warn level, space-joining its arguments.
func Warnln(args ...any) { logger.Warn().Msg(sprintln(args...)) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { logger.Warn().Msgf(format, args...) }

// Error logs a message at error level.
func Error(args ...any) { logger.Error().Msg(sprint(args...)) }

// Errorln logs a message at error level, space-joining its arguments.
func Errorln(args ...any) { logger.Error().Msg(sprintln(args...)) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { logger.Error().Msgf(format, args...) }

func sprint(args ...any) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if s, ok := a.(string); ok {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, "")
}

func sprintln(args ...any) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}
