// Package log provides a leveled, structured logger for the whole coordinator,
// backed by zerolog. It exposes package-level functions so callers do not need
// to thread a logger handle through every constructor.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Log levels accepted by Init.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const logTestWriterName = "_testWriter"

var (
	log zerolog.Logger

	level string

	// logTestWriter can be set by tests to capture output.
	logTestWriter io.Writer = io.Discard

	// panicOnInvalidChars is useful for debugging: log lines carrying bytes
	// that are not valid UTF-8 usually mean someone logged raw binary data.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	// A usable default so packages can log before Init is called.
	Init(LogLevelInfo, "stderr")
}

// Init initializes the logger with the given level ("debug", "info", "warn",
// "error") and output ("stdout", "stderr" or a file path).
func Init(logLevel, output string) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339Nano}

	lv, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		lv = zerolog.InfoLevel
	}
	level = logLevel
	log = zerolog.New(out).Level(lv).With().Timestamp().Logger()
}

// Level returns the level the logger was initialized with.
func Level() string { return level }

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger { return &log }

func checkInvalidChars(s string) {
	if panicOnInvalidChars && !utf8.ValidString(s) {
		panic(fmt.Sprintf("log line with invalid chars: %q", s))
	}
}

func withFields(ev *zerolog.Event, keyvals ...any) *zerolog.Event {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		ev = ev.Interface(key, keyvals[i+1])
	}
	return ev
}

// Debug logs a message at debug level.
func Debug(args ...any) { msg(log.Debug(), args...) }

// Info logs a message at info level.
func Info(args ...any) { msg(log.Info(), args...) }

// Warn logs a message at warning level.
func Warn(args ...any) { msg(log.Warn(), args...) }

// Error logs a message at error level.
func Error(args ...any) { msg(log.Error(), args...) }

func msg(ev *zerolog.Event, args ...any) {
	s := strings.TrimSuffix(fmt.Sprintln(args...), "\n")
	checkInvalidChars(s)
	ev.Msg(s)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { msgf(log.Debug(), format, args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { msgf(log.Info(), format, args...) }

// Warnf logs a formatted message at warning level.
func Warnf(format string, args ...any) { msgf(log.Warn(), format, args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { msgf(log.Error(), format, args...) }

// Fatalf logs a formatted message and exits.
func Fatalf(format string, args ...any) {
	msgf(log.Fatal(), format, args...)
}

func msgf(ev *zerolog.Event, format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	checkInvalidChars(s)
	ev.Msg(s)
}

// Debugw logs a message at debug level with structured key-value fields.
func Debugw(message string, keyvals ...any) {
	checkInvalidChars(message)
	withFields(log.Debug(), keyvals...).Msg(message)
}

// Infow logs a message at info level with structured key-value fields.
func Infow(message string, keyvals ...any) {
	checkInvalidChars(message)
	withFields(log.Info(), keyvals...).Msg(message)
}

// Warnw logs a message at warning level with structured key-value fields.
func Warnw(message string, keyvals ...any) {
	checkInvalidChars(message)
	withFields(log.Warn(), keyvals...).Msg(message)
}

// Errorw logs an error with a descriptive message at error level.
func Errorw(err error, message string) {
	if err == nil {
		log.Error().Msg(message)
		return
	}
	checkInvalidChars(message)
	log.Error().Err(err).Msg(message)
}
