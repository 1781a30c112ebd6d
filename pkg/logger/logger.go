package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	TRACE Level = "TRACE"
	DEBUG Level = "DEBUG"
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
)

// New builds the process logger. Pretty output is meant for the CLIs, JSON for the server.
func New(level Level, pretty bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, pretty)
}

func NewWithWriter(w io.Writer, level Level, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).
		Level(toZero(level)).
		With().
		Timestamp().
		Logger()
}

// Writer is a printf-style sink. It is accepted directly by chromedp's log
// options and, through its Printf method, by gorm's logger.
type Writer func(string, ...interface{})

func (w Writer) Printf(format string, args ...interface{}) {
	w(format, args...)
}

// Printf adapts a logger to a printf-style Writer at the given level.
func Printf(l zerolog.Logger, level zerolog.Level) Writer {
	return func(format string, args ...interface{}) {
		l.WithLevel(level).Msg(fmt.Sprintf(format, args...))
	}
}

func toZero(level Level) zerolog.Level {
	switch Level(strings.ToUpper(string(level))) {
	case ERROR:
		return zerolog.ErrorLevel
	case WARN:
		return zerolog.WarnLevel
	case INFO:
		return zerolog.InfoLevel
	case DEBUG:
		return zerolog.DebugLevel
	case TRACE:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
