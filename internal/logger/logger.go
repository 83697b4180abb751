package logger

import (
	"io"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/serialmon/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.Nop()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger based on the given configuration
func Init(debug, verbose, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	SetLogLevel(WarnLevel) // Default log level

	if debug {
		SetLogLevel(DebugLevel)
	} else if verbose {
		SetLogLevel(InfoLevel)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(log.Error(), err)}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(log.Fatal(), err)}
}

func withCode(event *zerolog.Event, err errors.Error) *zerolog.Event {
	return event.
		Str("error_code", string(err.Code())).
		AnErr("error", err)
}

// componentLogger routes through the package logger so that components
// created before Init still pick up the configured output.
type componentLogger struct {
	base      *zerolog.Logger
	component string
}

// New returns a Logger backed by the package logger.
func New() Logger {
	return &componentLogger{}
}

// NewWithWriter returns a Logger writing JSON lines to w, used by tests
// that assert on log output.
func NewWithWriter(w io.Writer) Logger {
	l := zerolog.New(w).With().Timestamp().Logger()
	return &componentLogger{base: &l}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	l := zerolog.Nop()
	return &componentLogger{base: &l}
}

func (c *componentLogger) With(component string) Logger {
	return &componentLogger{base: c.base, component: component}
}

func (c *componentLogger) logger() *zerolog.Logger {
	if c.base != nil {
		return c.base
	}
	return &log
}

func (c *componentLogger) tag(event *zerolog.Event) *LogEvent {
	if c.component != "" {
		event = event.Str("component", c.component)
	}
	return &LogEvent{event}
}

func (c *componentLogger) Debug() *LogEvent {
	return c.tag(c.logger().Debug())
}

func (c *componentLogger) Info() *LogEvent {
	return c.tag(c.logger().Info())
}

func (c *componentLogger) Warn() *LogEvent {
	return c.tag(c.logger().Warn())
}

func (c *componentLogger) Error() *LogEvent {
	return c.tag(c.logger().Error())
}

func (c *componentLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return c.tag(withCode(c.logger().Error(), err))
}
