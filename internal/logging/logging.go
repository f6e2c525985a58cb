package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with the fields the capture pipeline logs by
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, file path
	TimeFormat string
}

// NewLogger builds a logger from cfg and installs it as the global zerolog
// logger. Unknown levels fall back to info.
func NewLogger(cfg Config) (*Logger, error) {
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	if cfg.Format == "console" {
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = time.RFC3339
		}
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		level = parsed
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()
	log.Logger = zl
	return &Logger{logger: zl}, nil
}

func openOutput(dest string) (io.Writer, error) {
	switch dest {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	return os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
}

// NewDefaultLogger is the JSON-to-stdout logger used before config loads
func NewDefaultLogger() (*Logger, error) {
	return NewLogger(Config{Level: "info", Format: "json", Output: "stdout"})
}

// New wraps a writer directly; used by tests to inspect JSON output
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) with(ctx zerolog.Context) *Logger {
	return &Logger{logger: ctx.Logger()}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(l.logger.With().Interface(key, value))
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(l.logger.With().Fields(fields))
}

// WithError attaches err under "error"
func (l *Logger) WithError(err error) *Logger {
	return l.with(l.logger.With().Err(err))
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with(l.logger.With().Str("request_id", requestID))
}

func (l *Logger) WithCaptureID(captureID string) *Logger {
	return l.with(l.logger.With().Str("capture_id", captureID))
}

func (l *Logger) WithTabID(tabID string) *Logger {
	return l.with(l.logger.With().Str("tab_id", tabID))
}

// WithComponent tags the logger with the emitting component
func (l *Logger) WithComponent(component string) *Logger {
	return l.with(l.logger.With().Str("component", component))
}

func (l *Logger) Debug(msg string)                          { l.logger.Debug().Msg(msg) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.logger.Debug().Msgf(format, args...) }
func (l *Logger) Info(msg string)                           { l.logger.Info().Msg(msg) }
func (l *Logger) Infof(format string, args ...interface{})  { l.logger.Info().Msgf(format, args...) }
func (l *Logger) Warn(msg string)                           { l.logger.Warn().Msg(msg) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.logger.Warn().Msgf(format, args...) }
func (l *Logger) Error(msg string)                          { l.logger.Error().Msg(msg) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.logger.Error().Msgf(format, args...) }

// Fatalf logs and exits the process
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// outcome starts an event at ok, or at failed with err attached
func (l *Logger) outcome(err error, ok, failed zerolog.Level) *zerolog.Event {
	if err != nil {
		return l.logger.WithLevel(failed).Err(err)
	}
	return l.logger.WithLevel(ok)
}

// LogHTTPRequest logs one served request
func (l *Logger) LogHTTPRequest(method, path, clientIP string, statusCode int, duration time.Duration) {
	l.logger.Info().
		Str("method", method).
		Str("path", path).
		Str("client_ip", clientIP).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("HTTP request")
}

// LogCaptureEvent logs a capture lifecycle event with extra details
func (l *Logger) LogCaptureEvent(captureID, event, source string, details map[string]interface{}) {
	l.logger.Info().
		Str("capture_id", captureID).
		Str("event", event).
		Str("source", source).
		Fields(details).
		Msg("Capture event")
}

// LogCommand logs the outcome of a queued keyboard command
func (l *Logger) LogCommand(commandID, name, tabID string, err error) {
	l.outcome(err, zerolog.InfoLevel, zerolog.ErrorLevel).
		Str("command_id", commandID).
		Str("command", name).
		Str("tab_id", tabID).
		Msg("Command handled")
}

// LogBridgeMessage logs a message crossing the page/background boundary
func (l *Logger) LogBridgeMessage(action, tabID string, duration time.Duration, err error) {
	l.outcome(err, zerolog.DebugLevel, zerolog.WarnLevel).
		Str("action", action).
		Str("tab_id", tabID).
		Dur("duration_ms", duration).
		Msg("Bridge message")
}

// LogStorageOperation logs an object store call
func (l *Logger) LogStorageOperation(operation, bucket, key string, size int64, duration time.Duration, err error) {
	l.outcome(err, zerolog.InfoLevel, zerolog.ErrorLevel).
		Str("operation", operation).
		Str("bucket", bucket).
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration_ms", duration).
		Msg("Storage operation")
}

// LogDatabaseOperation logs a history query; successes only at debug
func (l *Logger) LogDatabaseOperation(operation string, duration time.Duration, err error) {
	l.outcome(err, zerolog.DebugLevel, zerolog.ErrorLevel).
		Str("operation", operation).
		Dur("duration_ms", duration).
		Msg("Database operation")
}
