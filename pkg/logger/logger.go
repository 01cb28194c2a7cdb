package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger represents the application logger
type Logger struct {
	*logrus.Logger
}

// LogLevel represents log levels
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogFormat represents log output formats
type LogFormat string

const (
	JSONFormat LogFormat = "json"
	TextFormat LogFormat = "text"
)

// Config represents logger configuration
type Config struct {
	Level       LogLevel
	Format      LogFormat
	Output      string // file path or "stdout"
	ReportCalls bool
	Development bool
}

var (
	instance *Logger
	mu       sync.RWMutex
)

// Init installs the global logger
func Init(cfg Config) {
	l := NewLogger(cfg)
	mu.Lock()
	instance = l
	mu.Unlock()
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) *Logger {
	l := &Logger{Logger: logrus.New()}
	l.SetLevel(getLogrusLevel(cfg.Level))

	if cfg.Format == TextFormat {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
			},
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "caller",
			},
		})
	}

	out, err := openOutput(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: falling back to stdout: %v\n", err)
		out = os.Stdout
	}
	l.SetOutput(out)
	l.SetReportCaller(cfg.ReportCalls)
	return l
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output == "" || cfg.Output == "stdout" {
		return os.Stdout, nil
	}
	if cfg.Output == "stderr" {
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	if cfg.Development {
		return io.MultiWriter(file, os.Stdout), nil
	}
	return file, nil
}

// ParseLevel normalises a level string
func ParseLevel(s string) LogLevel {
	return LogLevel(strings.ToLower(strings.TrimSpace(s)))
}

func getLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// base returns the installed logger, or the logrus standard logger before Init
func base() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if instance != nil {
		return instance.Logger
	}
	return logrus.StandardLogger()
}

// SetOutput redirects the active logger, mainly for tests
func SetOutput(w io.Writer) {
	base().SetOutput(w)
}

// SetLevel changes the logger level at runtime
func SetLevel(level LogLevel) {
	base().SetLevel(getLogrusLevel(level))
}

func Debugf(format string, args ...interface{}) { base().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { base().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { base().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { base().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { base().Fatalf(format, args...) }

// WithField creates an entry with a field
func WithField(key string, value interface{}) *logrus.Entry {
	return base().WithField(key, value)
}

// WithFields creates an entry with multiple fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return base().WithFields(fields)
}

func withMetadata(fields logrus.Fields, metadata map[string]interface{}) logrus.Fields {
	for k, v := range metadata {
		fields[k] = v
	}
	return fields
}

// LogRequest logs HTTP request information
func LogRequest(method, path, ip, requestID string, duration time.Duration, statusCode int) {
	WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"ip":          ip,
		"request_id":  requestID,
		"duration_ms": duration.Milliseconds(),
		"status_code": statusCode,
		"type":        "request",
	}).Info("HTTP Request")
}

// LogUserAction logs an action taken by a client or counselor
func LogUserAction(userID, action string, metadata map[string]interface{}) {
	WithFields(withMetadata(logrus.Fields{
		"user_id": userID,
		"action":  action,
		"type":    "user_action",
	}, metadata)).Info("User Action")
}

// LogAdminAction logs admin actions
func LogAdminAction(adminID, action, target string, metadata map[string]interface{}) {
	WithFields(withMetadata(logrus.Fields{
		"admin_id": adminID,
		"action":   action,
		"target":   target,
		"type":     "admin_action",
	}, metadata)).Warn("Admin Action")
}

// LogMeetingEvent logs a meeting state change
func LogMeetingEvent(event, meetingID string, from, to string, metadata map[string]interface{}) {
	WithFields(withMetadata(logrus.Fields{
		"event":      event,
		"meeting_id": meetingID,
		"from":       from,
		"to":         to,
		"type":       "meeting_event",
	}, metadata)).Info("Meeting Event")
}

// LogReconcileRun summarises one reconciler tick
func LogReconcileRun(counts map[string]int, duration time.Duration) {
	fields := logrus.Fields{
		"duration_ms": duration.Milliseconds(),
		"type":        "reconcile_run",
	}
	for k, v := range counts {
		fields[k] = v
	}
	WithFields(fields).Info("Reconcile Run")
}

// LogSecurityEvent logs security-related events
func LogSecurityEvent(event, userID, ip string, metadata map[string]interface{}) {
	WithFields(withMetadata(logrus.Fields{
		"event":   event,
		"user_id": userID,
		"ip":      ip,
		"type":    "security_event",
	}, metadata)).Warn("Security Event")
}

// LogError logs detailed error information
func LogError(err error, context string, metadata map[string]interface{}) {
	fields := withMetadata(logrus.Fields{
		"error":   fmt.Sprint(err),
		"context": context,
		"type":    "error_detail",
	}, metadata)
	if base().IsLevelEnabled(logrus.DebugLevel) {
		fields["stack_trace"] = getStackTrace()
	}
	WithFields(fields).Error("Application Error")
}

// LogPerformance logs the duration of an outbound or slow operation
func LogPerformance(operation string, duration time.Duration, metadata map[string]interface{}) {
	entry := WithFields(withMetadata(logrus.Fields{
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
		"type":        "performance",
	}, metadata))
	if duration > 5*time.Second {
		entry.Warn("Slow Operation")
		return
	}
	entry.Debug("Performance Metric")
}

func getStackTrace() string {
	buf := make([]byte, 1024)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, 2*len(buf))
	}
}

// Close closes a file-backed logger
func Close() error {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return nil
	}
	if file, ok := instance.Out.(*os.File); ok && file != os.Stdout && file != os.Stderr {
		return file.Close()
	}
	return nil
}
