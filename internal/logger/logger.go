package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias kept so callers need not import logrus.
type Fields = logrus.Fields

// Log wraps a logrus.Logger.
type Log struct {
	*logrus.Logger
}

var global = New()

// New returns a JSON logger at the level named by LOG_LEVEL (info by default).
func New() *Log {
	l := &Log{Logger: logrus.New()}
	l.SetReportCaller(true)
	level := os.Getenv("LOG_LEVEL")
	if lvl, err := logrus.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	l.SetFormatter(jsonFormatter())
	return l
}

// Get returns the process-wide logger.
func Get() *Log { return global }

// WithComponent returns an entry tagged with the given component name.
func (l *Log) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

// Configure applies level, format and output. A file output with maxAgeDays > 0
// rotates through lumberjack.
func (l *Log) Configure(level, format, output string, maxAgeDays int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	l.SetLevel(lvl)

	switch format {
	case "json", "":
		l.SetFormatter(jsonFormatter())
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	switch output {
	case "stdout", "":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		if maxAgeDays > 0 {
			l.SetOutput(&lumberjack.Logger{
				Filename: output,
				MaxAge:   maxAgeDays,
				MaxSize:  50,
				Compress: true,
			})
			return nil
		}
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %q: %w", output, err)
		}
		l.SetOutput(f)
	}
	return nil
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: callerPrettyfier,
	}
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}
