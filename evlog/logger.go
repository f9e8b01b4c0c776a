package evlog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Fields = logrus.Fields

type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithFields(fields Fields) Logger
}

var (
	mu     sync.RWMutex
	logger = NewNoneLogger()
)

func SetLogger(l Logger) {
	if l == nil {
		l = NewNoneLogger()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

func current() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l
}

func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	current().Infof(format, args...)
}

func Warningf(format string, args ...interface{}) {
	current().Warningf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// WithFields returns a logger bound to the current package logger. Loggers
// obtained before a SetLogger call keep writing to the previous backend.
func WithFields(fields Fields) Logger {
	return current().WithFields(fields)
}

func NewDebugLogger() Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return FromLogrus(l)
}

func NewLogger() Logger {
	return FromLogrus(logrus.New())
}

func FromLogrus(l *logrus.Logger) Logger {
	return &stdLogger{entry: logrus.NewEntry(l)}
}

type stdLogger struct {
	entry *logrus.Entry
}

func (l *stdLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *stdLogger) Warningf(format string, args ...interface{}) {
	l.entry.Warningf(format, args...)
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *stdLogger) WithFields(fields Fields) Logger {
	return &stdLogger{entry: l.entry.WithFields(fields)}
}

func NewNoneLogger() Logger {
	return noneLogger{}
}

type noneLogger struct{}

func (noneLogger) Debugf(format string, args ...interface{}) {}

func (noneLogger) Infof(format string, args ...interface{}) {}

func (noneLogger) Warningf(format string, args ...interface{}) {}

func (noneLogger) Errorf(format string, args ...interface{}) {}

func (l noneLogger) WithFields(fields Fields) Logger { return l }
