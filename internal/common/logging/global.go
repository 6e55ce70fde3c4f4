package logging

import (
	"github.com/sirupsen/logrus"
)

// The global Logger.  Comes configured with some sensible defaults for e.g. unit tests, but applications should
// generally configure their own logging config via ReplaceStdLogger
var stdLogger = logrus.NewEntry(createDefaultLogger())

// ReplaceStdLogger Replaces the global logger.  This should be called once at app startup!
func ReplaceStdLogger(l *logrus.Logger) {
	stdLogger = logrus.NewEntry(l)
}

// StdLogger Returns the default logger
func StdLogger() *logrus.Entry {
	return stdLogger
}

// Debug logs a message at level Debug.
func Debug(args ...any) {
	stdLogger.Debug(args...)
}

// Info logs a message at level Info.
func Info(args ...any) {
	stdLogger.Info(args...)
}

// Warn logs a message at level Warn on the standard logger.
func Warn(args ...any) {
	stdLogger.Warn(args...)
}

// Error logs a message at level Error on the standard logger.
func Error(args ...any) {
	stdLogger.Error(args...)
}

// Fatal logs a message at level Fatal on the standard logger then the process will exit with status set to 1.
func Fatal(args ...any) {
	stdLogger.Fatal(args...)
}

// Debugf logs a message at level Debug on the standard logger.
func Debugf(format string, args ...any) {
	stdLogger.Debugf(format, args...)
}

// Infof logs a message at level Info on the standard logger.
func Infof(format string, args ...any) {
	stdLogger.Infof(format, args...)
}

// Warnf logs a message at level Warn on the standard logger.
func Warnf(format string, args ...any) {
	stdLogger.Warnf(format, args...)
}

// Errorf logs a message at level Error on the standard logger.
func Errorf(format string, args ...any) {
	stdLogger.Errorf(format, args...)
}

// Fatalf logs a message at level Fatal on the standard logger then the process will exit with status set to 1.
func Fatalf(format string, args ...any) {
	stdLogger.Fatalf(format, args...)
}

// WithField returns a new Entry with the key-value pair added as a new field
func WithField(key string, value any) *logrus.Entry {
	return stdLogger.WithField(key, value)
}

// WithFields returns a new Entry with all key-value pairs in the map added as new fields
func WithFields(args map[string]any) *logrus.Entry {
	return stdLogger.WithFields(args)
}

// WithError returns a new Entry with the error added as a field
func WithError(err error) *logrus.Entry {
	return stdLogger.WithError(err)
}

// Default logging options
func createDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.DebugLevel)
	return l
}
