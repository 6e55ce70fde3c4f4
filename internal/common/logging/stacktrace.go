package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Stacktrace = "stacktrace"

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}

// WithStacktrace adds err and, if one was recorded, the stack trace of where it originated to logger.
func WithStacktrace(logger *logrus.Entry, err error) *logrus.Entry {
	logger = logger.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		logger = logger.WithField(Stacktrace, stack)
	}
	return logger
}

// ExtractStack returns the innermost stack trace in the chain of err, or nil if there is none.
// The chain is followed through both Cause and Unwrap, as the loader's error kinds only implement Unwrap.
func ExtractStack(err error) errors.StackTrace {
	var stack errors.StackTrace
	for err != nil {
		if tracer, ok := err.(stackTracer); ok {
			stack = tracer.StackTrace()
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			err = errors.Unwrap(err)
		}
	}
	return stack
}
