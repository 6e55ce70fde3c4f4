package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NullLogger discards everything written to it.
var NullLogger = &logrus.Logger{
	Out:       io.Discard,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.PanicLevel,
}

// NullEntry is an entry on NullLogger, for code that needs a contextual logger but whose output nobody reads.
func NullEntry() *logrus.Entry {
	return logrus.NewEntry(NullLogger)
}
