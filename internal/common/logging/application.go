package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

// ConfigureApplicationLogging builds a logger from config and installs it as the global logger.
func ConfigureApplicationLogging(config Config) error {
	logger, err := NewApplicationLogger(config, os.Stdout)
	if err != nil {
		return err
	}
	ReplaceStdLogger(logger)
	return nil
}

// NewApplicationLogger creates a logger writing to console and, if enabled, to a rotated log file.
// The file receives entries at its own level and format through a hook.
func NewApplicationLogger(config Config, console io.Writer) (*logrus.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	consoleLevel, _ := parseLogLevel(config.Console.Level)

	logger := logrus.New()
	logger.SetOutput(console)
	logger.SetFormatter(newFormatter(config.Console.Format))
	logger.SetLevel(consoleLevel)

	if config.File.Enabled {
		fileLevel, _ := parseLogLevel(config.File.Level)
		// logrus filters on the logger level before hooks fire
		if fileLevel > consoleLevel {
			logger.SetLevel(fileLevel)
			logger.AddHook(&levelFilterHook{maxLevel: consoleLevel, writer: console, formatter: newFormatter(config.Console.Format)})
			logger.SetOutput(io.Discard)
		}
		logger.AddHook(&levelFilterHook{
			maxLevel:  fileLevel,
			writer:    createFileWriter(config),
			formatter: newFormatter(config.File.Format),
		})
	}
	return logger, nil
}

func createFileWriter(config Config) io.Writer {
	rotation := config.File.Rotation
	l := &lumberjack.Logger{Filename: config.File.LogFile}
	if rotation.Enabled {
		l.MaxSize = rotation.MaxSizeMb
		l.MaxBackups = rotation.MaxBackups
		l.MaxAge = rotation.MaxAgeDays
		l.Compress = rotation.Compress
	}
	return l
}

func newFormatter(format LogFormat) logrus.Formatter {
	switch format {
	case FormatJSON:
		return &logrus.JSONFormatter{TimestampFormat: RFC3339Milli}
	case FormatColourful:
		return &logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: RFC3339Milli}
	default:
		return &logrus.TextFormatter{DisableColors: true, FullTimestamp: true, TimestampFormat: RFC3339Milli}
	}
}

// levelFilterHook writes every entry at or above maxLevel severity to writer.
type levelFilterHook struct {
	maxLevel  logrus.Level
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *levelFilterHook) Levels() []logrus.Level {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= h.maxLevel {
			levels = append(levels, l)
		}
	}
	return levels
}

func (h *levelFilterHook) Fire(entry *logrus.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(b)
	return err
}
