package logging

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type LogFormat string

const (
	FormatText      LogFormat = "text"
	FormatJSON      LogFormat = "json"
	FormatColourful LogFormat = "colourful"
)

var validLogFormats = map[LogFormat]bool{
	FormatText:      true,
	FormatJSON:      true,
	FormatColourful: true,
}

// Config defines logging configuration.
type Config struct {
	// Defines configuration for console logging on stdout
	Console struct {
		// Log level, e.g. INFO, ERROR etc
		Level string
		// Logging format, either text, colourful or json
		Format LogFormat
	}
	// Defines configuration for file logging
	File struct {
		// Whether file logging is enabled.
		Enabled bool
		// Log level, e.g. INFO, ERROR etc
		Level string
		// Logging format, either text or json
		Format LogFormat
		// The Location of the logfile on disk
		LogFile string
		// Log Rotation Options
		Rotation struct {
			// Whether Log Rotation is enabled
			Enabled bool
			// Maximum size in megabytes of the log file before it gets rotated
			MaxSizeMb int
			// Maximum number of old log files to retain
			MaxBackups int
			// Maximum number of days to retain old log files
			MaxAgeDays int
			// Whether to compress rotated log files
			Compress bool
		}
	}
}

// Validate checks levels, formats and rotation settings.
func (c Config) Validate() error {
	_, err := parseLogLevel(c.Console.Level)
	if err != nil {
		return err
	}

	err = validateLogFormat(c.Console.Format)
	if err != nil {
		return err
	}

	if c.File.Enabled {
		_, err := parseLogLevel(c.File.Level)
		if err != nil {
			return err
		}

		err = validateLogFormat(c.File.Format)
		if err != nil {
			return err
		}

		if c.File.LogFile == "" {
			return errors.New("file.logFile must be set when file logging is enabled")
		}

		rotation := c.File.Rotation
		if rotation.Enabled {
			if rotation.MaxSizeMb <= 0 {
				return errors.New("rotation.maxSizeMb must be greater than zero")
			}
			if rotation.MaxBackups <= 0 {
				return errors.New("rotation.maxBackups must be greater than zero")
			}
			if rotation.MaxAgeDays <= 0 {
				return errors.New("rotation.maxAgeDays must be greater than zero")
			}
		}
	}

	return nil
}

func validateLogFormat(f LogFormat) error {
	_, ok := validLogFormats[f]
	if !ok {
		formats := maps.Keys(validLogFormats)
		slices.Sort(formats)
		return errors.Errorf("unknown log format: %s.  Valid formats are %s", f, formats)
	}
	return nil
}

func parseLogLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "panic":
		return logrus.PanicLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	default:
		return logrus.InfoLevel, errors.Errorf("unknown level: %s", level)
	}
}
