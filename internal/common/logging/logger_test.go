package logging

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTestLogger(t *testing.T) *test.Hook {
	t.Helper()
	original := StdLogger()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ReplaceStdLogger(logger)
	t.Cleanup(func() { stdLogger = original })
	return hook
}

func TestGlobalLogging(t *testing.T) {
	tests := map[string]struct {
		logFn         func()
		expectedLevel logrus.Level
		expectedMsg   string
	}{
		"Debug":  {logFn: func() { Debug("test message") }, expectedLevel: logrus.DebugLevel, expectedMsg: "test message"},
		"Debugf": {logFn: func() { Debugf("test %s", "message") }, expectedLevel: logrus.DebugLevel, expectedMsg: "test message"},
		"Info":   {logFn: func() { Info("test message") }, expectedLevel: logrus.InfoLevel, expectedMsg: "test message"},
		"Infof":  {logFn: func() { Infof("%d/%d inserted", 10, 25) }, expectedLevel: logrus.InfoLevel, expectedMsg: "10/25 inserted"},
		"Warn":   {logFn: func() { Warn("test message") }, expectedLevel: logrus.WarnLevel, expectedMsg: "test message"},
		"Warnf":  {logFn: func() { Warnf("test %s", "message") }, expectedLevel: logrus.WarnLevel, expectedMsg: "test message"},
		"Error":  {logFn: func() { Error("test message") }, expectedLevel: logrus.ErrorLevel, expectedMsg: "test message"},
		"Errorf": {logFn: func() { Errorf("test %s", "message") }, expectedLevel: logrus.ErrorLevel, expectedMsg: "test message"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			hook := withTestLogger(t)
			tc.logFn()
			require.Len(t, hook.AllEntries(), 1)
			assert.Equal(t, tc.expectedLevel, hook.LastEntry().Level)
			assert.Equal(t, tc.expectedMsg, hook.LastEntry().Message)
		})
	}
}

func TestWithFields(t *testing.T) {
	hook := withTestLogger(t)
	WithFields(map[string]any{"window": 3, "table": "news"}).WithField("rows", 10).Info("committed")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.Data["window"])
	assert.Equal(t, "news", entry.Data["table"])
	assert.Equal(t, 10, entry.Data["rows"])
}

func TestWithStacktrace(t *testing.T) {
	hook := withTestLogger(t)
	err := errors.WithMessage(errors.New("boom"), "insert failed")
	WithStacktrace(StdLogger(), err).Error("window failed")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, err, entry.Data[logrus.ErrorKey])
	assert.NotNil(t, entry.Data[Stacktrace])
}

func TestExtractStack_NoStack(t *testing.T) {
	assert.Nil(t, ExtractStack(assert.AnError))
	assert.Nil(t, ExtractStack(nil))
}

type windowError struct {
	cause error
}

func (e *windowError) Error() string { return "window 2: " + e.cause.Error() }

func (e *windowError) Unwrap() error { return e.cause }

func TestExtractStack_InnermostThroughUnwrap(t *testing.T) {
	origin := errors.New("connection reset")
	err := errors.WithStack(&windowError{cause: errors.WithMessage(origin, "commit")})

	expected := origin.(stackTracer).StackTrace()
	assert.Equal(t, expected, ExtractStack(err))
}

func TestCommandLineFormatter(t *testing.T) {
	tests := map[string]struct {
		entry    *logrus.Entry
		expected string
	}{
		"info": {
			entry:    &logrus.Entry{Level: logrus.InfoLevel, Message: "hello", Data: logrus.Fields{"window": 1}},
			expected: "hello\n",
		},
		"warning": {
			entry:    &logrus.Entry{Level: logrus.WarnLevel, Message: "large load"},
			expected: "WARNING: large load\n",
		},
		"error with cause": {
			entry:    &logrus.Entry{Level: logrus.ErrorLevel, Message: "load failed", Data: logrus.Fields{logrus.ErrorKey: assert.AnError}},
			expected: "ERROR: load failed: " + assert.AnError.Error() + "\n",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := (&CommandLineFormatter{}).Format(tc.entry)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(out))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		c := Config{}
		c.Console.Level = "info"
		c.Console.Format = FormatText
		return c
	}
	tests := map[string]struct {
		modify  func(*Config)
		errText string
	}{
		"valid": {modify: func(c *Config) {}},
		"bad console level": {
			modify:  func(c *Config) { c.Console.Level = "loud" },
			errText: "unknown level: loud",
		},
		"bad console format": {
			modify:  func(c *Config) { c.Console.Format = "xml" },
			errText: "unknown log format: xml",
		},
		"file without path": {
			modify: func(c *Config) {
				c.File.Enabled = true
				c.File.Level = "debug"
				c.File.Format = FormatJSON
			},
			errText: "file.logFile must be set",
		},
		"rotation without size": {
			modify: func(c *Config) {
				c.File.Enabled = true
				c.File.Level = "debug"
				c.File.Format = FormatJSON
				c.File.LogFile = "loader.log"
				c.File.Rotation.Enabled = true
			},
			errText: "rotation.maxSizeMb",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			tc.modify(&c)
			err := c.Validate()
			if tc.errText == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errText)
		})
	}
}

func TestNewApplicationLogger_FileMoreVerboseThanConsole(t *testing.T) {
	config := Config{}
	config.Console.Level = "warn"
	config.Console.Format = FormatJSON
	config.File.Enabled = true
	config.File.Level = "debug"
	config.File.Format = FormatJSON
	config.File.LogFile = filepath.Join(t.TempDir(), "loader.log")

	var console bytes.Buffer
	logger, err := NewApplicationLogger(config, &console)
	require.NoError(t, err)

	logger.Debug("only in file")
	logger.Warn("everywhere")

	assert.NotContains(t, console.String(), "only in file")
	assert.Contains(t, console.String(), "everywhere")
}

func TestPrometheusHook(t *testing.T) {
	registry := prometheus.NewRegistry()
	hook, err := NewPrometheusHook(registry)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(hook)
	logger.Info("a")
	logger.Info("b")
	logger.Warn("c")

	assert.Equal(t, 2.0, testutil.ToFloat64(hook.counters[logrus.InfoLevel]))
	assert.Equal(t, 1.0, testutil.ToFloat64(hook.counters[logrus.WarnLevel]))
}
