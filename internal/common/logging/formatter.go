package logging

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CommandLineFormatter prints the bare message, prefixed with the level for warnings and errors.  An attached
// error is appended; every other field is dropped.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	if entry.Level <= log.WarnLevel {
		b.WriteString(strings.ToUpper(entry.Level.String()))
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	if err, ok := entry.Data[log.ErrorKey]; ok {
		fmt.Fprintf(&b, ": %v", err)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}
