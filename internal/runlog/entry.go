package runlog

import (
	"fmt"
	"strings"
	"time"
)

// Severity of a log entry.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARNING"
	SeverityError Severity = "ERROR"
)

// Entry is one immutable log record. Seq is assigned by the store on append.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	RunID     uint64    `json:"run_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
}

// TimestampLayout is used when rendering entries as text.
const TimestampLayout = "2006-01-02 15:04:05.000"

// String renders the entry as a single log line.
func (e Entry) String() string {
	return fmt.Sprintf("%s %s [run %d] %s: %s",
		e.Timestamp.UTC().Format(TimestampLayout), e.Severity, e.RunID, e.Stage, e.Message)
}

// Text concatenates entries into newline-terminated log text.
func Text(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
