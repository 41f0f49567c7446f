package calltrace

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Severity classifies an output line.
type Severity int

const (
	// SeverityInfo is used for successful calls.
	SeverityInfo Severity = iota
	// SeverityError is used for failed calls.
	SeverityError
)

// OutputSink is a destination for formatted lines describing recorded calls.
// Implementations must be non-blocking or very fast; the recorder writes to
// the sink synchronously on the recording path.
type OutputSink interface {
	Write(severity Severity, line string)
}

// CallSink is a pluggable observer for recorded calls. Implementations must
// be non-blocking or very fast; the recorder invokes the sink best-effort
// and does not wait for completion.
type CallSink interface {
	ObserveCall(CallRecord)
}

// logSink writes lines through a zerolog.Logger.
type logSink struct {
	logger zerolog.Logger
}

// Write logs the line at a level matching the severity.
func (s logSink) Write(severity Severity, line string) {
	switch severity {
	case SeverityError:
		s.logger.Error().Msg(line)
	default:
		s.logger.Info().Msg(line)
	}
}

// formatDuration renders a duration at human scale: seconds above 1s,
// milliseconds above 1ms, whole microseconds below that.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return fmt.Sprintf("%.3fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
	default:
		// Round half up to whole microseconds.
		return fmt.Sprintf("%dµs", (d+500*time.Nanosecond)/time.Microsecond)
	}
}

// formatLine renders the auto-output line for a recorded call.
func formatLine(rec CallRecord) string {
	if rec.Status == StatusError {
		return fmt.Sprintf("%s failed in %s: %s",
			rec.QualifiedName, formatDuration(rec.ExecutionTime), rec.Error)
	}
	return fmt.Sprintf("%s completed in %s",
		rec.QualifiedName, formatDuration(rec.ExecutionTime))
}
