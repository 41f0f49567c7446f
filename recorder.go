package calltrace

import (
	"errors"
	"sync"
	"time"
)

// defaultThreshold is the minimum execution time for a call to be recorded
// when no threshold is configured.
const defaultThreshold = time.Millisecond

// Config holds per-recorder settings. Fixed at construction.
type Config struct {
	// Threshold is the minimum execution time for a call to be recorded.
	// Calls that complete faster are discarded; a call taking exactly the
	// threshold is recorded. Zero records every call.
	Threshold time.Duration

	// AutoOutput, when set, emits one formatted line per recorded call to
	// the configured OutputSink.
	AutoOutput bool
}

// Validate checks that the Config is valid.
func (c Config) Validate() error {
	if c.Threshold < 0 {
		return errors.New("Config.Threshold cannot be negative")
	}
	return nil
}

// Recorder owns the in-memory store of call records for one traced target.
// Appends and snapshot reads share a single mutex; hold time is a single
// append or copy, never a traced call's execution.
type Recorder struct {
	mu      sync.Mutex
	records []CallRecord
	total   time.Duration

	label string
	cfg   Config
	out   OutputSink
	sink  CallSink
}

// NewRecorder creates a Recorder for the given target label. A nil out
// falls back to discarding auto-output; sink may be nil.
func NewRecorder(label string, cfg Config, out OutputSink, sink CallSink) *Recorder {
	return &Recorder{
		label: label,
		cfg:   cfg,
		out:   out,
		sink:  sink,
	}
}

// RecordCall applies the threshold filter and, for qualifying calls, appends
// a record of the completed invocation. Safe for concurrent use; no record
// is lost or torn under concurrent writers.
func (r *Recorder) RecordCall(name string, elapsed time.Duration, callErr error) {
	if elapsed < r.cfg.Threshold {
		return
	}

	rec := CallRecord{
		QualifiedName: r.label + "#" + name,
		ExecutionTime: elapsed,
		Status:        StatusSuccess,
		Timestamp:     time.Now(),
	}
	if callErr != nil {
		rec.Status = StatusError
		rec.Error = callErr.Error()
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.total += rec.ExecutionTime
	r.mu.Unlock()

	if r.cfg.AutoOutput && r.out != nil {
		severity := SeverityInfo
		if rec.Status == StatusError {
			severity = SeverityError
		}
		r.out.Write(severity, formatLine(rec))
	}
	if r.sink != nil {
		r.sink.ObserveCall(rec)
	}
}

// Results returns a consistent point-in-time snapshot of the store. Records
// appended after the copy is taken do not appear.
func (r *Recorder) Results() ResultSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]CallRecord, len(r.records))
	copy(calls, r.records)

	return ResultSnapshot{
		TotalCalls: len(calls),
		TotalTime:  r.total,
		Calls:      calls,
	}
}
