package calltrace

import (
	"errors"
	"fmt"
	"time"

	"github.com/jkbrsn/taskman"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// Reporter periodically emits a one-line summary of a tracer's accumulated
// results on a fixed cadence.
type Reporter struct {
	tracer *Tracer
	out    OutputSink

	taskManager *taskman.TaskManager
	closed      atomic.Bool
}

// NewReporter creates and starts a Reporter that summarizes the tracer's
// results every cadence. A nil out falls back to the default log sink.
func NewReporter(t *Tracer, cadence time.Duration, out OutputSink) (*Reporter, error) {
	if t == nil {
		return nil, errors.New("tracer is nil")
	}
	if cadence <= 0 {
		return nil, errors.New("cadence must be positive")
	}
	if out == nil {
		out = logSink{logger: log.Logger}
	}

	r := &Reporter{
		tracer:      t,
		out:         out,
		taskManager: taskman.New(),
	}

	job := taskman.Job{
		ID:       xid.New().String(),
		Cadence:  cadence,
		NextExec: time.Now().Add(cadence),
		Tasks:    []taskman.Task{&reportTask{reporter: r}},
	}
	if err := r.taskManager.ScheduleJob(job); err != nil {
		return nil, fmt.Errorf("failed to schedule report job: %w", err)
	}

	return r, nil
}

// Close stops future report emissions.
func (r *Reporter) Close() error {
	r.closed.Store(true)
	return nil
}

// reportTask is an implementation of taskman.Task that emits one summary.
type reportTask struct {
	reporter *Reporter
}

// Execute emits a summary line of the tracer's results so far.
func (t *reportTask) Execute() error {
	if t.reporter.closed.Load() {
		return nil
	}

	snap := t.reporter.tracer.Results()
	line := fmt.Sprintf("%s: %d calls in %s",
		t.reporter.tracer.Target(), snap.TotalCalls, formatDuration(snap.TotalTime))
	t.reporter.out.Write(SeverityInfo, line)
	return nil
}
