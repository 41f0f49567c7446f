// Package calltrace provides selective runtime instrumentation: it wraps
// named operations on a target, measures the wall-clock duration of every
// call, records success or error outcomes, and exposes consistent snapshots
// of the accumulated results, without requiring a tracing framework.
//
// Go has no runtime method redefinition, so wrapping installs an entry in a
// registration table that call sites invoke through (Tracer.Invoke), or the
// caller hands the callable over explicitly (Tracer.Time, Tracer.TraceFunc).
// Either route shares the same timing wrapper, reentrancy guard, and store.
package calltrace

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Tracer instruments operations on a single target and records their
// invocations. Registration (Trace, TraceFunc) is a setup-time operation;
// invocation and result reads are safe for concurrent use.
type Tracer struct {
	id    string
	label string

	recorder    *Recorder
	interceptor *interceptor
}

// Option is a functional option for the Tracer.
type Option func(*tracerOptions)

type tracerOptions struct {
	cfg    Config
	label  string
	logger zerolog.Logger
	out    OutputSink
	sink   CallSink
}

// WithThreshold configures the minimum execution time for a call to be
// recorded. Calls that complete faster are discarded.
func WithThreshold(d time.Duration) Option {
	return func(o *tracerOptions) { o.cfg.Threshold = d }
}

// WithAutoOutput configures the Tracer to emit one formatted line per
// recorded call.
func WithAutoOutput() Option {
	return func(o *tracerOptions) { o.cfg.AutoOutput = true }
}

// WithSink configures the destination for auto-output lines.
func WithSink(s OutputSink) Option {
	return func(o *tracerOptions) { o.out = s }
}

// WithCallSink configures a structured observer that is notified of every
// recorded call, best-effort.
func WithCallSink(s CallSink) Option {
	return func(o *tracerOptions) { o.sink = s }
}

// WithLogger configures the logger backing the default output sink.
func WithLogger(l zerolog.Logger) Option {
	return func(o *tracerOptions) { o.logger = l }
}

// WithLabel overrides the target type label used in qualified names.
func WithLabel(label string) Option {
	return func(o *tracerOptions) { o.label = label }
}

// New creates a Tracer for the given target. The target may be any value
// with methods; the label defaults to its type name.
func New(target any, opts ...Option) (*Tracer, error) {
	if target == nil {
		return nil, errors.New("target is nil")
	}

	options := &tracerOptions{
		cfg:    Config{Threshold: defaultThreshold},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	label := options.label
	if label == "" {
		label = typeLabel(target)
	}
	out := options.out
	if out == nil {
		out = logSink{logger: options.logger}
	}

	rec := NewRecorder(label, options.cfg, out, options.sink)
	return &Tracer{
		id:          xid.New().String(),
		label:       label,
		recorder:    rec,
		interceptor: newInterceptor(target, rec),
	}, nil
}

// Trace wraps each named exported method on the target. Names that do not
// resolve to a method, and names already wrapped, are silently skipped;
// wrapping the same name twice leaves exactly one wrapper installed.
func (t *Tracer) Trace(names ...string) {
	for _, name := range names {
		t.interceptor.wrap(name)
	}
}

// TraceFunc wraps an explicit callable under the given name. This is the
// route for unexported methods: only code that can reference the method
// value can register it, so Go's visibility rules stay intact. Registering
// an already-wrapped name is a no-op.
func (t *Tracer) TraceFunc(name string, fn any) error {
	return t.interceptor.wrapFunc(name, fn)
}

// Traced reports whether the named operation has a wrapper installed.
func (t *Tracer) Traced(name string) bool {
	return t.interceptor.isWrapped(name)
}

// Invoke calls the named operation through the tracer. Wrapped operations
// are timed and recorded; operations that exist on the target but were
// never wrapped run untimed with identical behavior. Arguments, including
// variadic tails and func-typed values, are forwarded unmodified, and any
// panic from the operation propagates to the caller unchanged.
func (t *Tracer) Invoke(name string, args ...any) []any {
	return t.interceptor.invoke(name, args)
}

// Time runs fn under the tracer's reentrancy guard, recording its duration
// and outcome under the given operation name. The error is returned to the
// caller unchanged.
func (t *Tracer) Time(name string, fn func() error) error {
	return t.interceptor.timeFunc(name, fn)
}

// Results returns a consistent snapshot of the calls recorded so far.
func (t *Tracer) Results() ResultSnapshot {
	return t.recorder.Results()
}

// Target returns the label identifying the traced target.
func (t *Tracer) Target() string {
	return t.label
}

// ID returns the tracer's unique token.
func (t *Tracer) ID() string {
	return t.id
}

// typeLabel derives a qualified-name label from the target's type.
func typeLabel(target any) string {
	rt := reflect.TypeOf(target)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Name() == "" {
		return rt.String()
	}
	return rt.Name()
}
