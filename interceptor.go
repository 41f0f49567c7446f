package calltrace

import (
	"fmt"
	"reflect"
	"sync"
	"time"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// interceptor owns the registration table mapping operation names to their
// original callables, and the per-goroutine reentrancy flags for one tracer.
//
// Wrapping is a setup-time operation: concurrent wrap calls for the same
// name require external synchronization. Invocation through the table is
// safe from any number of goroutines.
type interceptor struct {
	target  reflect.Value
	wrapped map[string]reflect.Value
	rec     *Recorder

	// reentry holds the IDs of goroutines currently inside the timing
	// wrapper. Each tracer has its own flag namespace, so two tracers on
	// the same goroutine never suppress each other's timing.
	reentry sync.Map
}

func newInterceptor(target any, rec *Recorder) *interceptor {
	return &interceptor{
		target:  reflect.ValueOf(target),
		wrapped: make(map[string]reflect.Value),
		rec:     rec,
	}
}

// wrap installs a timing wrapper for the named exported method. Names that
// do not resolve to a method, and names already wrapped, are silent no-ops.
func (i *interceptor) wrap(name string) {
	if _, ok := i.wrapped[name]; ok {
		return
	}
	m := i.target.MethodByName(name)
	if !m.IsValid() {
		return
	}
	i.wrapped[name] = m
}

// wrapFunc installs a timing wrapper around an explicit callable. Names
// already wrapped are silent no-ops; a non-func value is a configuration
// error surfaced at registration time.
func (i *interceptor) wrapFunc(name string, fn any) error {
	if _, ok := i.wrapped[name]; ok {
		return nil
	}
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return fmt.Errorf("operation %q: %T is not a func", name, fn)
	}
	i.wrapped[name] = v
	return nil
}

// isWrapped reports whether the named operation has a wrapper installed.
func (i *interceptor) isWrapped(name string) bool {
	_, ok := i.wrapped[name]
	return ok
}

// invoke calls the named operation through the registration table. Wrapped
// operations run inside the timing wrapper; names that were never wrapped
// resolve on the target and run untimed, so untraced behavior is identical.
// Panics if the name resolves to nothing at all.
func (i *interceptor) invoke(name string, args []any) []any {
	fn, ok := i.wrapped[name]
	if !ok {
		m := i.target.MethodByName(name)
		if !m.IsValid() {
			panic(fmt.Sprintf("calltrace: no operation %q on %s", name, i.target.Type()))
		}
		return fromValues(m.Call(toValues(m.Type(), args)))
	}
	return fromValues(i.call(name, fn, toValues(fn.Type(), args)))
}

// call runs one wrapped operation. The first traced call on a goroutine is
// timed and recorded; nested traced calls on the same goroutine pass
// through to the original callable untouched. The flag is cleared and the
// outcome recorded even when the callable panics, and the panic continues
// to the caller unchanged.
func (i *interceptor) call(name string, fn reflect.Value, in []reflect.Value) []reflect.Value {
	gid := goroutineID()
	if _, nested := i.reentry.LoadOrStore(gid, struct{}{}); nested {
		return fn.Call(in)
	}

	start := time.Now()
	recorded := false
	defer func() {
		elapsed := time.Since(start)
		i.reentry.Delete(gid)
		if !recorded {
			if r := recover(); r != nil {
				i.rec.RecordCall(name, elapsed, fmt.Errorf("panic: %v", r))
				panic(r)
			}
		}
	}()

	out := fn.Call(in)
	elapsed := time.Since(start)
	recorded = true
	i.rec.RecordCall(name, elapsed, trailingError(out))
	return out
}

// timeFunc runs fn under the same reentrancy guard and recording path as a
// wrapped operation, for call sites that hold the callable themselves.
func (i *interceptor) timeFunc(name string, fn func() error) error {
	gid := goroutineID()
	if _, nested := i.reentry.LoadOrStore(gid, struct{}{}); nested {
		return fn()
	}

	start := time.Now()
	recorded := false
	defer func() {
		elapsed := time.Since(start)
		i.reentry.Delete(gid)
		if !recorded {
			if r := recover(); r != nil {
				i.rec.RecordCall(name, elapsed, fmt.Errorf("panic: %v", r))
				panic(r)
			}
		}
	}()

	err := fn()
	elapsed := time.Since(start)
	recorded = true
	i.rec.RecordCall(name, elapsed, err)
	return err
}

// toValues converts invocation arguments to reflect values, typing nil
// arguments after the callable's parameter types.
func toValues(t reflect.Type, args []any) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for k, arg := range args {
		if arg == nil {
			in[k] = reflect.Zero(paramType(t, k))
			continue
		}
		in[k] = reflect.ValueOf(arg)
	}
	return in
}

// paramType returns the type of the k:th parameter, unrolling variadics.
func paramType(t reflect.Type, k int) reflect.Type {
	if t.IsVariadic() && k >= t.NumIn()-1 {
		return t.In(t.NumIn() - 1).Elem()
	}
	return t.In(k)
}

func fromValues(out []reflect.Value) []any {
	res := make([]any, len(out))
	for k, v := range out {
		res[k] = v.Interface()
	}
	return res
}

// trailingError returns the callable's error when its last return value is
// a non-nil error, and nil otherwise.
func trailingError(out []reflect.Value) error {
	if len(out) == 0 {
		return nil
	}
	last := out[len(out)-1]
	if last.Kind() != reflect.Interface || !last.Type().Implements(errType) {
		return nil
	}
	if last.IsNil() {
		return nil
	}
	return last.Interface().(error)
}
