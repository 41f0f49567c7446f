package calltrace

import (
	"errors"
	"time"
)

// sinkLine is one captured output line.
type sinkLine struct {
	severity Severity
	line     string
}

// chanSink collects output lines for assertions.
type chanSink struct {
	lines chan sinkLine
}

func newChanSink() *chanSink {
	return &chanSink{lines: make(chan sinkLine, 32)}
}

func (s *chanSink) Write(severity Severity, line string) {
	s.lines <- sinkLine{severity: severity, line: line}
}

// TestService is the target used throughout the tests.
type TestService struct {
	tracer *Tracer

	innerCalls int
}

func (s *TestService) Greet(name string) string {
	return "Hello, " + name + "!"
}

func (s *TestService) Fail() error {
	return errors.New("Intentional failure")
}

func (s *TestService) Explode() {
	panic("boom")
}

// Outer invokes Inner through the tracer, on the same goroutine.
func (s *TestService) Outer() string {
	out := s.tracer.Invoke("Inner")
	return out[0].(string)
}

func (s *TestService) Inner() string {
	s.innerCalls++
	return "inner"
}

func (s *TestService) Sum(ns ...int) int {
	total := 0
	for _, n := range ns {
		total += n
	}
	return total
}

func (s *TestService) Apply(f func(int) int, v int) int {
	return f(v)
}

func (s *TestService) Work() {
	time.Sleep(time.Microsecond)
}

func (s *TestService) hidden() string {
	return "hidden"
}
