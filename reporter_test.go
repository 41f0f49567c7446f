package calltrace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReporter_InvalidArguments(t *testing.T) {
	tracer, err := New(&TestService{})
	require.NoError(t, err)

	_, err = NewReporter(nil, time.Second, nil)
	require.Error(t, err)

	_, err = NewReporter(tracer, 0, nil)
	require.Error(t, err)

	_, err = NewReporter(tracer, -time.Second, nil)
	require.Error(t, err)
}

func TestReporter_EmitsSummaries(t *testing.T) {
	tracer, err := New(&TestService{}, WithThreshold(0))
	require.NoError(t, err)
	tracer.Trace("Greet")
	tracer.Invoke("Greet", "World")

	sink := newChanSink()
	reporter, err := NewReporter(tracer, 50*time.Millisecond, sink)
	require.NoError(t, err)
	defer func() { _ = reporter.Close() }()

	select {
	case got := <-sink.lines:
		assert.Equal(t, SeverityInfo, got.severity)
		assert.Contains(t, got.line, "TestService: 1 calls in ")
	case <-time.After(3 * time.Second):
		t.Fatal("no summary line emitted")
	}
}

func TestReporter_CloseStopsEmissions(t *testing.T) {
	tracer, err := New(&TestService{}, WithThreshold(0))
	require.NoError(t, err)

	sink := newChanSink()
	reporter, err := NewReporter(tracer, 50*time.Millisecond, sink)
	require.NoError(t, err)

	// Wait for at least one emission, then stop.
	select {
	case <-sink.lines:
	case <-time.After(3 * time.Second):
		t.Fatal("no summary line emitted before close")
	}
	require.NoError(t, reporter.Close())

	// Drain anything already in flight, then expect silence.
	deadline := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case <-sink.lines:
		case <-deadline:
			break drain
		}
	}

	select {
	case got := <-sink.lines:
		t.Fatalf("summary emitted after close: %q", got.line)
	case <-time.After(300 * time.Millisecond):
	}
}
