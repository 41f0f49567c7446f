package calltrace

import (
	"io"
	"time"

	"github.com/bytedance/sonic"
)

// CallStatus is the outcome of a traced invocation.
type CallStatus string

const (
	// StatusSuccess marks a call that returned without error.
	StatusSuccess CallStatus = "success"
	// StatusError marks a call that returned an error or panicked.
	StatusError CallStatus = "error"
)

// CallRecord is one completed, qualifying invocation of a traced operation.
// Records are immutable once stored; they are retained for the lifetime of
// the owning recorder.
type CallRecord struct {
	// QualifiedName identifies the operation as "<Type>#<operation>".
	QualifiedName string `json:"qualified_name"`
	// ExecutionTime is the wall-clock duration of the call.
	ExecutionTime time.Duration `json:"execution_time"`
	// Status is the call's outcome.
	Status CallStatus `json:"status"`
	// Error holds the captured failure description. Empty on success.
	Error string `json:"error,omitempty"`
	// Timestamp is the completion time of the call, not its start time.
	Timestamp time.Time `json:"timestamp"`
}

// ResultSnapshot is a consistent, point-in-time view of all recorded calls.
// Calls appear in recording order. TotalTime is the exact sum of the
// execution times of the entries in Calls.
type ResultSnapshot struct {
	TotalCalls int           `json:"total_calls"`
	TotalTime  time.Duration `json:"total_time"`
	Calls      []CallRecord  `json:"calls"`
}

// JSON encodes the snapshot for handing off to external tooling.
func (s ResultSnapshot) JSON() ([]byte, error) {
	return sonic.Marshal(s)
}

// WriteJSON writes the encoded snapshot to w.
func (s ResultSnapshot) WriteJSON(w io.Writer) error {
	data, err := sonic.Marshal(s)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
