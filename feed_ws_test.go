package calltrace

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedNotification mirrors the JSON-RPC notification frame for decoding.
type feedNotification struct {
	JSONRPC string       `json:"jsonrpc"`
	Method  string       `json:"method"`
	Params  []CallRecord `json:"params"`
}

func TestTraceFeed_BroadcastsRecords(t *testing.T) {
	feed := NewTraceFeed()
	defer func() { _ = feed.Close() }()

	server := httptest.NewServer(feed)
	defer server.Close()

	wsURL := "ws" + server.URL[4:]
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return feed.Clients() == 1
	}, time.Second, 10*time.Millisecond)

	rec := CallRecord{
		QualifiedName: "Svc#op",
		ExecutionTime: 2 * time.Millisecond,
		Status:        StatusSuccess,
		Timestamp:     time.Now(),
	}
	feed.ObserveCall(rec)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var note feedNotification
	require.NoError(t, sonic.Unmarshal(payload, &note))
	assert.Equal(t, "2.0", note.JSONRPC)
	assert.Equal(t, FeedMethod, note.Method)
	require.Len(t, note.Params, 1)
	assert.Equal(t, "Svc#op", note.Params[0].QualifiedName)
	assert.Equal(t, 2*time.Millisecond, note.Params[0].ExecutionTime)
	assert.Equal(t, StatusSuccess, note.Params[0].Status)
}

func TestTraceFeed_AsTracerSink(t *testing.T) {
	feed := NewTraceFeed()
	defer func() { _ = feed.Close() }()

	server := httptest.NewServer(feed)
	defer server.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return feed.Clients() == 1
	}, time.Second, 10*time.Millisecond)

	tracer, err := New(&TestService{}, WithThreshold(0), WithCallSink(feed))
	require.NoError(t, err)
	tracer.Trace("Greet")
	tracer.Invoke("Greet", "World")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var note feedNotification
	require.NoError(t, sonic.Unmarshal(payload, &note))
	require.Len(t, note.Params, 1)
	assert.Equal(t, "TestService#Greet", note.Params[0].QualifiedName)
}

func TestTraceFeed_Close(t *testing.T) {
	feed := NewTraceFeed()

	server := httptest.NewServer(feed)
	defer server.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool {
		return feed.Clients() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, feed.Close())
	assert.Zero(t, feed.Clients())

	// Observing after close must not block or panic.
	feed.ObserveCall(CallRecord{QualifiedName: "Svc#op"})

	// Close is idempotent.
	require.NoError(t, feed.Close())
}
