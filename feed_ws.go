package calltrace

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/jkbrsn/jsonrpc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// feedWriteTimeout bounds how long a broadcast waits on a single subscriber.
const feedWriteTimeout = 3 * time.Second

// FeedMethod is the JSON-RPC method name of feed notifications.
const FeedMethod = "calltrace.call"

// TraceFeed streams recorded calls to WebSocket subscribers, each call
// framed as a JSON-RPC notification. It implements CallSink and
// http.Handler: mount it on a server and pass it to WithCallSink.
//
// Delivery is best-effort. Records are queued to a background pump so the
// recording path never blocks on the network, and subscribers that fail a
// write are dropped.
type TraceFeed struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	clients   atomic.Int64
	upgrader  websocket.Upgrader
	sendChan  chan CallRecord
	doneChan  chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// NewTraceFeed creates and starts a TraceFeed.
func NewTraceFeed() *TraceFeed {
	f := &TraceFeed{
		conns:    make(map[*websocket.Conn]struct{}),
		sendChan: make(chan CallRecord, 64),
		doneChan: make(chan struct{}),
		logger:   log.Logger,
	}
	go f.broadcastPump()
	return f
}

// ObserveCall queues a record for broadcast. When the queue is full the
// record is dropped; the caller is never held up.
func (f *TraceFeed) ObserveCall(rec CallRecord) {
	select {
	case <-f.doneChan:
	case f.sendChan <- rec:
	default:
	}
}

// ServeHTTP upgrades the request to a WebSocket subscription.
func (f *TraceFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Debug().Err(err).Msg("trace feed upgrade failed")
		return
	}

	f.mu.Lock()
	f.conns[conn] = struct{}{}
	f.mu.Unlock()
	f.clients.Inc()
}

// Clients returns the number of connected subscribers.
func (f *TraceFeed) Clients() int64 {
	return f.clients.Load()
}

// Close stops the pump and closes all subscriber connections.
func (f *TraceFeed) Close() error {
	f.closeOnce.Do(func() {
		close(f.doneChan)

		f.mu.Lock()
		defer f.mu.Unlock()
		for conn := range f.conns {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			deadline := time.Now().Add(feedWriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			_ = conn.Close()
			delete(f.conns, conn)
			f.clients.Dec()
		}
	})
	return nil
}

// broadcastPump drains the queue and fans records out to subscribers.
func (f *TraceFeed) broadcastPump() {
	for {
		select {
		case rec := <-f.sendChan:
			payload, err := notificationPayload(rec)
			if err != nil {
				f.logger.Error().Err(err).Msg("trace feed failed to encode record")
				continue
			}
			f.broadcast(payload)
		case <-f.doneChan:
			return
		}
	}
}

// broadcast writes the payload to every subscriber, dropping any that fail.
// Note: for concurrency safety, connection writes happen exclusively here.
func (f *TraceFeed) broadcast(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for conn := range f.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.logger.Debug().Err(err).Msg("dropping trace feed subscriber")
			}
			_ = conn.Close()
			delete(f.conns, conn)
			f.clients.Dec()
		}
	}
}

// notificationPayload frames the record as a JSON-RPC notification.
func notificationPayload(rec CallRecord) ([]byte, error) {
	req := &jsonrpc.Request{
		JSONRPC: "2.0",
		Method:  FeedMethod,
		Params:  []any{rec},
	}
	return sonic.Marshal(req)
}
