package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

// Options are the transport timings of one connection.
type Options struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	OutboxSize   int
	ReadLimit    int64
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 5 * time.Second
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = 3 * o.PingInterval
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 256
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 512 * 1024
	}
	return o
}

// WebSocket owns the gorilla connection. Data frames and pings are written
// only from the client's write loop; close frames may come from anywhere.
type WebSocket struct {
	*websocket.Conn
	opts      Options
	closeOnce sync.Once
}

func NewWebSocket(conn *websocket.Conn, opts Options) *WebSocket {
	return &WebSocket{Conn: conn, opts: opts.withDefaults()}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.opts.WriteWait))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	return w.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.opts.WriteWait))
}

// ReadLoop delivers every non-empty text frame to onMsg, one at a time,
// until the peer goes away or the read deadline lapses. onPong is called
// for every pong so the caller can track liveness.
func (w *WebSocket) ReadLoop(log *slog.Logger, onMsg func([]byte), onPong func()) {
	w.Conn.SetReadLimit(w.opts.ReadLimit)
	_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	w.Conn.SetPongHandler(func(string) error {
		onPong()
		return w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	})

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				log.Warn("ws conn - read loop - frame exceeds read limit", "limit", w.opts.ReadLimit)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
				log.Warn("ws conn - read loop - unexpected close", logging.Err(err))
			default:
				log.Debug("ws conn - read loop - closed", logging.Err(err))
			}
			return
		}
		// any inbound traffic proves the peer is there
		onPong()
		_ = w.Conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
		if len(data) > 0 {
			onMsg(data)
		}
	}
}

// Close sends a best effort close frame and tears the socket down.
func (w *WebSocket) Close() {
	w.closeOnce.Do(func() {
		_ = w.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = w.Conn.Close()
	})
}
