package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Riyakuila/Chat-Flow/internal/core/contracts"
	"github.com/Riyakuila/Chat-Flow/internal/core/domain"
	"github.com/Riyakuila/Chat-Flow/pkg/logging"
)

// RuntimeClient is the live handle of one WebSocket connection. Sends are
// queued on a bounded outbox drained by a single writer goroutine; a peer
// that cannot keep up is disconnected rather than allowed to block senders.
type RuntimeClient struct {
	id       string
	userID   string
	ws       *WebSocket
	log      *slog.Logger
	out      chan []byte
	done     chan struct{}
	once     sync.Once
	lastSeen atomic.Int64
	pongWait time.Duration
	now      func() time.Time
}

var _ contracts.Handle = (*RuntimeClient)(nil)

func NewClient(log *slog.Logger, ws *WebSocket, userID string) *RuntimeClient {
	c := &RuntimeClient{
		id:       uuid.NewString(),
		userID:   userID,
		ws:       ws,
		out:      make(chan []byte, ws.opts.OutboxSize),
		done:     make(chan struct{}),
		pongWait: ws.opts.PongWait,
		now:      time.Now,
	}
	c.log = log.With(logging.User(userID), logging.Handle(c.id))
	c.touch()
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string     { return c.id }
func (c *RuntimeClient) UserID() string { return c.userID }

func (c *RuntimeClient) Send(_ context.Context, data []byte) error {
	select {
	case <-c.done:
		return domain.ErrConnectionClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return domain.ErrConnectionClosed
	default:
		c.log.Warn("ws client - send - outbox full, dropping slow consumer", "outbox", cap(c.out))
		c.Close()
		return fmt.Errorf("%w: outbox full", domain.ErrConnectionClosed)
	}
}

// Alive is false once closed or when nothing, pongs included, has been
// heard from the peer within the pong wait.
func (c *RuntimeClient) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	last := time.Unix(0, c.lastSeen.Load())
	return c.now().Sub(last) <= c.pongWait
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// ReadLoop blocks until the connection ends, handing each frame to onMsg
// in arrival order.
func (c *RuntimeClient) ReadLoop(onMsg func([]byte)) {
	c.ws.ReadLoop(c.log, onMsg, c.touch)
}

func (c *RuntimeClient) touch() {
	c.lastSeen.Store(c.now().UnixNano())
}

func (c *RuntimeClient) writeLoop() {
	ticker := time.NewTicker(c.ws.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				c.log.Debug("ws client - write loop - write failed", logging.Err(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WritePing(); err != nil {
				c.log.Debug("ws client - write loop - ping failed", logging.Err(err))
				return
			}
		}
	}
}
