// Package ws is the websocket transport of the gateway. It adapts one
// gorilla/websocket connection into the outbound sink the runtime fans
// out to, and feeds decoded inbound frames to the event router.
package ws

import (
	"log/slog"
	"sync/atomic"
	"time"

	"chat-gateway/domain/event"
	apperrors "chat-gateway/errors"

	"github.com/gorilla/websocket"
)

// Options bounds one connection's transport behaviour.
type Options struct {
	SendQueueSize  int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (o Options) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

// Client owns the read and write pumps of one websocket connection and
// implements contract.EventSink. Outbound frames go through a bounded
// queue drained by a dedicated write pump, so one slow or blocked peer
// only ever degrades itself: Push never blocks and reports a full queue
// or a closed connection as an error.
type Client struct {
	log    *slog.Logger
	conn   *websocket.Conn
	opts   Options
	send   chan []byte
	closed atomic.Bool
	quit   chan struct{}
}

func NewClient(log *slog.Logger, conn *websocket.Conn, opts Options) *Client {
	return &Client{
		log:  log,
		conn: conn,
		opts: opts,
		send: make(chan []byte, opts.SendQueueSize),
		quit: make(chan struct{}),
	}
}

// Push enqueues one frame for delivery. Frames pushed after Close are
// dropped with ErrConnectionClosed; a full queue yields ErrQueueFull and
// the frame is dropped, which the router treats as the connection being
// gone.
func (c *Client) Push(frame []byte) error {
	if c.closed.Load() {
		return apperrors.ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return apperrors.ErrQueueFull
	}
}

// Close stops delivery. Idempotent; the write pump sends a close frame
// and releases the underlying connection.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.quit)
	}
}

// WritePump drains the outbound queue onto the websocket, pinging the
// peer to keep the connection alive. Frames are written in the order
// they were pushed. Runs in its own goroutine, one per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump decodes inbound frames and hands them to the dispatch
// callback until the peer goes away. It blocks the calling goroutine;
// the caller runs the disconnect cleanup when it returns.
func (c *Client) ReadPump(dispatch func(env event.Envelope)) {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Websocket read failed", "error", err)
			}
			return
		}
		env, err := event.Decode(data)
		if err != nil || env.Event == "" {
			c.log.Debug("Dropping malformed frame", "error", err)
			continue
		}
		dispatch(env)
	}
}
