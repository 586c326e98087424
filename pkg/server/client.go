package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codesync-dev/codesync/pkg/protocol"
	"github.com/codesync-dev/codesync/pkg/session"
)

// client wraps one WebSocket connection. It owns a read loop that decodes and
// dispatches inbound frames and a write loop that drains the bounded send
// queue, so no other goroutine ever touches the connection directly.
type client struct {
	id     string
	conn   *websocket.Conn
	server *Server
	logger *slog.Logger

	send   chan []byte
	done   chan struct{}
	closed atomic.Bool

	mu   sync.Mutex
	sess *session.Session
}

func newClient(s *Server, conn *websocket.Conn) *client {
	id := uuid.NewString()
	return &client{
		id:     id,
		conn:   conn,
		server: s,
		logger: s.logger.With("conn_id", id),
		send:   make(chan []byte, s.config.SendQueueSize),
		done:   make(chan struct{}),
	}
}

// Enqueue implements session.Sink. It is called with the owning session's
// mutex held and must not block: when the queue is full the frame is dropped
// and counted, leaving the slow connection to fall behind on its own.
func (c *client) Enqueue(frame []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.server.metrics.droppedFrames.Inc()
		c.logger.Warn("send queue full, dropping frame")
		return false
	}
}

func (c *client) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(c.server.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			c.sendError(protocol.ErrCodeBadMessage, err.Error())
			continue
		}
		c.server.handleMessage(c, msg)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.server.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Drain frames already queued before saying goodbye.
			for {
				select {
				case frame := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
					if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
					c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

// close tears the connection down exactly once: the session membership is
// released first so the departure broadcast reaches the survivors, then the
// write loop is signaled to flush and exit.
func (c *client) close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.server.disconnect(c)
	close(c.done)
}

func (c *client) sendError(code, message string) {
	frame, err := protocol.Encode(protocol.NewError(code, message))
	if err != nil {
		c.logger.Error("encode error frame failed", "error", err)
		return
	}
	c.Enqueue(frame)
}

func (c *client) session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *client) setSession(s *session.Session) {
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()
}

// takeSession clears and returns the joined session, if any.
func (c *client) takeSession() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sess
	c.sess = nil
	return s
}
