package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/codesync-dev/codesync/pkg/protocol"
	"github.com/codesync-dev/codesync/pkg/sandbox"
	"github.com/codesync-dev/codesync/pkg/session"
)

// Server is the HTTP/WebSocket server for collaborative coding sessions.
type Server struct {
	store    *session.Store
	executor *sandbox.Executor
	config   *ServerConfig
	upgrader websocket.Upgrader
	handler  http.Handler
	metrics  *metrics
	logger   *slog.Logger

	clientsMu sync.Mutex
	clients   map[string]*client

	httpServer *http.Server
}

// New creates a Server backed by the given session store and executor.
func New(store *session.Store, executor *sandbox.Executor, config *ServerConfig, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config.applyDefaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = session.NewStore("", logger)
	}
	if executor == nil {
		executor = sandbox.New(nil, logger)
	}

	s := &Server{
		store:    store,
		executor: executor,
		config:   config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		metrics: newMetrics(config.Registry),
		logger:  logger.With("component", "server"),
		clients: make(map[string]*client),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the server's HTTP handler for mounting in external routers
// or test servers.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Store returns the session store.
func (s *Server) Store() *session.Store {
	return s.store
}

// HandleWebSocket upgrades the request and runs the connection's loops.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(s, conn)

	s.clientsMu.Lock()
	s.clients[c.id] = c
	total := len(s.clients)
	s.clientsMu.Unlock()

	s.metrics.activeConnections.Set(float64(total))
	s.logger.Info("client connected",
		"conn_id", c.id,
		"remote_addr", r.RemoteAddr,
		"active_connections", total)

	go c.writeLoop()
	c.readLoop()
}

// handleMessage dispatches one decoded client frame.
func (s *Server) handleMessage(c *client, msg *protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypeJoin:
		s.handleJoin(c, msg)
	case protocol.TypeEdit:
		s.handleEdit(c, msg)
	case protocol.TypeCursor:
		s.handleCursor(c, msg)
	case protocol.TypeLanguage:
		s.handleLanguage(c, msg)
	case protocol.TypeLeave:
		s.leaveSession(c)
	}
}

// handleJoin resolves (or mints) the session identifier and registers the
// connection. A join can race lifecycle reclamation: if the session closes
// between the store lookup and the registration, the lookup is retried and
// lands on a fresh session under the same identifier.
func (s *Server) handleJoin(c *client, msg *protocol.ClientMessage) {
	if c.session() != nil {
		c.sendError(protocol.ErrCodeAlreadyJoined, "already joined a session")
		return
	}

	id := msg.SessionID
	if id == "" {
		id = s.store.Mint()
	}

	for {
		sess := s.store.GetOrCreate(id)
		// The snapshot frame is built and enqueued inside Join, under the
		// session lock, so no racing broadcast can precede it.
		self, _, err := sess.Join(c.id, c, func(p protocol.Participant, snap session.Snapshot) []byte {
			frame, err := protocol.Encode(protocol.NewSnapshot(snap.ID, snap.Doc, snap.Language, snap.Participants, p))
			if err != nil {
				s.logger.Error("encode snapshot failed", "error", err)
				return nil
			}
			return frame
		})
		if err != nil {
			continue
		}
		c.setSession(sess)

		// The write loop's teardown can complete between the registration
		// above and setSession, in which case its disconnect found no
		// session to release. Re-check and undo the registration so a dead
		// connection never lingers in the registry.
		if c.closed.Load() {
			s.leaveSession(c)
			return
		}
		s.metrics.activeSessions.Set(float64(s.store.Count()))

		joined, err := protocol.Encode(protocol.NewParticipantJoined(self))
		if err == nil {
			sess.BroadcastOthers(c.id, joined)
			s.metrics.broadcastsTotal.WithLabelValues(protocol.TypeParticipantJoined).Inc()
		}

		s.logger.Info("participant joined",
			"conn_id", c.id,
			"session_id", sess.ID,
			"name", self.Name,
			"participants", sess.Count())
		return
	}
}

func (s *Server) handleEdit(c *client, msg *protocol.ClientMessage) {
	sess := c.session()
	if sess == nil {
		c.sendError(protocol.ErrCodeNotJoined, "join a session before editing")
		return
	}

	frame, err := protocol.Encode(protocol.NewDocUpdate(*msg.Text, msg.Changeset, c.id))
	if err != nil {
		s.logger.Error("encode doc update failed", "error", err)
		return
	}
	if sess.SetDocBroadcast(c.id, *msg.Text, frame) {
		s.metrics.broadcastsTotal.WithLabelValues(protocol.TypeDocUpdate).Inc()
	}
}

func (s *Server) handleCursor(c *client, msg *protocol.ClientMessage) {
	sess := c.session()
	if sess == nil {
		c.sendError(protocol.ErrCodeNotJoined, "join a session before moving the cursor")
		return
	}

	frame, err := protocol.Encode(protocol.NewCursorUpdate(c.id, *msg.Cursor, msg.Selection))
	if err != nil {
		s.logger.Error("encode cursor update failed", "error", err)
		return
	}
	if sess.CursorBroadcast(c.id, *msg.Cursor, msg.Selection, frame) {
		s.metrics.broadcastsTotal.WithLabelValues(protocol.TypeCursorUpdate).Inc()
	}
}

func (s *Server) handleLanguage(c *client, msg *protocol.ClientMessage) {
	sess := c.session()
	if sess == nil {
		c.sendError(protocol.ErrCodeNotJoined, "join a session before changing the language")
		return
	}

	frame, err := protocol.Encode(protocol.NewLanguageUpdate(msg.Language, c.id))
	if err != nil {
		s.logger.Error("encode language update failed", "error", err)
		return
	}
	if sess.SetLanguageBroadcast(c.id, msg.Language, frame) {
		s.metrics.broadcastsTotal.WithLabelValues(protocol.TypeLanguageUpdate).Inc()
	}
}

// leaveSession releases the client's session membership, announcing the
// departure and reclaiming the session when it empties. Safe to call for
// clients that never joined.
func (s *Server) leaveSession(c *client) {
	sess := c.takeSession()
	if sess == nil {
		return
	}

	frame, err := protocol.Encode(protocol.NewParticipantLeft(c.id))
	if err != nil {
		s.logger.Error("encode participant left failed", "error", err)
		frame = nil
	}

	removed, empty := sess.Leave(c.id, frame)
	if removed {
		s.metrics.broadcastsTotal.WithLabelValues(protocol.TypeParticipantLeft).Inc()
	}
	if empty {
		s.store.RemoveIfEmpty(sess.ID)
	}
	s.metrics.activeSessions.Set(float64(s.store.Count()))

	s.logger.Info("participant left",
		"conn_id", c.id,
		"session_id", sess.ID,
		"session_reclaimed", empty)
}

// disconnect is the common teardown path for closed connections.
func (s *Server) disconnect(c *client) {
	s.leaveSession(c)

	s.clientsMu.Lock()
	delete(s.clients, c.id)
	total := len(s.clients)
	s.clientsMu.Unlock()

	s.metrics.activeConnections.Set(float64(total))
	s.logger.Info("client disconnected",
		"conn_id", c.id,
		"active_connections", total)
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server: open connections are closed,
// which releases their session memberships, then the HTTP listener drains.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.clientsMu.Lock()
	open := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		open = append(open, c)
	}
	s.clientsMu.Unlock()

	for _, c := range open {
		c.close()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
