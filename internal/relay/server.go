// Package relay implements the room-scoped message relay: per-connection
// lifecycle, the registration handshake, direct-message routing, and the
// whitelist commands, all operating against one shared session registry.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Ruz-on-git/FiguraJustCommunicateServer/internal/protocol"
	"github.com/Ruz-on-git/FiguraJustCommunicateServer/internal/registry"
)

// DefaultRegisterTimeout is how long a new connection has to send its
// register message before being discarded.
const DefaultRegisterTimeout = 10 * time.Second

// CheckOriginFn validates the origin of a WebSocket upgrade request.
type CheckOriginFn = func(r *http.Request) bool

// AllOrigins allows every origin. Intended for development and tests.
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// Config configures a relay server.
type Config struct {
	// Addr is the network address to listen on (e.g. ":8080").
	Addr string
	// CheckOrigin validates upgrade origins. Defaults to AllOrigins.
	CheckOrigin CheckOriginFn
	// RegisterTimeout bounds the registration handshake wait.
	// Defaults to DefaultRegisterTimeout.
	RegisterTimeout time.Duration
}

// Server is the relay server. It owns the session registry, the metrics
// counters, and the HTTP listener the WebSocket upgrades run over.
type Server struct {
	cfg      Config
	reg      *registry.Registry
	metrics  *Metrics
	server   *http.Server
	upgrader websocket.Upgrader
	clients  sync.Map // conn id -> *client, registered or not

	mu      sync.Mutex
	running bool
}

// New creates a relay server with the given configuration.
func New(cfg Config) *Server {
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = AllOrigins()
	}
	if cfg.RegisterTimeout <= 0 {
		cfg.RegisterTimeout = DefaultRegisterTimeout
	}
	return &Server{
		cfg:     cfg,
		reg:     registry.New(),
		metrics: NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Registry exposes the session registry.
func (s *Server) Registry() *registry.Registry {
	return s.reg
}

// Metrics exposes the server's runtime counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the server's HTTP handler: the health and stats endpoints
// plus the WebSocket endpoint on every other path, where the path is the
// room name.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/", s.handleWebSocket)
	return mux
}

// Start starts the server and begins accepting connections. It returns once
// the listener is up, or with the startup error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.server = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully stops the server, closing every live connection.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.clients.Range(func(key, value any) bool {
		if c, ok := value.(*client); ok {
			c.Close()
		}
		return true
	})

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleWebSocket upgrades the request and hands the connection to its own
// lifecycle goroutine.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	room := strings.Trim(r.URL.Path, "/")

	c := newClient(conn, r.RemoteAddr)
	s.metrics.TotalConnections.Add(1)
	s.clients.Store(c.ID(), c)
	slog.Debug("client connected", "conn_id", c.ID(), "remote_addr", c.RemoteAddr(), "room", room)

	go s.handleClient(c, room)
}

// handleClient drives one connection through its lifecycle: room check,
// registration, the active read loop, and finally deregistration.
// Deregistration runs exactly once no matter which exit path is taken.
func (s *Server) handleClient(c *client, room string) {
	defer func() {
		if sess, ok := s.reg.Deregister(c); ok {
			s.metrics.Disconnects.Add(1)
			slog.Info("client unregistered", "user_id", sess.UserID, "room", sess.Room, "conn_id", c.ID())
		}
		s.clients.Delete(c.ID())
		c.Close()
	}()

	if room == "" {
		c.closeWith(websocket.ClosePolicyViolation, "Room name must be provided in the URL path (e.g., /my-room).")
		return
	}

	if !s.register(c, room) {
		return
	}

	for {
		data, err := c.read()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// Not valid JSON, silently discard.
			continue
		}
		if !protocol.Validate(msg) {
			// Schema mismatch, silently discard. Responding would hand
			// a hostile sender a feedback channel.
			continue
		}

		s.dispatch(c, msg)
	}
}

// dispatch routes a validated message to its handler. The cases cover the
// validator's recognized-type set exactly.
func (s *Server) dispatch(c *client, msg map[string]any) {
	switch protocol.TypeOf(msg) {
	case protocol.TypeMessage:
		s.routeMessage(c, msg)
	case protocol.TypeWhitelistAdd:
		s.whitelistAdd(c, msg)
	case protocol.TypeWhitelistRemove:
		s.whitelistRemove(c, msg)
	case protocol.TypeWhitelistToggleWildcard:
		s.whitelistToggleWildcard(c, msg)
	case protocol.TypeRegister:
		// Already registered; a second register is ignored.
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type statsResponse struct {
	Sessions int `json:"sessions"`
	Rooms    int `json:"rooms"`
	MetricsSnapshot
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sessions, rooms := s.reg.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Sessions:        sessions,
		Rooms:           rooms,
		MetricsSnapshot: s.metrics.Snapshot(),
	})
}
