// Package ws handles WebSocket connection management for the comment
// server: upgrading HTTP connections, maintaining active viewer
// connections and per-stream rooms, and dispatching incoming messages to
// the appropriate handlers.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/danmaku/live-comments/internal/metrics"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // idle timeout for WebSocket reads
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		MaxConnections: 100000,
		ReadTimeout:    90 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Server is the WebSocket server built on gobwas/ws. Each accepted
// connection gets its own reader goroutine that parks in wsutil.NextReader
// until a frame arrives, so idle viewers cost a goroutine and nothing else.
type Server struct {
	config       ServerConfig
	conns        *ConnectionManager
	onMessage    func(conn *Connection, data []byte) // message handler callback
	onDisconnect func(conn *Connection)              // called when a connection is removed
	httpServer   *http.Server
	done         chan struct{}
	startedAt    time.Time // server start time for uptime calculation
}

// NewServer creates a Server with the given configuration and message
// callback. The onMessage function is called from the connection's reader
// goroutine whenever a complete WebSocket text frame is received.
func NewServer(config ServerConfig, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:    config,
		conns:     NewConnectionManager(),
		onMessage: onMessage,
		done:      make(chan struct{}),
	}
}

// Start configures the HTTP server and begins accepting WebSocket
// connections. It blocks on http.Server.ListenAndServe.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	// Start the heartbeat monitor to detect and close dead connections.
	StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("ws: server listening on %s (max_conns=%d)",
		s.config.ListenAddr, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade upgrades an HTTP request to a WebSocket connection using
// the gobwas/ws zero-copy upgrader. Identity comes from the user_id and
// username query parameters, which the auth proxy in front of this server
// populates for logged-in viewers; both are empty for anonymous viewers.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Enforce maximum connection limit.
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	userID := r.URL.Query().Get("user_id")
	username := r.URL.Query().Get("username")
	if username == "" {
		username = "anonymous"
	}

	// Upgrade the HTTP connection to WebSocket.
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	c := &Connection{
		ID:        uuid.New().String(),
		UserID:    userID,
		Username:  username,
		Conn:      conn,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}

	s.conns.Add(c)
	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	go s.readLoop(c)

	log.Printf("ws: new connection conn=%s user=%s (total=%d)", c.ID, c.Username, s.conns.Count())
}

// handleHealth responds with the server's health status as JSON, including
// the current connection count and uptime. It is used by the load balancer
// for health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// readLoop reads WebSocket frames from a connection until it fails or the
// server shuts down. Control frames (ping, pong, close) are handled here;
// data frames go to the onMessage callback.
func (s *Server) readLoop(c *Connection) {
	defer s.RemoveConnection(c)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if s.config.ReadTimeout > 0 {
			_ = c.Conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			// An idle timeout is not fatal by itself; the heartbeat decides
			// when a silent connection is actually dead.
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return
		}

		// Any frame proves the connection is alive.
		c.LastPing = time.Now()

		// Handle control frames without leaving the loop.
		if header.OpCode.IsControl() {
			if header.OpCode == ws.OpClose {
				return
			}
			if header.Length > 0 {
				_, _ = io.Copy(io.Discard, reader)
			}
			continue
		}

		data := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, data); err != nil {
				return
			}
		}
		if len(data) == 0 {
			continue
		}

		if s.onMessage != nil {
			s.onMessage(c, data)
		}
	}
}

// SetOnDisconnect registers a callback invoked when a connection is removed
// (due to read error, heartbeat timeout, or graceful close). The handler
// can still inspect the connection's stream and identity fields.
func (s *Server) SetOnDisconnect(fn func(conn *Connection)) {
	s.onDisconnect = fn
}

// RemoveConnection removes a connection from the manager and closes the
// underlying network connection. It is exported so that the heartbeat
// monitor can evict dead connections.
func (s *Server) RemoveConnection(c *Connection) {
	// Guard: only proceed if the connection was actually in the manager.
	// This prevents double cleanup when multiple goroutines race to remove
	// the same connection (e.g., read error + heartbeat timeout).
	if !s.conns.Remove(c.ID) {
		return
	}

	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.onDisconnect != nil {
		s.onDisconnect(c)
	}

	log.Printf("ws: connection closed conn=%s (total=%d)", c.ID, s.conns.Count())
}

// SendMessage writes a WebSocket text frame to the connection identified by
// connID. It is goroutine-safe thanks to the per-connection write mutex.
func (s *Server) SendMessage(connID string, data []byte) error {
	c := s.conns.Get(connID)
	if c == nil {
		return fmt.Errorf("ws: connection %s not found", connID)
	}

	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Clear write deadline so it doesn't affect future writes (e.g., heartbeat pings).
	_ = c.Conn.SetWriteDeadline(time.Time{})

	return err
}

// Connections returns the ConnectionManager for external access to
// connection and room state (e.g., by the heartbeat or the broadcast
// forwarder).
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown performs a graceful shutdown of the server. It stops the HTTP
// listener, signals the reader loops and heartbeat to exit, and closes all
// active connections.
func (s *Server) Shutdown() error {
	log.Println("ws: shutting down server...")

	close(s.done)

	// Stop accepting new HTTP connections with a deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("ws: http shutdown error: %v", err)
	}

	for _, c := range s.conns.All() {
		s.RemoveConnection(c)
	}

	log.Printf("ws: server stopped, all connections closed")
	return nil
}
