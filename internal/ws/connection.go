package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a single WebSocket viewer connection with its
// associated identity and a write mutex for serializing outbound frames.
type Connection struct {
	ID        string    // connection ID (UUID)
	UserID    string    // empty for anonymous viewers
	Username  string    // display name, "anonymous" when not authenticated
	Conn      net.Conn  // underlying TCP connection
	CreatedAt time.Time // when the connection was established
	LastPing  time.Time // last heartbeat received from the client

	mu       sync.Mutex // guards streamID
	streamID string     // stream currently being watched, "" when none

	writeMu sync.Mutex // serializes writes to this connection
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures that concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9) on the
// connection. The write mutex ensures this does not interleave with other
// outbound frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// SetStream records which stream this connection is watching. An empty
// string clears it.
func (c *Connection) SetStream(streamID string) {
	c.mu.Lock()
	c.streamID = streamID
	c.mu.Unlock()
}

// Stream returns the stream this connection is currently watching, or ""
// when it has not joined one.
func (c *Connection) Stream() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamID
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager is a thread-safe registry that maps connection IDs to
// Connection objects and groups connections into per-stream rooms for
// broadcast fan-out.
type ConnectionManager struct {
	mu    sync.RWMutex
	byID  map[string]*Connection            // connection_id -> Connection
	rooms map[string]map[string]*Connection // stream_id -> connection_id -> Connection
}

// NewConnectionManager creates an empty ConnectionManager ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID:  make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// Add registers a new connection.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.mu.Unlock()
}

// Remove removes a connection by ID, pulls it out of any room it joined,
// and closes the underlying network connection. Returns true if the
// connection was found and removed, false if it was already gone.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		for streamID, room := range cm.rooms {
			if _, in := room[id]; in {
				delete(room, id)
				if len(room) == 0 {
					delete(cm.rooms, streamID)
				}
			}
		}
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given ID, or nil if not found.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	conn := cm.byID[id]
	cm.mu.RUnlock()
	return conn
}

// JoinRoom adds a connection to a stream's room. The first join for a
// stream creates the room; the return value reports whether it did, so the
// caller knows when to open a cross-instance subscription.
func (cm *ConnectionManager) JoinRoom(streamID string, conn *Connection) (created bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	room, ok := cm.rooms[streamID]
	if !ok {
		room = make(map[string]*Connection)
		cm.rooms[streamID] = room
	}
	room[conn.ID] = conn
	return !ok
}

// LeaveRoom removes a connection from a stream's room. It reports whether
// the room became empty and was deleted, so the caller knows when to drop
// the cross-instance subscription.
func (cm *ConnectionManager) LeaveRoom(streamID string, connID string) (emptied bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	room, ok := cm.rooms[streamID]
	if !ok {
		return false
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(cm.rooms, streamID)
		return true
	}
	return false
}

// RoomSize returns the number of local connections watching a stream.
func (cm *ConnectionManager) RoomSize(streamID string) int {
	cm.mu.RLock()
	n := len(cm.rooms[streamID])
	cm.mu.RUnlock()
	return n
}

// Count returns the current number of active connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	n := len(cm.byID)
	cm.mu.RUnlock()
	return n
}

// BroadcastRoom sends a message to every local connection in a stream's
// room. Errors on individual connections are silently ignored; failed
// connections are cleaned up when their read loop exits.
func (cm *ConnectionManager) BroadcastRoom(streamID string, msg []byte) {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.rooms[streamID]))
	for _, conn := range cm.rooms[streamID] {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.WriteMessage(msg)
	}
}

// All returns a snapshot of all current connections. The returned slice is
// safe to iterate without holding the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
