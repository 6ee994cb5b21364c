package rpc

import (
	"sync"

	"github.com/pkg/errors"
)

// ConnectionHub tracks every live connection of a node. It backs the
// connected-clients accounting and lets the node broadcast server-initiated
// messages (for example a shutdown notice) to all peers.
type ConnectionHub struct {
	mu          sync.RWMutex
	connections map[string]Connection
}

// NewConnectionHub creates an empty hub.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{
		connections: make(map[string]Connection),
	}
}

// Add registers a connection, keyed by its connection ID. It returns an
// error for a nil connection or a duplicate ID.
func (hub *ConnectionHub) Add(conn Connection) error {
	if conn == nil {
		return errors.New("connection cannot be nil")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	connID := conn.ConnectionID()
	if _, exists := hub.connections[connID]; exists {
		return errors.Errorf("connection with ID %s already exists", connID)
	}

	hub.connections[connID] = conn
	return nil
}

// Get retrieves a connection by ID, or nil when it is not present.
func (hub *ConnectionHub) Get(connID string) Connection {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	return hub.connections[connID]
}

// Remove unregisters a connection. Removing an unknown ID is a no-op.
func (hub *ConnectionHub) Remove(connID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	delete(hub.connections, connID)
}

// Len returns the number of live connections.
func (hub *ConnectionHub) Len() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	return len(hub.connections)
}

// Broadcast queues a message on every live connection. Connections whose
// buffers are full simply drop it.
func (hub *ConnectionHub) Broadcast(message []byte) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for _, conn := range hub.connections {
		conn.WriteRawResponse(message)
	}
}
