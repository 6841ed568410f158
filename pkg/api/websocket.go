package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradekit/stratrunner/pkg/eventlog"
	"github.com/tradekit/stratrunner/pkg/models"
	"github.com/tradekit/stratrunner/pkg/storage"
)

// WebSocketManager manages WebSocket connections for live execution
// updates. It implements eventlog.Notifier: every Emit/SetStatus pushes the
// updated document to the execution's subscribers, complementing the
// polling snapshot endpoint for clients that want lower latency.
type WebSocketManager struct {
	// upgrader for upgrading HTTP connections to WebSocket
	upgrader websocket.Upgrader

	// connections maps execution IDs to sets of WebSocket connections
	connections map[string]map[*websocket.Conn]bool

	// connectionMeta stores metadata for each connection
	connectionMeta map[*websocket.Conn]*ConnectionMetadata

	// mutex for thread-safe access
	mu sync.RWMutex

	// logger for reading current snapshots on subscribe
	logger *eventlog.Logger
}

// ConnectionMetadata stores metadata about a WebSocket connection
type ConnectionMetadata struct {
	Subject       string
	ConnectedAt   time.Time
	LastPingAt    time.Time
	Subscriptions map[string]bool // execution IDs this connection is subscribed to
}

// ExecutionUpdate is a live update pushed to subscribers
type ExecutionUpdate struct {
	Type        string                 `json:"type"` // "update", "error", "pong"
	ExecutionID string                 `json:"execution_id,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Message     string                 `json:"message,omitempty"`
	Status      models.ExecutionStatus `json:"status,omitempty"`
	Events      []models.Event         `json:"events,omitempty"`
}

// WebSocketMessage represents incoming WebSocket messages
type WebSocketMessage struct {
	Type        string `json:"type"` // "subscribe", "unsubscribe", "ping"
	ExecutionID string `json:"execution_id,omitempty"`
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(logger *eventlog.Logger) *WebSocketManager {
	return &WebSocketManager{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from any origin for now
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections:    make(map[string]map[*websocket.Conn]bool),
		connectionMeta: make(map[*websocket.Conn]*ConnectionMetadata),
		logger:         logger,
	}
}

// ExecutionUpdated broadcasts an execution's updated live log to its
// subscribers. Called by the event logger after every emit/status change.
func (wsm *WebSocketManager) ExecutionUpdated(executionID string, doc models.ExecutionLog) {
	wsm.broadcastToExecution(executionID, ExecutionUpdate{
		Type:        "update",
		ExecutionID: executionID,
		Timestamp:   time.Now(),
		Status:      doc.Status,
		Events:      doc.Events,
	})
}

// HandleWebSocket handles WebSocket connection upgrade and management
func (wsm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request, subject string) {
	// Upgrade the HTTP connection to WebSocket
	conn, err := wsm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Store connection metadata
	wsm.mu.Lock()
	wsm.connectionMeta[conn] = &ConnectionMetadata{
		Subject:       subject,
		ConnectedAt:   time.Now(),
		LastPingAt:    time.Now(),
		Subscriptions: make(map[string]bool),
	}
	wsm.mu.Unlock()

	// Clean up when connection closes
	defer wsm.removeConnection(conn)

	log.Printf("WebSocket connection established for %s", subject)

	// Set up ping/pong handlers
	conn.SetPongHandler(func(string) error {
		wsm.mu.Lock()
		if meta, exists := wsm.connectionMeta[conn]; exists {
			meta.LastPingAt = time.Now()
		}
		wsm.mu.Unlock()
		return nil
	})

	// Start ping routine
	go wsm.pingRoutine(conn)

	// Handle incoming messages
	for {
		var msg WebSocketMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		wsm.handleMessage(conn, &msg)
	}
}

// handleMessage processes incoming WebSocket messages
func (wsm *WebSocketManager) handleMessage(conn *websocket.Conn, msg *WebSocketMessage) {
	switch msg.Type {
	case "subscribe":
		if msg.ExecutionID != "" {
			wsm.subscribeToExecution(conn, msg.ExecutionID)
		}
	case "unsubscribe":
		if msg.ExecutionID != "" {
			wsm.unsubscribeFromExecution(conn, msg.ExecutionID)
		}
	case "ping":
		// Respond with pong
		wsm.sendMessage(conn, ExecutionUpdate{
			Type:      "pong",
			Timestamp: time.Now(),
		})
	default:
		log.Printf("Unknown WebSocket message type: %s", msg.Type)
	}
}

// subscribeToExecution subscribes a connection to execution updates
func (wsm *WebSocketManager) subscribeToExecution(conn *websocket.Conn, executionID string) {
	wsm.mu.Lock()

	// Add connection to execution subscriptions
	if wsm.connections[executionID] == nil {
		wsm.connections[executionID] = make(map[*websocket.Conn]bool)
	}
	wsm.connections[executionID][conn] = true

	// Update connection metadata
	if meta, exists := wsm.connectionMeta[conn]; exists {
		meta.Subscriptions[executionID] = true
	}
	wsm.mu.Unlock()

	// Send the current snapshot, if the execution has a live document.
	// Absence is normal: the run may not have started yet or was flushed.
	doc, err := wsm.logger.Snapshot(context.Background(), executionID)
	if err == nil {
		wsm.sendMessage(conn, ExecutionUpdate{
			Type:        "update",
			ExecutionID: executionID,
			Timestamp:   time.Now(),
			Status:      doc.Status,
			Events:      doc.Events,
		})
	} else if err != storage.ErrKeyNotFound {
		wsm.sendMessage(conn, ExecutionUpdate{
			Type:        "error",
			ExecutionID: executionID,
			Timestamp:   time.Now(),
			Message:     "Failed to read execution log",
		})
	}
}

// unsubscribeFromExecution unsubscribes a connection from execution updates
func (wsm *WebSocketManager) unsubscribeFromExecution(conn *websocket.Conn, executionID string) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()

	// Remove connection from execution subscriptions
	if execConns, exists := wsm.connections[executionID]; exists {
		delete(execConns, conn)
		if len(execConns) == 0 {
			delete(wsm.connections, executionID)
		}
	}

	// Update connection metadata
	if meta, exists := wsm.connectionMeta[conn]; exists {
		delete(meta.Subscriptions, executionID)
	}
}

// broadcastToExecution sends an update to all connections subscribed to an execution
func (wsm *WebSocketManager) broadcastToExecution(executionID string, update ExecutionUpdate) {
	wsm.mu.RLock()
	connections, exists := wsm.connections[executionID]
	if !exists {
		wsm.mu.RUnlock()
		return
	}

	// Create a copy of connections to avoid holding the lock during sending
	connsCopy := make([]*websocket.Conn, 0, len(connections))
	for conn := range connections {
		connsCopy = append(connsCopy, conn)
	}
	wsm.mu.RUnlock()

	// Send to all connections
	for _, conn := range connsCopy {
		wsm.sendMessage(conn, update)
	}
}

// sendMessage sends a message to a WebSocket connection
func (wsm *WebSocketManager) sendMessage(conn *websocket.Conn, update ExecutionUpdate) {
	// Set write deadline
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	if err := conn.WriteJSON(update); err != nil {
		log.Printf("Failed to send WebSocket message: %v", err)
		// Remove the connection on write error
		wsm.removeConnection(conn)
	}
}

// removeConnection removes a connection from all subscriptions
func (wsm *WebSocketManager) removeConnection(conn *websocket.Conn) {
	wsm.mu.Lock()
	defer wsm.mu.Unlock()

	// Remove from all execution subscriptions
	if meta, exists := wsm.connectionMeta[conn]; exists {
		for executionID := range meta.Subscriptions {
			if execConns, exists := wsm.connections[executionID]; exists {
				delete(execConns, conn)
				if len(execConns) == 0 {
					delete(wsm.connections, executionID)
				}
			}
		}
	}

	// Remove connection metadata
	delete(wsm.connectionMeta, conn)

	// Close the connection
	conn.Close()
}

// pingRoutine sends periodic ping messages to keep the connection alive
func (wsm *WebSocketManager) pingRoutine(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			wsm.removeConnection(conn)
			return
		}
	}
}

// GetConnectedClients returns the number of connected clients
func (wsm *WebSocketManager) GetConnectedClients() int {
	wsm.mu.RLock()
	defer wsm.mu.RUnlock()
	return len(wsm.connectionMeta)
}

// GetExecutionSubscribers returns the number of subscribers for an execution
func (wsm *WebSocketManager) GetExecutionSubscribers(executionID string) int {
	wsm.mu.RLock()
	defer wsm.mu.RUnlock()
	if connections, exists := wsm.connections[executionID]; exists {
		return len(connections)
	}
	return 0
}
