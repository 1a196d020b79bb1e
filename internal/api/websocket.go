package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

// WebSocketServer implements real-time opportunity streaming
type WebSocketServer struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]*Client
	mutex    sync.RWMutex
	logger   zerolog.Logger

	// Channels for broadcasting
	opportunityBroadcast chan *types.Opportunity
	metricsBroadcast     chan *interfaces.EngineMetrics
	alertBroadcast       chan *interfaces.Alert

	// Control channels
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
}

// Client represents a WebSocket client connection
type Client struct {
	conn     *websocket.Conn
	send     chan *interfaces.WebSocketMessage
	lastPing time.Time
}

// NewWebSocketServer creates a new WebSocket server
func NewWebSocketServer(logger zerolog.Logger) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:              make(map[*websocket.Conn]*Client),
		logger:               logger.With().Str("component", "websocket").Logger(),
		opportunityBroadcast: make(chan *types.Opportunity, 100),
		metricsBroadcast:     make(chan *interfaces.EngineMetrics, 10),
		alertBroadcast:       make(chan *interfaces.Alert, 50),
		register:             make(chan *Client),
		unregister:           make(chan *Client),
		shutdown:             make(chan struct{}),
	}
}

// Start starts the WebSocket server
func (ws *WebSocketServer) Start(ctx context.Context) error {
	go ws.run(ctx)
	ws.logger.Info().Msg("websocket server started")
	return nil
}

// Stop stops the WebSocket server
func (ws *WebSocketServer) Stop(ctx context.Context) error {
	close(ws.shutdown)

	ws.mutex.Lock()
	for conn, client := range ws.clients {
		close(client.send)
		conn.Close()
	}
	ws.clients = make(map[*websocket.Conn]*Client)
	ws.mutex.Unlock()

	ws.logger.Info().Msg("websocket server stopped")
	return nil
}

// HandleWebSocket handles WebSocket connection upgrades
func (ws *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan *interfaces.WebSocketMessage, 256),
		lastPing: time.Now(),
	}

	ws.register <- client

	go ws.writePump(client)
	go ws.readPump(client)
}

// BroadcastOpportunity broadcasts a scored opportunity to all clients
func (ws *WebSocketServer) BroadcastOpportunity(opp *types.Opportunity) error {
	select {
	case ws.opportunityBroadcast <- opp:
		return nil
	default:
		return fmt.Errorf("opportunity broadcast channel full")
	}
}

// BroadcastMetrics broadcasts an engine metrics snapshot to all clients
func (ws *WebSocketServer) BroadcastMetrics(metrics *interfaces.EngineMetrics) error {
	select {
	case ws.metricsBroadcast <- metrics:
		return nil
	default:
		return fmt.Errorf("metrics broadcast channel full")
	}
}

// BroadcastAlert broadcasts an alert to all clients
func (ws *WebSocketServer) BroadcastAlert(alert *interfaces.Alert) error {
	select {
	case ws.alertBroadcast <- alert:
		return nil
	default:
		return fmt.Errorf("alert broadcast channel full")
	}
}

// GetConnectedClients returns the number of connected clients
func (ws *WebSocketServer) GetConnectedClients() int {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	return len(ws.clients)
}

// run is the main event loop for the WebSocket server
func (ws *WebSocketServer) run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ws.shutdown:
			return
		case client := <-ws.register:
			ws.registerClient(client)
		case client := <-ws.unregister:
			ws.unregisterClient(client)
		case opp := <-ws.opportunityBroadcast:
			ws.broadcastToClients(&interfaces.WebSocketMessage{
				Type:      interfaces.MessageTypeOpportunity,
				Data:      opp,
				Timestamp: time.Now(),
			})
		case metrics := <-ws.metricsBroadcast:
			ws.broadcastToClients(&interfaces.WebSocketMessage{
				Type:      interfaces.MessageTypeMetrics,
				Data:      metrics,
				Timestamp: time.Now(),
			})
		case alert := <-ws.alertBroadcast:
			ws.broadcastToClients(&interfaces.WebSocketMessage{
				Type:      interfaces.MessageTypeAlert,
				Data:      alert,
				Timestamp: time.Now(),
			})
		case <-ticker.C:
			ws.pingClients()
		}
	}
}

// registerClient registers a new client
func (ws *WebSocketServer) registerClient(client *Client) {
	ws.mutex.Lock()
	ws.clients[client.conn] = client
	total := len(ws.clients)
	ws.mutex.Unlock()

	ws.logger.Debug().Int("total", total).Msg("websocket client connected")

	welcomeMsg := &interfaces.WebSocketMessage{
		Type: interfaces.MessageTypeStatus,
		Data: map[string]interface{}{
			"message": "Connected to arbitrage engine stream",
		},
		Timestamp: time.Now(),
	}

	select {
	case client.send <- welcomeMsg:
	default:
		ws.mutex.Lock()
		close(client.send)
		delete(ws.clients, client.conn)
		ws.mutex.Unlock()
	}
}

// unregisterClient unregisters a client
func (ws *WebSocketServer) unregisterClient(client *Client) {
	ws.mutex.Lock()
	if _, ok := ws.clients[client.conn]; ok {
		delete(ws.clients, client.conn)
		close(client.send)
		client.conn.Close()
	}
	total := len(ws.clients)
	ws.mutex.Unlock()

	ws.logger.Debug().Int("total", total).Msg("websocket client disconnected")
}

// broadcastToClients broadcasts a message to all connected clients
func (ws *WebSocketServer) broadcastToClients(message *interfaces.WebSocketMessage) {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	for conn, client := range ws.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(ws.clients, conn)
		}
	}
}

// pingClients sends ping messages to all clients to keep connections alive
func (ws *WebSocketServer) pingClients() {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	for conn, client := range ws.clients {
		if time.Since(client.lastPing) > 60*time.Second {
			close(client.send)
			delete(ws.clients, conn)
			continue
		}

		if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			close(client.send)
			delete(ws.clients, conn)
		}
	}
}

// readPump handles incoming messages from a client
func (ws *WebSocketServer) readPump(client *Client) {
	defer func() {
		ws.unregister <- client
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.lastPing = time.Now()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}
	}
}

// writePump handles outgoing messages to a client
func (ws *WebSocketServer) writePump(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteJSON(message); err != nil {
				ws.logger.Debug().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
