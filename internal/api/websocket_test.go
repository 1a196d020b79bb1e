package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbscope/cross-chain-arb-engine/pkg/interfaces"
	"github.com/arbscope/cross-chain-arb-engine/pkg/types"
)

func httpHandlerFunc(ws *WebSocketServer) http.Handler {
	return http.HandlerFunc(ws.HandleWebSocket)
}

func TestWebSocketServer_BroadcastOpportunity(t *testing.T) {
	ws := NewWebSocketServer(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ws.Start(ctx))
	defer ws.Stop(context.Background())

	server := httptest.NewServer(httpHandlerFunc(ws))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Welcome message arrives first.
	var welcome interfaces.WebSocketMessage
	require.NoError(t, readMessage(conn, &welcome))
	assert.Equal(t, interfaces.MessageTypeStatus, welcome.Type)

	roi := 42.0
	opp := &types.Opportunity{
		ID: "opp-1", Token: "ETH", ChainFrom: "ethereum", ChainTo: "polygon",
		NetProfit: 45, ROI: &roi, Score: 0.9, Status: types.OpportunityActive,
	}
	require.NoError(t, ws.BroadcastOpportunity(opp))

	var msg interfaces.WebSocketMessage
	require.NoError(t, readMessage(conn, &msg))
	assert.Equal(t, interfaces.MessageTypeOpportunity, msg.Type)

	payload, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var got types.Opportunity
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "opp-1", got.ID)
	assert.Equal(t, 0.9, got.Score)
}

func TestWebSocketServer_BroadcastAlertAndMetrics(t *testing.T) {
	ws := NewWebSocketServer(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ws.Start(ctx))
	defer ws.Stop(context.Background())

	server := httptest.NewServer(httpHandlerFunc(ws))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome interfaces.WebSocketMessage
	require.NoError(t, readMessage(conn, &welcome))

	require.NoError(t, ws.BroadcastAlert(&interfaces.Alert{
		Level: "info", Message: "test alert", Token: "ETH", Score: 0.95,
	}))
	var alertMsg interfaces.WebSocketMessage
	require.NoError(t, readMessage(conn, &alertMsg))
	assert.Equal(t, interfaces.MessageTypeAlert, alertMsg.Type)

	require.NoError(t, ws.BroadcastMetrics(&interfaces.EngineMetrics{PredictionsTotal: 7}))
	var metricsMsg interfaces.WebSocketMessage
	require.NoError(t, readMessage(conn, &metricsMsg))
	assert.Equal(t, interfaces.MessageTypeMetrics, metricsMsg.Type)
}

func TestWebSocketServer_ClientCount(t *testing.T) {
	ws := NewWebSocketServer(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ws.Start(ctx))
	defer ws.Stop(context.Background())

	assert.Equal(t, 0, ws.GetConnectedClients())

	server := httptest.NewServer(httpHandlerFunc(ws))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return ws.GetConnectedClients() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		return ws.GetConnectedClients() == 0
	}, time.Second, 10*time.Millisecond)
}

func readMessage(conn *websocket.Conn, out *interfaces.WebSocketMessage) error {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn.ReadJSON(out)
}
