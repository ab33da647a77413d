package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jmorrell/homedeck/internal/infrastructure/config"
	"github.com/jmorrell/homedeck/internal/infrastructure/logging"
)

func testHub() *Hub {
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"}, "test")
	return NewHub(config.WebSocketConfig{MaxMessageSize: 65536, PingInterval: 30, PongTimeout: 10}, logger)
}

// newHubClient builds a client attached to the hub without a network
// connection, for exercising broadcast routing directly.
func newHubClient(hub *Hub, channels ...string) *WSClient {
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		client.subscriptions[ch] = struct{}{}
	}
	hub.Register(client)
	return client
}

func TestHubBroadcastRouting(t *testing.T) {
	hub := testHub()
	subscribed := newHubClient(hub, ChannelDeviceState)
	other := newHubClient(hub, ChannelOTAProgress)

	hub.Broadcast(ChannelDeviceState, map[string]any{"device_id": "light-1"})

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to decode broadcast: %v", err)
		}
		if msg.Type != WSTypeEvent {
			t.Errorf("type = %q, want %q", msg.Type, WSTypeEvent)
		}
		if msg.EventType != ChannelDeviceState {
			t.Errorf("event_type = %q", msg.EventType)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}

	select {
	case <-other.send:
		t.Fatal("unsubscribed client received a broadcast")
	default:
	}
}

func TestHubUnregister(t *testing.T) {
	hub := testHub()
	client := newHubClient(hub, ChannelDeviceState)

	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Double unregister must not panic on a closed send channel.
	hub.Unregister(client)

	// Broadcasting after disconnect must not panic either.
	hub.Broadcast(ChannelDeviceState, map[string]any{"device_id": "light-1"})
}

func TestHubSlowClient(t *testing.T) {
	hub := testHub()
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte), // unbuffered, never drained
		subscriptions: map[string]struct{}{ChannelSensorReading: {}},
	}
	hub.Register(client)

	// A full client buffer is skipped, not blocked on.
	done := make(chan struct{})
	go func() {
		hub.Broadcast(ChannelSensorReading, map[string]any{"count": 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}

func TestWebSocketEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.createDevice(t, map[string]any{
		"id": "ws-light", "name": "WS Light", "device_type": "light", "enabled": true,
	})

	t.Run("rejects missing ticket", func(t *testing.T) {
		status, _ := env.request(t, http.MethodGet, "/api/v1/ws", env.token, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", status)
		}
	})

	// Obtain a ticket and dial.
	status, data := env.authed(t, http.MethodPost, "/api/v1/auth/ws-ticket", nil)
	if status != http.StatusOK {
		t.Fatalf("ticket status = %d", status)
	}
	var ticket struct {
		Ticket string `json:"ticket"`
	}
	decode(t, data, &ticket)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/v1/ws?ticket=" + ticket.Ticket
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v (resp: %+v)", err, resp)
	}
	defer conn.Close()

	// Subscribe to device state events.
	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDeviceState}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe write failed: %v", err)
	}

	//nolint:errcheck // Deadline failure surfaces as a read error below
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("subscribe ack read failed: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Fatalf("ack = %+v, want response for sub-1", ack)
	}

	// A control call should arrive as an event.
	ctrlStatus, body := env.authed(t, http.MethodPost, "/api/v1/devices/ws-light/control", map[string]any{
		"power": true,
	})
	if ctrlStatus != http.StatusOK {
		t.Fatalf("control status = %d, body = %s", ctrlStatus, body)
	}

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("event read failed: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelDeviceState {
		t.Fatalf("event = %+v, want %s event", event, ChannelDeviceState)
	}
	payload, ok := event.Payload.(map[string]any)
	if !ok || payload["device_id"] != "ws-light" {
		t.Errorf("payload = %+v, want device_id ws-light", event.Payload)
	}

	// Protocol ping gets a pong response.
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("ping write failed: %v", err)
	}
	var pong WSMessage
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("pong read failed: %v", err)
	}
	if pong.Type != WSTypePong {
		t.Errorf("pong type = %q", pong.Type)
	}
}
