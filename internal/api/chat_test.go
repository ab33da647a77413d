package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/jmorrell/homedeck/internal/chat"
	"github.com/jmorrell/homedeck/internal/device"
)

// scriptedCompleter returns a fixed response and action set.
type scriptedCompleter struct {
	response string
	actions  []chat.Action
}

func (c *scriptedCompleter) Complete(_ context.Context, _ []chat.Message) (string, []chat.Action, error) {
	return c.response, c.actions, nil
}

func TestChatUnconfigured(t *testing.T) {
	env := newTestEnv(t)

	t.Run("message unavailable", func(t *testing.T) {
		status, _ := env.authed(t, http.MethodPost, "/api/v1/chat", map[string]any{
			"message": "hello",
		})
		if status != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", status)
		}
	})

	t.Run("status reports disabled", func(t *testing.T) {
		status, data := env.authed(t, http.MethodGet, "/api/v1/chat/status", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var resp struct {
			Enabled bool `json:"enabled"`
		}
		decode(t, data, &resp)
		if resp.Enabled {
			t.Error("chat reported enabled without a backend")
		}
	})
}

func TestChat(t *testing.T) {
	completer := &scriptedCompleter{response: "Turning on the desk lamp."}

	var registry *device.Registry
	env := newTestEnv(t, func(d *Deps) {
		registry = d.Registry
		d.Chat = chat.NewService(completer, registry, 5)
	})
	env.createDevice(t, map[string]any{
		"id": "chat-lamp", "name": "Desk Lamp", "device_type": "light", "enabled": true,
	})
	completer.actions = []chat.Action{
		{DeviceID: "chat-lamp", DeviceType: "light", Property: "power", Value: true},
	}

	t.Run("empty message rejected", func(t *testing.T) {
		status, _ := env.authed(t, http.MethodPost, "/api/v1/chat", map[string]any{
			"message": "",
		})
		if status != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", status)
		}
	})

	t.Run("message executes actions", func(t *testing.T) {
		status, data := env.authed(t, http.MethodPost, "/api/v1/chat", map[string]any{
			"message": "turn on the desk lamp",
		})
		if status != http.StatusOK {
			t.Fatalf("status = %d, body = %s", status, data)
		}
		var reply chat.Reply
		decode(t, data, &reply)
		if reply.Response != "Turning on the desk lamp." {
			t.Errorf("response = %q", reply.Response)
		}
		if len(reply.ExecutionResults) != 1 || !reply.ExecutionResults[0].Success {
			t.Fatalf("execution results = %+v", reply.ExecutionResults)
		}

		dev, err := registry.GetDevice(context.Background(), "chat-lamp")
		if err != nil {
			t.Fatalf("GetDevice() error = %v", err)
		}
		if dev.State["power"] != true {
			t.Errorf("lamp power = %v, want true", dev.State["power"])
		}
	})

	t.Run("history records the exchange", func(t *testing.T) {
		status, data := env.authed(t, http.MethodGet, "/api/v1/chat/history", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var resp struct {
			History []chat.Exchange `json:"history"`
			Count   int             `json:"count"`
		}
		decode(t, data, &resp)
		if resp.Count != 1 {
			t.Fatalf("count = %d, want 1", resp.Count)
		}
		if resp.History[0].UserMessage != "turn on the desk lamp" {
			t.Errorf("user message = %q", resp.History[0].UserMessage)
		}
	})

	t.Run("chat control lands in device history", func(t *testing.T) {
		status, data := env.authed(t, http.MethodGet, "/api/v1/devices/chat-lamp/history", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var resp struct {
			History []device.StateHistoryEntry `json:"history"`
		}
		decode(t, data, &resp)
		if len(resp.History) == 0 {
			t.Fatal("no device history after chat control")
		}
		if resp.History[0].Source != device.StateHistorySourceChat {
			t.Errorf("source = %q, want %q", resp.History[0].Source, device.StateHistorySourceChat)
		}
	})

	t.Run("clear history", func(t *testing.T) {
		status, _ := env.authed(t, http.MethodPost, "/api/v1/chat/clear", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}

		status, data := env.authed(t, http.MethodGet, "/api/v1/chat/history", nil)
		if status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, data, &resp)
		if resp.Count != 0 {
			t.Errorf("count = %d, want 0 after clear", resp.Count)
		}
	})
}
