//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/jmorrell/homedeck/internal/infrastructure/config"
)

// Integration tests for broker-dependent behaviour.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "homedeck-integration-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestConnectAndClose(t *testing.T) {
	client, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); err == nil {
		t.Fatal("Connect() expected error for invalid broker")
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	client, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.SensorData("integration-test")
	payload := []byte(`{"readings":[{"sensor_type":"temperature","value":21.0}]}`)

	var mu sync.Mutex
	var received []byte
	done := make(chan struct{})

	err = client.Subscribe(topic, 1, func(_ string, p []byte) error {
		mu.Lock()
		received = p
		mu.Unlock()
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Publish(topic, payload, 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(received) != string(payload) {
		t.Errorf("received = %s, want %s", received, payload)
	}
}

func TestWildcardSubscription(t *testing.T) {
	client, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var mu sync.Mutex
	topics := make(map[string]bool)
	done := make(chan struct{})

	err = client.Subscribe(Topics{}.AllSensorData(), 1, func(topic string, _ []byte) error {
		mu.Lock()
		topics[topic] = true
		n := len(topics)
		mu.Unlock()
		if n == 2 {
			close(done)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for _, id := range []string{"wild-a", "wild-b"} {
		if err := client.Publish(Topics{}.SensorData(id), []byte(`{}`), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", id, err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for wildcard messages")
	}

	mu.Lock()
	defer mu.Unlock()
	if !topics[Topics{}.SensorData("wild-a")] || !topics[Topics{}.SensorData("wild-b")] {
		t.Errorf("topics received = %v, want both wildcard matches", topics)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	client, err := Connect(integrationConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.SensorStatus("unsub-test")
	var count int
	var mu sync.Mutex

	err = client.Subscribe(topic, 1, func(string, []byte) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topic) {
		t.Error("HasSubscription() = true after unsubscribe")
	}

	if err := client.Publish(topic, []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("handler called %d times after unsubscribe, want 0", count)
	}
}
