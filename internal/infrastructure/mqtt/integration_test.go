//go:build integration

package mqtt

import (
	"context"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

// Integration tests against a broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectIntegration(t *testing.T, clientID string, logger Logger) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	client, err := Connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup
	return client
}

func TestIntegration_Connect(t *testing.T) {
	client := connectIntegration(t, "gpioled-int-connect", nil)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := connectIntegration(t, "gpioled-int-sub-track", nil)
	noop := func(string, []byte) error { return nil }

	for _, topic := range []string{Topics{}.Command("int-a"), Topics{}.AllCommands()} {
		if err := client.Subscribe(topic, 1, noop); err != nil {
			t.Fatalf("Subscribe(%q) error = %v", topic, err)
		}
	}
	if got := client.Subscriptions(); len(got) != 2 {
		t.Errorf("Subscriptions() = %v, want 2", got)
	}

	if err := client.Unsubscribe(Topics{}.AllCommands()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if slices.Contains(client.Subscriptions(), Topics{}.AllCommands()) {
		t.Error("subscription still tracked after Unsubscribe")
	}
}

func TestIntegration_CommandRoundtrip(t *testing.T) {
	client := connectIntegration(t, "gpioled-int-roundtrip", nil)

	received := make(chan string, 1)
	err := client.Subscribe(Topics{}.AllCommands(), 1, func(topic string, payload []byte) error {
		device, _ := DeviceFromTopic(topic)
		received <- device + ":" + string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Publish(Topics{}.Command("int-led"), []byte(`{"command":"on"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != `int-led:{"command":"on"}` {
			t.Errorf("received %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestIntegration_HandlerErrorLogged(t *testing.T) {
	logger := &mockLogger{}
	client := connectIntegration(t, "gpioled-int-logger", logger)

	var calls atomic.Int32
	err := client.Subscribe(Topics{}.Command("int-err"), 1, func(string, []byte) error {
		calls.Add(1)
		panic("handler failure")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := client.Publish(Topics{}.Command("int-err"), []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		logger.mu.Lock()
		n := len(logger.errors)
		logger.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("handler never called")
	}
	if !client.IsConnected() {
		t.Error("client disconnected after handler panic")
	}
}
