package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gpioled/internal/infrastructure/config"
)

// testConfig returns a configuration for a local broker at 127.0.0.1:1883.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "gpioled-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			MaxDelay: 5,
		},
	}
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	warns  []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"State", Topics{}.State("led"), "gpioled/state/led"},
		{"Command", Topics{}.Command("led"), "gpioled/command/led"},
		{"Ack", Topics{}.Ack("led"), "gpioled/ack/led"},
		{"SystemStatus", Topics{}.SystemStatus(), "gpioled/system/status"},
		{"AllStates", Topics{}.AllStates(), "gpioled/state/+"},
		{"AllCommands", Topics{}.AllCommands(), "gpioled/command/+"},
		{"All", Topics{}.All(), "gpioled/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestDeviceFromTopic(t *testing.T) {
	tests := []struct {
		topic  string
		device string
		ok     bool
	}{
		{"gpioled/command/led", "led", true},
		{"gpioled/state/porch", "porch", true},
		{"gpioled/ack/led", "led", true},
		{"gpioled/system/status", "", false},
		{"gpioled/command/", "", false},
		{"gpioled/command/led/extra", "", false},
		{"other/command/led", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			device, ok := DeviceFromTopic(tt.topic)
			if device != tt.device || ok != tt.ok {
				t.Errorf("DeviceFromTopic(%q) = %q, %v; want %q, %v", tt.topic, device, ok, tt.device, tt.ok)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}

	opts := buildClientOptions(cfg)
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "gpioled-test" || opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("identity = %q/%q/%q", opts.ClientID, opts.Username, opts.Password)
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS configured for a plain broker")
	}
	if opts.MaxReconnectInterval != 5*time.Second || !opts.CleanSession || !opts.AutoReconnect {
		t.Errorf("reconnect = %v clean=%v auto=%v", opts.MaxReconnectInterval, opts.CleanSession, opts.AutoReconnect)
	}

	cfg.Reconnect.MaxDelay = 0
	if got := buildClientOptions(cfg).MaxReconnectInterval; got != defaultMaxReconnect {
		t.Errorf("MaxReconnectInterval with no delay = %v, want %v", got, defaultMaxReconnect)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS minimum version not set")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "gpioled-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillTopic != "gpioled/system/status" {
		t.Errorf("will = enabled:%v retained:%v topic:%q", opts.WillEnabled, opts.WillRetained, opts.WillTopic)
	}

	var status statusPayload
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if status.Status != "offline" || status.Reason != "unexpected_disconnect" || status.ClientID != "gpioled-test" {
		t.Errorf("will payload = %+v", status)
	}
}

func TestStatusPayload_EscapesClientID(t *testing.T) {
	var status statusPayload
	if err := json.Unmarshal(encodeStatus(statusOnline, `a"b`, ""), &status); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if status.ClientID != `a"b` || status.Status != "online" || status.Reason != "" {
		t.Errorf("payload = %+v", status)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Connect(ctx, cfg, nil)
	if !errors.Is(err, ErrConnect) {
		t.Errorf("Connect() error = %v, want ErrConnect", err)
	}
}

func TestCloseNil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
}

func TestDisconnectedClient(t *testing.T) {
	client := &Client{subs: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", client.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", client.Publish("gpioled/state/led", nil, 3, false), ErrInvalidQoS},
		{"publish wildcard", client.Publish("gpioled/state/+", nil, 1, false), ErrInvalidTopic},
		{"publish oversized", client.Publish("gpioled/state/led", make([]byte, maxPayloadSize+1), 1, false), ErrTooLarge},
		{"publish disconnected", client.Publish("gpioled/state/led", []byte("{}"), 1, true), ErrNotConnected},
		{"subscribe empty topic", client.Subscribe("", 1, noop), ErrInvalidTopic},
		{"subscribe bad qos", client.Subscribe("gpioled/command/led", 5, noop), ErrInvalidQoS},
		{"subscribe bad filter", client.Subscribe("gpioled/#/led", 1, noop), ErrInvalidTopic},
		{"subscribe nil handler", client.Subscribe("gpioled/command/led", 1, nil), ErrSubscribe},
		{"subscribe disconnected", client.Subscribe("gpioled/command/led", 1, noop), ErrNotConnected},
		{"unsubscribe empty topic", client.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", client.Unsubscribe("gpioled/command/led"), ErrNotConnected},
		{"health", client.HealthCheck(context.Background()), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if got := client.Subscriptions(); len(got) != 0 {
		t.Errorf("failed subscribe left tracked subscriptions %v", got)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Client{}).HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestQoS(t *testing.T) {
	for _, tt := range []struct {
		cfg  int
		want byte
	}{{0, 0}, {2, 2}, {7, 1}, {-1, 1}} {
		c := &Client{cfg: config.MQTTConfig{QoS: tt.cfg}}
		if got := c.QoS(); got != tt.want {
			t.Errorf("QoS() with %d = %d, want %d", tt.cfg, got, tt.want)
		}
	}
}

func TestCheckTopic(t *testing.T) {
	tests := []struct {
		topic  string
		filter bool
		ok     bool
	}{
		{"gpioled/command/led", false, true},
		{"gpioled/command/led", true, true},
		{"gpioled/command/+", true, true},
		{"gpioled/#", true, true},
		{"#", true, true},
		{"gpioled/command/+", false, false},
		{"gpioled/#/led", true, false},
		{"gpioled/comm+nd/led", true, false},
		{"gpioled/led#", true, false},
		{"", true, false},
		{"gpioled/\x00", false, false},
	}

	for _, tt := range tests {
		err := checkTopic(tt.topic, tt.filter)
		if (err == nil) != tt.ok {
			t.Errorf("checkTopic(%q, filter=%v) = %v, want ok=%v", tt.topic, tt.filter, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("checkTopic(%q) error %v does not wrap ErrInvalidTopic", tt.topic, err)
		}
	}
}

func TestDeliver(t *testing.T) {
	logger := &mockLogger{}

	deliver(logger, func(string, []byte) error { return errors.New("bad payload") }, "gpioled/command/led", nil)
	deliver(logger, func(string, []byte) error { panic("boom") }, "gpioled/command/led", nil)

	var got []byte
	deliver(logger, func(_ string, p []byte) error { got = p; return nil }, "gpioled/command/led", []byte("on"))

	if string(got) != "on" {
		t.Errorf("payload = %q, want on", got)
	}
	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "failed") {
		t.Errorf("warns = %v", logger.warns)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panicked") {
		t.Errorf("errors = %v", logger.errors)
	}
}

// offlineClient has a real paho client that never connects, so publishes
// and subscribes fail at once.
func offlineClient(logger Logger) *Client {
	c := &Client{cfg: testConfig(), logger: logger, subs: make(map[string]subscription)}
	c.paho = pahomqtt.NewClient(buildClientOptions(c.cfg))
	return c
}

func TestConnectionUpDown(t *testing.T) {
	logger := &mockLogger{}
	c := offlineClient(logger)
	c.subs[Topics{}.Command("led")] = subscription{qos: 1, handler: func(string, []byte) error { return nil }}

	var hooks atomic.Int32
	c.OnReconnect(func() { hooks.Add(1) })

	// First connect: no replay, no hook.
	c.connectionUp()
	if hooks.Load() != 0 || len(logger.infos) != 0 {
		t.Fatalf("first connect ran reconnect path: hooks=%d infos=%v", hooks.Load(), logger.infos)
	}

	c.connectionDown(errors.New("broker went away"))
	if c.connected.Load() || c.Reconnects() != 1 {
		t.Fatalf("after loss: connected=%v reconnects=%d", c.connected.Load(), c.Reconnects())
	}

	c.connectionUp()
	if hooks.Load() != 1 {
		t.Errorf("reconnect hook ran %d times, want 1", hooks.Load())
	}
	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.infos) != 1 || logger.infos[0] != "mqtt reconnected" {
		t.Errorf("infos = %v", logger.infos)
	}
	if len(logger.warns) == 0 || logger.warns[0] != "mqtt connection lost" {
		t.Errorf("warns = %v", logger.warns)
	}
}
