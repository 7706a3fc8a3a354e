package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gpioled/internal/infrastructure/config"
)

// Logger is the logging the client needs. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives one message. It runs on a paho goroutine and
// should not block; a returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Client is a broker connection that remembers its subscriptions and
// replays them after every reconnect.
//
// All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	connected   atomic.Bool
	reconnects  atomic.Uint64
	onReconnect atomic.Pointer[func()]

	subMu sync.Mutex
	subs  map[string]subscription
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and waits for the session to be accepted.
//
// The client publishes a retained "online" status on every connect and
// registers an "offline" will. Lost connections are retried by paho with
// backoff up to mqtt.reconnect.max_delay.
//
// Parameters:
//   - ctx: Bounds the wait, together with a 10s limit
//   - cfg: MQTT configuration from config.yaml
//   - logger: Receives connection changes and handler failures; may be nil
//
// Returns:
//   - *Client: Connected client
//   - error: ErrConnect wrapping the cause
func Connect(ctx context.Context, cfg config.MQTTConfig, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	c.paho = pahomqtt.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	token := c.paho.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("%w to %s: %w", ErrConnect, opts.Servers[0], err)
		}
	case <-ctx.Done():
		c.paho.Disconnect(0)
		return nil, fmt.Errorf("%w to %s: %w", ErrConnect, opts.Servers[0], ctx.Err())
	}

	// The on-connect handler may still be running; the session is up.
	c.connected.Store(true)
	return c, nil
}

// connectionUp runs on the first connect and after each reconnect.
func (c *Client) connectionUp() {
	c.connected.Store(true)
	c.publishStatus(statusOnline, "")

	if c.reconnects.Load() == 0 {
		return
	}
	n := c.replaySubscriptions()
	c.logger.Info("mqtt reconnected", "subscriptions", n, "reconnects", c.reconnects.Load())
	if hook := c.onReconnect.Load(); hook != nil {
		(*hook)()
	}
}

func (c *Client) connectionDown(err error) {
	c.connected.Store(false)
	c.reconnects.Add(1)
	c.logger.Warn("mqtt connection lost", "error", err)
}

// OnReconnect registers fn to run after each reconnect, once the
// subscriptions are restored. A later call replaces the previous fn.
func (c *Client) OnReconnect(fn func()) {
	c.onReconnect.Store(&fn)
}

// replaySubscriptions re-issues every tracked subscription. Failures are
// logged; the subscription stays tracked for the next reconnect.
func (c *Client) replaySubscriptions() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for topic, sub := range c.subs {
		token := c.paho.Subscribe(topic, sub.qos, c.route(sub.handler))
		go func() {
			if err := await(token, ErrSubscribe); err != nil {
				c.logger.Warn("mqtt resubscribe failed", "topic", topic, "error", err)
			}
		}()
	}
	return len(c.subs)
}

// Close publishes an "offline" status and disconnects. It is safe to call
// on a nil client and more than once.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}
	if c.connected.Swap(false) {
		c.publishStatus(statusOffline, "graceful_shutdown").WaitTimeout(defaultOpTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMs)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the session is currently up.
func (c *Client) IsConnected() bool {
	return c != nil && c.paho != nil && c.connected.Load() && c.paho.IsConnected()
}

// Reconnects returns how many times the connection was lost.
func (c *Client) Reconnects() uint64 {
	return c.reconnects.Load()
}

// route adapts handler to paho and contains its failures.
func (c *Client) route(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		deliver(c.logger, handler, msg.Topic(), msg.Payload())
	}
}

// deliver runs handler, logging a returned error or a panic.
func deliver(logger Logger, handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("mqtt handler panicked", "topic", topic, "panic", r)
		}
	}()
	if err := handler(topic, payload); err != nil {
		logger.Warn("mqtt handler failed", "topic", topic, "error", err)
	}
}
