package mqttctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gpioled/internal/audit"
	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/infrastructure/mqtt"
	"github.com/nerrad567/gpioled/internal/led"
)

// ActionMQTTCommand is the audit action recorded for accepted commands.
const ActionMQTTCommand = "mqtt_command"

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Target is the device commands are executed against. *led.Device
// satisfies it.
type Target interface {
	Name() string
	Interface() *chardev.Interface
	Snapshot() led.Snapshot
}

// Auditor records accepted commands. *audit.Recorder satisfies it.
type Auditor interface {
	Record(entry *audit.AuditLog)
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge.
type Options struct {
	Client MQTTClient
	Target Target

	// Auditor is optional.
	Auditor Auditor

	// Logger is optional.
	Logger Logger

	// QoS is used for every publish and subscription.
	QoS byte
}

// Bridge connects the device to MQTT.
//
// It is a led.Observer: every loaded, unloaded and level change event is
// published as retained state. Commands received on the device's command
// topic are executed through an ordinary interface session, so they follow
// exactly the rules of a node client, and each gets an ack.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	client  MQTTClient
	target  Target
	auditor Auditor
	logger  Logger
	qos     byte
	topics  mqtt.Topics

	stopped  atomic.Bool
	received atomic.Uint64
	failed   atomic.Uint64
}

// New creates a bridge. Client and Target are required.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil || opts.Target == nil {
		return nil, errors.New("mqttctl: client and target are required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Bridge{
		client:  opts.Client,
		target:  opts.Target,
		auditor: opts.Auditor,
		logger:  opts.Logger,
		qos:     opts.QoS,
	}, nil
}

// Start subscribes to the command topic and publishes the current state.
func (b *Bridge) Start(_ context.Context) error {
	topic := b.topics.Command(b.target.Name())
	if err := b.client.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.Resync()
	return nil
}

// Resync publishes the device's current state. It runs at Start and after
// each broker reconnect, since state changes during an outage were not
// delivered.
func (b *Bridge) Resync() {
	if b.stopped.Load() {
		return
	}
	b.publishState(stateFromSnapshot(b.target.Snapshot(), time.Now()))
}

// Stop makes the bridge ignore further events and commands.
func (b *Bridge) Stop() {
	if b.stopped.CompareAndSwap(false, true) {
		b.logger.Info("mqtt bridge stopped",
			"commands", b.received.Load(),
			"failed", b.failed.Load())
	}
}

// HandleEvent implements led.Observer.
func (b *Bridge) HandleEvent(e led.Event) {
	if b.stopped.Load() {
		return
	}
	if msg, ok := stateFromEvent(e); ok {
		b.publishState(msg)
	}
}

func (b *Bridge) publishState(msg StateMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal state", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.State(msg.Device), payload, b.qos, true); err != nil {
		b.logger.Warn("failed to publish state", "device", msg.Device, "error", err)
	}
}

// handleCommand is the MQTT handler for the command topic.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	if b.stopped.Load() {
		return nil
	}
	b.received.Add(1)

	name := b.target.Name()
	if device, ok := mqtt.DeviceFromTopic(topic); !ok || device != name {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		cmd.ID = newCommandID()
		b.fail(cmd, ErrCodeInvalidPayload, err)
		return nil
	}
	if cmd.ID == "" {
		cmd.ID = newCommandID()
	}

	b.logger.Info("received command", "command_id", cmd.ID, "command", cmd.Command)

	if err := b.execute(cmd.Command); err != nil {
		code := ErrCodeWriteFailed
		switch {
		case errors.Is(err, led.ErrInvalidCommand):
			code = ErrCodeInvalidCommand
		case errors.Is(err, led.ErrNotLoaded), errors.Is(err, chardev.ErrNoDevice):
			code = ErrCodeNotLoaded
		}
		b.fail(cmd, code, err)
		return nil
	}

	b.publishAck(AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now(),
		Device:    name,
		Status:    AckAccepted,
	})

	if b.auditor != nil {
		b.auditor.Record(&audit.AuditLog{
			Action:   ActionMQTTCommand,
			EntityID: name,
			UserID:   cmd.UserID,
			Source:   "mqtt",
			Details:  map[string]any{"command_id": cmd.ID, "command": cmd.Command},
		})
	}
	return nil
}

// execute writes the control byte for command through a fresh session.
func (b *Bridge) execute(command string) error {
	control, err := led.ParseCommand(command)
	if err != nil {
		return err
	}
	return led.Send(b.target.Interface(), control)
}

func (b *Bridge) fail(cmd CommandMessage, code string, err error) {
	b.failed.Add(1)
	b.logger.Warn("command failed", "command_id", cmd.ID, "code", code, "error", err)
	b.publishAck(AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now(),
		Device:    b.target.Name(),
		Status:    AckFailed,
		Error:     &AckError{Code: code, Message: err.Error()},
	})
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.Ack(ack.Device), payload, b.qos, false); err != nil {
		b.logger.Warn("failed to publish ack", "command_id", ack.CommandID, "error", err)
	}
}

func newCommandID() string {
	return "cmd-" + uuid.NewString()[:8]
}
