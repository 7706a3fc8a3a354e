package mqttctl

import (
	"time"

	"github.com/nerrad567/gpioled/internal/led"
)

// CommandMessage is received on gpioled/command/{device}.
type CommandMessage struct {
	// ID correlates the ack; one is generated when empty.
	ID string `json:"id"`

	// Command is "on" or "off".
	Command string `json:"command"`

	// UserID is recorded in the audit log when set.
	UserID string `json:"user_id,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the control byte was written to the device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command was not executed.
	AckFailed AckStatus = "failed"
)

// Ack error codes.
const (
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeInvalidCommand = "invalid_command"
	ErrCodeNotLoaded      = "not_loaded"
	ErrCodeWriteFailed    = "write_failed"
)

// AckMessage is published on gpioled/ack/{device} for every command.
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError describes why a command failed.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage is published retained on gpioled/state/{device}.
type StateMessage struct {
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
	Loaded    bool      `json:"loaded"`
	High      bool      `json:"high"`
	Active    bool      `json:"active"`

	// Source is what caused the last level change, when known.
	Source string `json:"source,omitempty"`
}

// stateFromEvent builds the state published for e; ok is false for events
// that do not change the published state.
func stateFromEvent(e led.Event) (StateMessage, bool) {
	msg := StateMessage{
		Device:    e.Device,
		Timestamp: e.Time,
		High:      e.High,
		Active:    !e.High,
	}
	switch e.Type {
	case led.EventLoaded:
		msg.Loaded = true
	case led.EventLevelChanged:
		msg.Loaded = true
		msg.Source = string(e.Source)
	case led.EventUnloaded:
		msg.Loaded = false
	default:
		return StateMessage{}, false
	}
	return msg, true
}

// stateFromSnapshot builds the state published at startup.
func stateFromSnapshot(s led.Snapshot, now time.Time) StateMessage {
	return StateMessage{
		Device:    s.Name,
		Timestamp: now,
		Loaded:    s.Loaded,
		High:      s.High,
		Active:    s.Active,
	}
}
