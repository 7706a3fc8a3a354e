package mqtt

import "errors"

// Errors returned by the client. Operation failures wrap both the
// operation's sentinel and the cause, so errors.Is matches either.
var (
	ErrNotConnected = errors.New("mqtt: not connected to broker")
	ErrConnect      = errors.New("mqtt: connect")
	ErrPublish      = errors.New("mqtt: publish")
	ErrSubscribe    = errors.New("mqtt: subscribe")
	ErrUnsubscribe  = errors.New("mqtt: unsubscribe")

	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
	ErrTooLarge     = errors.New("mqtt: payload too large")

	// ErrTimeout means the broker did not acknowledge in time.
	ErrTimeout = errors.New("mqtt: no acknowledgement")
)
