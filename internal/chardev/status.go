package chardev

import (
	"errors"
	"fmt"
)

// Status is the one-byte reply the node sends after every write packet.
type Status byte

// Write statuses.
const (
	StatusOK Status = iota
	StatusInvalidArgument
	StatusFault
	StatusNoDevice
	StatusInternal
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusFault:
		return "bad transfer"
	case StatusNoDevice:
		return "no device"
	case StatusInternal:
		return "internal error"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// StatusOf maps a write handler error to the status reported to the client.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrFault):
		return StatusFault
	case errors.Is(err, ErrNoDevice), errors.Is(err, ErrSessionClosed):
		return StatusNoDevice
	default:
		return StatusInternal
	}
}

// Err maps a status back to its sentinel error; StatusOK maps to nil.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusInvalidArgument:
		return ErrInvalidArgument
	case StatusFault:
		return ErrFault
	case StatusNoDevice:
		return ErrNoDevice
	default:
		return ErrInternal
	}
}
