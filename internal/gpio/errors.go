package gpio

import "errors"

// Domain errors for pin ownership.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, gpio.ErrAlreadyClaimed) {
//	    // another owner holds the pin
//	}
var (
	// ErrInvalidPin is returned when a pin identifier is negative or outside
	// the range the driver supports.
	ErrInvalidPin = errors.New("gpio: invalid pin")

	// ErrAlreadyClaimed is returned when claiming a pin that is already owned.
	ErrAlreadyClaimed = errors.New("gpio: pin already claimed")

	// ErrHardwareFault is returned when the driver fails to configure a line.
	ErrHardwareFault = errors.New("gpio: hardware fault")

	// ErrReleased is returned when configuring a claim that was released.
	ErrReleased = errors.New("gpio: claim released")

	// ErrAlreadyDirected is returned when SetDirectionOutput is called twice.
	ErrAlreadyDirected = errors.New("gpio: direction already set")
)
