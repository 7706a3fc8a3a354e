//go:build !linux

package gpio

import "errors"

// ErrUnsupported is returned when the character-device driver is requested
// on a platform without the Linux GPIO uAPI.
var ErrUnsupported = errors.New("gpio: character device driver requires linux")

// CDevDriver is unavailable on this platform.
type CDevDriver struct{}

// NewCDevDriver always fails on this platform; use the sim driver instead.
func NewCDevDriver(string) (*CDevDriver, error) {
	return nil, ErrUnsupported
}

// OpenOutput implements Driver.
func (*CDevDriver) OpenOutput(PinID, bool, string) (Line, error) {
	return nil, ErrUnsupported
}
