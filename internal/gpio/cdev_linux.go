//go:build linux

package gpio

import (
	"fmt"

	cdev "github.com/mkch/gpio"
)

// CDevDriver opens lines on a Linux GPIO character device, for example
// /dev/gpiochip0, through the kernel's line-handle ioctl interface.
type CDevDriver struct {
	chipPath string
}

// NewCDevDriver creates a driver for the chip at chipPath.
func NewCDevDriver(chipPath string) (*CDevDriver, error) {
	if chipPath == "" {
		return nil, fmt.Errorf("gpio: chip path is required")
	}
	return &CDevDriver{chipPath: chipPath}, nil
}

// OpenOutput implements Driver. The kernel applies the direction and the
// default value in the same line request.
func (d *CDevDriver) OpenOutput(pin PinID, initialHigh bool, consumer string) (Line, error) {
	chip, err := cdev.OpenChip(d.chipPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", d.chipPath, err)
	}
	// The line handle stays valid after the chip descriptor is closed.
	defer chip.Close() //nolint:errcheck // line already holds its own descriptor

	line, err := chip.OpenLine(uint32(pin), levelByte(initialHigh), cdev.Output, consumer) // #nosec G115 -- pin validated non-negative by Manager
	if err != nil {
		return nil, fmt.Errorf("requesting line %d on %s: %w", pin, d.chipPath, err)
	}
	return &cdevLine{line: line}, nil
}

// cdevLine adapts a character-device line handle to Line.
type cdevLine struct {
	line *cdev.Line
}

func (l *cdevLine) SetValue(high bool) error {
	return l.line.SetValue(levelByte(high))
}

func (l *cdevLine) Close() error {
	return l.line.Close()
}

func levelByte(high bool) byte {
	if high {
		return 1
	}
	return 0
}
