package gpio

import "strconv"

// PinID identifies a single digital line on the configured chip.
// Negative values mean "unresolved" and are never claimable.
type PinID int

// InvalidPin is the zero-knowledge value for an unresolved pin.
const InvalidPin PinID = -1

// Valid reports whether the identifier can refer to a real line.
func (p PinID) Valid() bool {
	return p >= 0
}

// String implements fmt.Stringer.
func (p PinID) String() string {
	if !p.Valid() {
		return "invalid"
	}
	return strconv.Itoa(int(p))
}

// Driver opens hardware lines for the Manager.
type Driver interface {
	// OpenOutput configures the line as an output and drives it to the
	// initial level in one operation, so the pin never floats between
	// configuration and first write.
	OpenOutput(pin PinID, initialHigh bool, consumer string) (Line, error)
}

// Line is an open output line.
type Line interface {
	// SetValue drives the line high (true) or low (false).
	SetValue(high bool) error

	// Close releases the line back to the kernel.
	Close() error
}

// ranged is implemented by drivers that know how many lines they expose.
type ranged interface {
	NumLines() int
}
