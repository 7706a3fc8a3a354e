package hwdesc

import (
	"errors"
	"fmt"
)

// Domain errors for hardware description lookups.
//
// Every lookup failure wraps ErrConfiguration together with one of the
// precise causes, so callers can match either:
//
//	if errors.Is(err, hwdesc.ErrConfiguration) {
//	    // the board description does not describe the device
//	}
var (
	// ErrConfiguration is returned for any description that cannot yield a pin.
	ErrConfiguration = errors.New("hwdesc: configuration error")

	// ErrNodeNotFound is returned when no node exists at the requested path.
	ErrNodeNotFound = errors.New("hwdesc: node not found")

	// ErrPropertyNotFound is returned when the node lacks the property, or the
	// requested index is past the end of the property.
	ErrPropertyNotFound = errors.New("hwdesc: property not found")

	// ErrMalformedProperty is returned when property data cannot be decoded.
	ErrMalformedProperty = errors.New("hwdesc: malformed property")
)

// configError wraps cause in ErrConfiguration with a formatted detail.
func configError(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfiguration, cause, fmt.Sprintf(format, args...))
}
