package gpio

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager tracks which pins are owned and hands out claims.
//
// A pin is claimed by at most one Claim at a time. Releasing the claim makes
// the pin claimable again.
type Manager struct {
	driver Driver
	logger Logger

	mu     sync.Mutex
	claims map[PinID]*Claim
}

// NewManager creates a Manager that opens lines through driver.
func NewManager(driver Driver) *Manager {
	return &Manager{
		driver: driver,
		logger: noopLogger{},
		claims: make(map[PinID]*Claim),
	}
}

// SetLogger sets the logger for the manager and the claims it creates.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Claim marks pin as exclusively owned under label.
//
// No hardware is touched; the line is only opened by SetDirectionOutput.
//
// Returns:
//   - *Claim: ownership handle, released with Release
//   - error: ErrInvalidPin or ErrAlreadyClaimed
func (m *Manager) Claim(pin PinID, label string) (*Claim, error) {
	if !pin.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	if r, ok := m.driver.(ranged); ok && int(pin) >= r.NumLines() {
		return nil, fmt.Errorf("%w: %d (driver has %d lines)", ErrInvalidPin, pin, r.NumLines())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.claims[pin]; ok {
		return nil, fmt.Errorf("%w: pin %d held by %q", ErrAlreadyClaimed, pin, owner.label)
	}

	c := &Claim{
		manager: m,
		pin:     pin,
		label:   label,
	}
	m.claims[pin] = c

	m.logger.Debug("pin claimed", "pin", int(pin), "label", label)
	return c, nil
}

// IsClaimed reports whether pin currently has an owner.
func (m *Manager) IsClaimed(pin PinID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[pin]
	return ok
}

// forget removes c from the claim table if it is still the owner.
func (m *Manager) forget(c *Claim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claims[c.pin] == c {
		delete(m.claims, c.pin)
	}
}

// Claim is exclusive ownership of one pin.
type Claim struct {
	manager *Manager
	pin     PinID
	label   string

	// mu covers line access and the SetLevelFunc hook; it is never held
	// across scheduling.
	mu       sync.Mutex
	line     Line
	released bool
}

// Pin returns the claimed pin identifier.
func (c *Claim) Pin() PinID {
	return c.pin
}

// Label returns the consumer label the pin was claimed with.
func (c *Claim) Label() string {
	return c.label
}

// SetDirectionOutput configures the pin as an output driven to initialHigh.
//
// Configuration and the initial drive happen in a single driver call so the
// pin never assumes a wrong level in between.
//
// Returns:
//   - error: ErrReleased, ErrAlreadyDirected, or ErrHardwareFault wrapping
//     the driver error
func (c *Claim) SetDirectionOutput(initialHigh bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return ErrReleased
	}
	if c.line != nil {
		return ErrAlreadyDirected
	}

	line, err := c.manager.driver.OpenOutput(c.pin, initialHigh, c.label)
	if err != nil {
		return fmt.Errorf("%w: pin %d: %w", ErrHardwareFault, c.pin, err)
	}
	c.line = line

	c.manager.logger.Debug("pin directed as output", "pin", int(c.pin), "high", initialHigh)
	return nil
}

// SetLevel drives the pin high or low and reports whether the write
// reached the line.
//
// It is fire-and-forget: driver errors are logged, not returned. Calling it
// on a released or not yet directed claim is a safe no-op, which covers
// writers racing with shutdown.
func (c *Claim) SetLevel(high bool) bool {
	return c.SetLevelFunc(high, nil)
}

// SetLevelFunc is SetLevel with a hook. onWrite runs after a successful
// write while the claim lock is still held, so bookkeeping done there is
// ordered exactly like the writes to the line. onWrite must not call back
// into the claim.
func (c *Claim) SetLevelFunc(high bool, onWrite func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released || c.line == nil {
		return false
	}
	if err := c.line.SetValue(high); err != nil {
		c.manager.logger.Warn("pin write failed", "pin", int(c.pin), "high", high, "error", err)
		return false
	}
	if onWrite != nil {
		onWrite()
	}
	return true
}

// Directed reports whether the line is open as an output.
func (c *Claim) Directed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.line != nil && !c.released
}

// Release closes the line (if it was opened) and frees the pin.
// Calling Release more than once is a no-op.
func (c *Claim) Release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	line := c.line
	c.line = nil
	c.mu.Unlock()

	var err error
	if line != nil {
		if closeErr := line.Close(); closeErr != nil {
			err = fmt.Errorf("closing pin %d: %w", c.pin, closeErr)
		}
	}
	c.manager.forget(c)

	c.manager.logger.Debug("pin released", "pin", int(c.pin))
	return err
}
