package led

import (
	"fmt"
	"time"

	"github.com/nerrad567/gpioled/internal/chardev"
)

// Open implements chardev.Handlers. It attaches the device to the session.
func (d *Device) Open(s *chardev.Session) error {
	s.SetContext(d)
	d.sessions.Add(1)
	return nil
}

// Release implements chardev.Handlers. It detaches the device from the session.
func (d *Device) Release(s *chardev.Session) {
	s.SetContext(nil)
	d.sessions.Add(-1)
}

// Write implements chardev.Handlers.
//
// The first byte of p is the command: CommandOn drives the pin low and
// CommandOff drives it high, since the LED is active-low. Writes never
// touch the toggler.
//
// Returns:
//   - int: 1 on success
//   - error: ErrTransferFault for an empty p, ErrInvalidCommand for any
//     other byte; the pin is unchanged on error
func (d *Device) Write(s *chardev.Session, p []byte) (int, error) {
	dev, ok := s.Context().(*Device)
	if !ok || dev == nil {
		return 0, chardev.ErrNoDevice
	}

	if len(p) == 0 {
		dev.reject(nil, ErrTransferFault)
		return 0, ErrTransferFault
	}

	switch cmd := p[0]; cmd {
	case CommandOn:
		dev.drive(false, SourceCommand)
	case CommandOff:
		dev.drive(true, SourceCommand)
	default:
		err := fmt.Errorf("%w: %#02x", ErrInvalidCommand, cmd)
		dev.reject(&cmd, err)
		return 0, err
	}
	return 1, nil
}

// reject reports a refused write.
func (d *Device) reject(cmd *byte, err error) {
	d.logger.Debug("write rejected", "error", err)
	d.events.Emit(Event{
		Type:    EventCommandRejected,
		Device:  d.opts.Name,
		Time:    time.Now(),
		Source:  SourceCommand,
		High:    d.High(),
		Active:  d.Active(),
		Command: cmd,
		Error:   err.Error(),
	})
}

// ParseCommand maps "on" and "off" to their control bytes.
func ParseCommand(name string) (byte, error) {
	switch name {
	case "on":
		return CommandOn, nil
	case "off":
		return CommandOff, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCommand, name)
}

// Send writes one control byte through a short-lived session on iface, the
// way a node client would. A nil iface means the device is not loaded.
func Send(iface *chardev.Interface, control byte) error {
	if iface == nil {
		return ErrNotLoaded
	}

	s, err := iface.Open()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer s.Close() //nolint:errcheck // Close never fails

	if _, err := s.Write([]byte{control}); err != nil {
		return err
	}
	return nil
}
