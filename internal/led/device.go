package led

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/gpio"
	"github.com/nerrad567/gpioled/internal/hwdesc"
	"github.com/nerrad567/gpioled/internal/toggler"
)

// TogglePeriod is the fixed blink interval.
const TogglePeriod = 500 * time.Millisecond

// Control bytes accepted by the write handler.
const (
	CommandOff byte = 0
	CommandOn  byte = 1
)

// Defaults applied by New for empty Options fields.
const (
	DefaultName        = "led"
	DefaultNodePath    = "/gpioled"
	DefaultPinProperty = "led-gpios"
	DefaultLabel       = "led"
)

// Logger defines the logging interface used by the device.
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

// IdentityAllocator reserves device identities. *chardev.Allocator implements it.
type IdentityAllocator interface {
	Allocate(req chardev.Request) (chardev.Identity, error)
	Release(id chardev.Identity) error
}

// InterfaceRegistrar binds handlers to identities. *chardev.Registrar implements it.
type InterfaceRegistrar interface {
	Register(id chardev.Identity, h chardev.Handlers) (*chardev.Interface, error)
	Unregister(iface *chardev.Interface) error
}

// NodePublisher makes interfaces visible. *chardev.Publisher implements it.
type NodePublisher interface {
	Publish(iface *chardev.Interface, name string) (*chardev.Node, error)
}

// PinClaimer hands out exclusive pin claims. *gpio.Manager implements it.
type PinClaimer interface {
	Claim(pin gpio.PinID, label string) (*gpio.Claim, error)
}

// Options configures a Device.
type Options struct {
	// Name is the node name and the identity region name.
	Name string

	// Major is the preferred major number; zero allocates one dynamically.
	Major uint32

	// BaseMinor is the first minor of the identity region.
	BaseMinor uint32

	// NodePath is the hardware description node holding the pin property.
	NodePath string

	// PinProperty and PinIndex select the pin within the node.
	PinProperty string
	PinIndex    int

	// Label is the consumer label the pin is claimed under.
	Label string

	Allocator IdentityAllocator
	Registrar InterfaceRegistrar
	Publisher NodePublisher
	Resolver  hwdesc.Resolver
	Pins      PinClaimer

	// Clock drives the toggler; nil uses the wall clock.
	Clock clock.Clock

	// Events receives device events; nil discards them.
	Events Emitter

	// Logger receives lifecycle logs; nil discards them.
	Logger Logger
}

// undoStep is one entry of the unwind stack.
type undoStep struct {
	name string
	fn   func() error
}

// Device is the LED controller.
//
// Load acquires every resource in order and Unload releases them in
// reverse. Writes arrive through sessions on the published node and go
// straight to the pin; the toggler drives the same pin independently.
//
// Thread Safety: all methods are safe for concurrent use. The write path
// never takes the lifecycle lock, so Unload can wait for sessions to end.
type Device struct {
	opts   Options
	logger Logger
	events Emitter

	// mu serialises Load and Unload.
	mu       sync.Mutex
	loaded   bool
	undo     []undoStep
	identity chardev.Identity
	iface    *chardev.Interface
	node     *chardev.Node
	pin      gpio.PinID
	toggler  *toggler.Toggler

	claim    atomic.Pointer[gpio.Claim]
	high     atomic.Bool
	sessions atomic.Int64
}

// New validates opts and creates an unloaded device.
//
// Parameters:
//   - opts: Collaborators and naming; Allocator, Registrar, Publisher,
//     Resolver and Pins are required
//
// Returns:
//   - *Device: Device ready to Load
//   - error: If a required collaborator is missing
func New(opts Options) (*Device, error) {
	switch {
	case opts.Allocator == nil:
		return nil, fmt.Errorf("led: identity allocator is required")
	case opts.Registrar == nil:
		return nil, fmt.Errorf("led: interface registrar is required")
	case opts.Publisher == nil:
		return nil, fmt.Errorf("led: node publisher is required")
	case opts.Resolver == nil:
		return nil, fmt.Errorf("led: hardware resolver is required")
	case opts.Pins == nil:
		return nil, fmt.Errorf("led: pin manager is required")
	}

	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.NodePath == "" {
		opts.NodePath = DefaultNodePath
	}
	if opts.PinProperty == "" {
		opts.PinProperty = DefaultPinProperty
	}
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Events == nil {
		opts.Events = noopEmitter{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	d := &Device{
		opts:   opts,
		logger: opts.Logger,
		events: opts.Events,
		pin:    gpio.InvalidPin,
	}
	d.high.Store(true)
	return d, nil
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.opts.Name
}

// Loaded reports whether the device is live.
func (d *Device) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Identity returns the allocated identity; zero when not loaded.
func (d *Device) Identity() chardev.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.identity
}

// Interface returns the registered interface, or nil when not loaded.
func (d *Device) Interface() *chardev.Interface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iface
}

// NodePath returns the published node path, or "" when not loaded.
func (d *Device) NodePath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.node == nil {
		return ""
	}
	return d.node.Path()
}

// Pin returns the claimed pin, or gpio.InvalidPin when not loaded.
func (d *Device) Pin() gpio.PinID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pin
}

// TogglerState returns the toggler state; Unarmed when never loaded.
func (d *Device) TogglerState() toggler.State {
	d.mu.Lock()
	t := d.toggler
	d.mu.Unlock()
	if t == nil {
		return toggler.Unarmed
	}
	return t.State()
}

// High reports the last level driven onto the pin.
func (d *Device) High() bool {
	return d.high.Load()
}

// Active reports whether the LED is lit. The LED is active-low.
func (d *Device) Active() bool {
	return !d.high.Load()
}

// Sessions returns the number of open sessions.
func (d *Device) Sessions() int64 {
	return d.sessions.Load()
}

// Snapshot is a point-in-time view of the device.
type Snapshot struct {
	Name     string `json:"name"`
	Loaded   bool   `json:"loaded"`
	Identity string `json:"identity,omitempty"`
	Node     string `json:"node,omitempty"`
	Pin      int    `json:"pin"`
	High     bool   `json:"high"`
	Active   bool   `json:"active"`
	Toggler  string `json:"toggler"`
	Sessions int64  `json:"sessions"`
}

// Snapshot returns the current device state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	s := Snapshot{
		Name:   d.opts.Name,
		Loaded: d.loaded,
		Pin:    int(d.pin),
	}
	if d.loaded {
		s.Identity = d.identity.String()
	}
	if d.node != nil {
		s.Node = d.node.Path()
	}
	t := d.toggler
	d.mu.Unlock()

	s.Toggler = toggler.Unarmed.String()
	if t != nil {
		s.Toggler = t.State().String()
	}
	s.High = d.High()
	s.Active = d.Active()
	s.Sessions = d.Sessions()
	return s
}

// drive writes level to the pin and reports the change. The recorded level
// and the event follow the line under the claim lock, so concurrent writers
// cannot leave them disagreeing. Nothing is recorded when the pin is not
// claimed or the write did not happen.
func (d *Device) drive(high bool, source Source) {
	c := d.claim.Load()
	if c == nil {
		return
	}
	c.SetLevelFunc(high, func() {
		d.high.Store(high)
		d.events.Emit(Event{
			Type:   EventLevelChanged,
			Device: d.opts.Name,
			Time:   time.Now(),
			Source: source,
			High:   high,
			Active: !high,
		})
	})
}

// togglerOutput feeds toggler firings through drive.
type togglerOutput struct {
	d *Device
}

func (o togglerOutput) SetLevel(high bool) {
	o.d.drive(high, SourceToggler)
}
