// Package toggler drives a pin through alternating levels at a fixed period.
//
// A Toggler moves through three states:
//
//	Unarmed --Arm--> Armed --Cancel--> Cancelled
//	Unarmed --Cancel--> Cancelled
//
// While armed, each firing writes the next level to the pin, flips it and
// schedules the following firing one period after the current clock time.
// Cancel stops the schedule and waits for an in-flight firing, so once it
// returns the pin is never written by the toggler again.
package toggler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrInvalidState is returned by Arm when the toggler is not Unarmed.
var ErrInvalidState = errors.New("toggler: invalid state")

// ErrInvalidPeriod is returned by Arm for a non-positive period.
var ErrInvalidPeriod = errors.New("toggler: period must be positive")

// State is the lifecycle state of a Toggler.
type State int

// Toggler states.
const (
	Unarmed State = iota
	Armed
	Cancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Unarmed:
		return "unarmed"
	case Armed:
		return "armed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Setter is the pin the toggler drives.
type Setter interface {
	SetLevel(high bool)
}

// Toggler periodically inverts a pin.
//
// Thread Safety: all methods are safe for concurrent use.
type Toggler struct {
	clock  clock.Clock
	period time.Duration
	pin    Setter

	mu      sync.Mutex
	state   State
	next    bool // level written by the next firing
	timer   *clock.Timer
	firings uint64

	stop chan struct{}
	done chan struct{}
}

// New creates an unarmed toggler. A nil clk uses the wall clock.
//
// The first firing drives the pin low.
func New(clk clock.Clock, period time.Duration, pin Setter) *Toggler {
	if clk == nil {
		clk = clock.New()
	}
	return &Toggler{
		clock:  clk,
		period: period,
		pin:    pin,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Period returns the firing interval.
func (t *Toggler) Period() time.Duration {
	return t.period
}

// Arm schedules the first firing one period from now.
//
// Returns:
//   - error: ErrInvalidState unless Unarmed, ErrInvalidPeriod for a
//     non-positive period
func (t *Toggler) Arm() error {
	if t.period <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, t.period)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Unarmed {
		return fmt.Errorf("%w: arm from %s", ErrInvalidState, t.state)
	}
	t.state = Armed
	t.timer = t.clock.Timer(t.period)

	go t.run()
	return nil
}

// Cancel stops the toggler. It blocks until any in-flight firing has
// returned. Only the first call has an effect.
func (t *Toggler) Cancel() {
	t.mu.Lock()
	prev := t.state
	t.state = Cancelled
	timer := t.timer
	t.timer = nil
	t.mu.Unlock()

	if prev == Cancelled {
		return
	}
	if timer != nil {
		timer.Stop()
	}
	if prev == Armed {
		close(t.stop)
		<-t.done
	}
}

// State returns the current state.
func (t *Toggler) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Firings returns how many times the pin has been written.
func (t *Toggler) Firings() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firings
}

// run waits for each scheduled firing until cancelled.
func (t *Toggler) run() {
	defer close(t.done)

	for {
		t.mu.Lock()
		timer := t.timer
		t.mu.Unlock()
		if timer == nil {
			return
		}

		select {
		case <-t.stop:
			return
		case <-timer.C:
			t.fire()
		}
	}
}

// fire writes the next level and re-arms. The pin write happens outside
// t.mu so State and Cancel never wait on the hardware.
func (t *Toggler) fire() {
	t.mu.Lock()
	if t.state != Armed {
		t.mu.Unlock()
		return
	}
	level := t.next
	t.next = !level
	t.firings++
	t.mu.Unlock()

	t.pin.SetLevel(level)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Armed {
		t.timer = t.clock.Timer(t.period)
	}
}
