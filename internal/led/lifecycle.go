package led

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/gpio"
	"github.com/nerrad567/gpioled/internal/toggler"
)

// Load brings the device up.
//
// Steps run in order, each only if the previous one succeeded: allocate
// identity, register interface, publish node, resolve hardware node,
// resolve pin, claim pin, set direction (output, high), arm toggler. Each
// completed step pushes its undo action; on failure the stack is unwound
// in reverse before Load returns, so nothing acquired stays live.
//
// Parameters:
//   - ctx: Checked before each step; cancellation aborts and unwinds
//
// Returns:
//   - error: *StartupError naming the failed step, or ErrAlreadyLoaded
func (d *Device) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return ErrAlreadyLoaded
	}
	o := d.opts

	// Identity.
	if err := ctx.Err(); err != nil {
		return d.abortLocked(StepAllocateIdentity, err)
	}
	id, err := o.Allocator.Allocate(chardev.Request{
		Major:     o.Major,
		BaseMinor: o.BaseMinor,
		Count:     1,
		Name:      o.Name,
	})
	if err != nil {
		return d.abortLocked(StepAllocateIdentity, err)
	}
	d.identity = id
	d.push("release identity", func() error {
		d.identity = chardev.Identity{}
		return o.Allocator.Release(id)
	})
	d.logger.Debug("identity allocated", "identity", id.String())

	// Interface.
	if err := ctx.Err(); err != nil {
		return d.abortLocked(StepRegisterInterface, err)
	}
	iface, err := o.Registrar.Register(id, d)
	if err != nil {
		return d.abortLocked(StepRegisterInterface, err)
	}
	d.iface = iface
	d.push("unregister interface", func() error {
		d.iface = nil
		return o.Registrar.Unregister(iface)
	})

	// Node.
	if err := ctx.Err(); err != nil {
		return d.abortLocked(StepPublishNode, err)
	}
	node, err := o.Publisher.Publish(iface, o.Name)
	if err != nil {
		return d.abortLocked(StepPublishNode, err)
	}
	d.node = node
	d.push("unpublish node", func() error {
		d.node = nil
		return node.Unpublish()
	})

	// Hardware description.
	if err := ctx.Err(); err != nil {
		return d.abortLocked(StepResolveNode, err)
	}
	hw, err := o.Resolver.ResolveNode(o.NodePath)
	if err != nil {
		return d.abortLocked(StepResolveNode, err)
	}
	pin, err := o.Resolver.ResolveNamedPin(hw, o.PinProperty, o.PinIndex)
	if err != nil {
		return d.abortLocked(StepResolvePin, err)
	}

	// Pin.
	if err := ctx.Err(); err != nil {
		return d.abortLocked(StepClaimPin, err)
	}
	claim, err := o.Pins.Claim(pin, o.Label)
	if err != nil {
		return d.abortLocked(StepClaimPin, err)
	}
	d.pin = pin
	d.claim.Store(claim)
	d.push("release pin", func() error {
		d.claim.Store(nil)
		d.pin = gpio.InvalidPin
		return claim.Release()
	})

	if err := claim.SetDirectionOutput(true); err != nil {
		return d.abortLocked(StepSetDirection, err)
	}
	d.high.Store(true)
	d.emitLevel(true)
	d.push("force pin inactive", func() error {
		d.drive(true, SourceLifecycle)
		return nil
	})

	// Toggler.
	t := toggler.New(o.Clock, TogglePeriod, togglerOutput{d: d})
	if err := t.Arm(); err != nil {
		return d.abortLocked(StepArmToggler, err)
	}
	d.toggler = t
	d.push("cancel toggler", func() error {
		t.Cancel()
		return nil
	})

	d.loaded = true
	d.logger.Info("device loaded",
		"name", o.Name,
		"identity", id.String(),
		"node", node.Path(),
		"pin", int(pin),
	)
	d.events.Emit(Event{Type: EventLoaded, Device: o.Name, Time: time.Now(), High: true})
	return nil
}

// Unload tears the device down: cancel toggler, force the pin inactive,
// release the pin, unpublish the node, unregister the interface, release
// the identity. Every step runs even if an earlier one fails; failures are
// logged and returned together. Teardown always runs to completion
// regardless of ctx.
//
// Returns:
//   - error: ErrNotLoaded, or the combined undo failures
func (d *Device) Unload(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return ErrNotLoaded
	}

	err := d.unwindLocked()
	d.loaded = false
	d.pin = gpio.InvalidPin

	if err != nil {
		d.logger.Error("device unloaded with errors", "name", d.opts.Name, "error", err)
	} else {
		d.logger.Info("device unloaded", "name", d.opts.Name)
	}
	d.events.Emit(Event{Type: EventUnloaded, Device: d.opts.Name, Time: time.Now(), High: d.High(), Active: d.Active()})
	return err
}

// push records the undo action of a completed step. Caller holds d.mu.
func (d *Device) push(name string, fn func() error) {
	d.undo = append(d.undo, undoStep{name: name, fn: fn})
}

// abortLocked unwinds the steps completed so far and wraps err.
// Caller holds d.mu.
func (d *Device) abortLocked(step Step, err error) error {
	startupErr := &StartupError{Step: step, Err: err}

	if undoErr := d.unwindLocked(); undoErr != nil {
		d.logger.Error("unwind after failed load incomplete", "step", string(step), "error", undoErr)
	}
	d.pin = gpio.InvalidPin

	d.logger.Error("device load failed", "name", d.opts.Name, "step", string(step), "error", err)
	d.events.Emit(Event{
		Type:   EventLoadFailed,
		Device: d.opts.Name,
		Time:   time.Now(),
		Error:  startupErr.Error(),
	})
	return startupErr
}

// unwindLocked runs the undo stack in reverse and empties it.
// Caller holds d.mu.
func (d *Device) unwindLocked() error {
	var err error
	for i := len(d.undo) - 1; i >= 0; i-- {
		step := d.undo[i]
		if stepErr := step.fn(); stepErr != nil {
			d.logger.Warn("undo step failed", "step", step.name, "error", stepErr)
			err = multierr.Append(err, fmt.Errorf("%s: %w", step.name, stepErr))
			continue
		}
		d.logger.Debug("undo step done", "step", step.name)
	}
	d.undo = nil
	return err
}

// emitLevel reports a level set outside drive.
func (d *Device) emitLevel(high bool) {
	d.events.Emit(Event{
		Type:   EventLevelChanged,
		Device: d.opts.Name,
		Time:   time.Now(),
		Source: SourceLifecycle,
		High:   high,
		Active: !high,
	})
}
