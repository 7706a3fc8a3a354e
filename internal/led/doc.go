// Package led is the LED controller: one active-low output pin driven by
// user writes and by a 500ms blink toggler.
//
// The Device owns every resource it acquires. Load runs the startup steps
// in order and records an undo action for each; any failure unwinds the
// completed steps in reverse before Load returns. Unload runs the full
// unwind. The process normally uses the singleton entry points:
//
//	if err := led.Init(ctx, opts); err != nil {
//	    return err
//	}
//	defer led.Exit(context.Background())
//
// # Control Bytes
//
// A session write of CommandOn (1) drives the pin low and lights the LED.
// CommandOff (0) drives it high. Anything else fails with ErrInvalidCommand
// and an empty write with ErrTransferFault; neither changes the pin.
//
// # Events
//
// Level changes and lifecycle transitions are emitted to Options.Events.
// Bus is the standard Emitter: it queues events and delivers them to
// observers on its own goroutine, dropping them when the queue is full.
//
// Thread Safety: Device and Bus are safe for concurrent use.
package led
