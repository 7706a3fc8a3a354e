// Package gpio manages exclusive ownership of digital output pins.
//
// A pin goes through three observable states:
//
//	claimed   - Manager.Claim marked it as owned; no hardware access yet
//	directed  - Claim.SetDirectionOutput opened the line as an output and
//	            drove the initial level in the same driver call
//	released  - Claim.Release closed the line and returned it to the pool
//
// Both "claimed but not yet directed" and "directed but release pending" are
// representable and can be aborted with Release at any point, which is what
// the device lifecycle relies on when it unwinds a failed startup.
//
// # Drivers
//
// The Manager talks to hardware through a Driver:
//
//   - CDevDriver (Linux only) opens lines on a GPIO character device such as
//     /dev/gpiochip0 using github.com/mkch/gpio.
//   - SimDriver keeps levels in memory and records every write. It backs the
//     "sim" driver setting and the tests.
//
// # Thread Safety
//
// Manager and Claim methods are safe for concurrent use. Level writes on a
// claim are serialised by a short mutex that covers only the line write.
package gpio
