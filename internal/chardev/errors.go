package chardev

import "errors"

// Domain errors for identity allocation, registration and publication.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrIdentityExhausted is returned when no dynamic major is free.
	ErrIdentityExhausted = errors.New("chardev: no free device identity")

	// ErrRegionBusy is returned when a requested region overlaps an existing one.
	ErrRegionBusy = errors.New("chardev: region busy")

	// ErrInvalidRequest is returned for a request outside the identity space.
	ErrInvalidRequest = errors.New("chardev: invalid identity request")

	// ErrNotAllocated is returned when releasing an identity that is not held.
	ErrNotAllocated = errors.New("chardev: identity not allocated")

	// ErrRegistrationFailed is returned when an interface cannot be bound.
	ErrRegistrationFailed = errors.New("chardev: registration failed")

	// ErrNotRegistered is returned when unregistering an unknown interface.
	ErrNotRegistered = errors.New("chardev: interface not registered")

	// ErrPublishFailed is returned when the visible node cannot be created.
	ErrPublishFailed = errors.New("chardev: publish failed")

	// ErrNoDevice is returned when opening an unregistered interface.
	ErrNoDevice = errors.New("chardev: no such device")

	// ErrSessionClosed is returned by operations on a released session.
	ErrSessionClosed = errors.New("chardev: session closed")
)

// Errors reported by write handlers. Handlers wrap these so the node can
// report a status to the client.
var (
	// ErrInvalidArgument means the written data was understood but rejected.
	ErrInvalidArgument = errors.New("chardev: invalid argument")

	// ErrFault means the written data could not be transferred.
	ErrFault = errors.New("chardev: bad transfer")

	// ErrInternal is reported to clients for any other handler failure.
	ErrInternal = errors.New("chardev: internal error")
)
