package chardev

import (
	"fmt"
	"sync"
)

// Handlers are the operations bound to an identity.
//
// Open is called once per session before any write, Write once per write
// invocation, and Release once when the session ends. Implementations must
// be safe for concurrent use by independent sessions.
type Handlers interface {
	Open(s *Session) error
	Write(s *Session, p []byte) (int, error)
	Release(s *Session)
}

// Registrar binds Handlers to identities.
//
// Thread Safety: all methods are safe for concurrent use.
type Registrar struct {
	mu    sync.Mutex
	bound map[Identity]*Interface
}

// NewRegistrar creates an empty interface registrar.
func NewRegistrar() *Registrar {
	return &Registrar{bound: make(map[Identity]*Interface)}
}

// Register binds h to id.
//
// Returns:
//   - *Interface: The live interface, used to open sessions and to publish a node
//   - error: ErrRegistrationFailed if h is nil or id is already bound
func (r *Registrar) Register(id Identity, h Handlers) (*Interface, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: %s: nil handlers", ErrRegistrationFailed, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bound[id]; ok {
		return nil, fmt.Errorf("%w: %s already bound", ErrRegistrationFailed, id)
	}

	iface := &Interface{id: id, handlers: h}
	r.bound[id] = iface
	return iface, nil
}

// Unregister unbinds iface. Sessions can no longer be opened on it and live
// sessions fail further writes with ErrNoDevice.
func (r *Registrar) Unregister(iface *Interface) error {
	if iface == nil {
		return fmt.Errorf("%w: nil interface", ErrNotRegistered)
	}

	r.mu.Lock()
	if r.bound[iface.id] != iface {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, iface.id)
	}
	delete(r.bound, iface.id)
	r.mu.Unlock()

	iface.mu.Lock()
	iface.removed = true
	iface.mu.Unlock()
	return nil
}

// Lookup returns the interface bound to id.
func (r *Registrar) Lookup(id Identity) (*Interface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iface, ok := r.bound[id]
	return iface, ok
}

// Len returns the number of bound interfaces.
func (r *Registrar) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}

// Interface is a registered set of handlers.
type Interface struct {
	id       Identity
	handlers Handlers

	mu      sync.RWMutex
	removed bool
}

// Identity returns the identity the interface is bound to.
func (i *Interface) Identity() Identity {
	return i.id
}

// Registered reports whether the interface is still bound.
func (i *Interface) Registered() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return !i.removed
}

// Open starts a session, running the Open handler.
//
// Returns:
//   - *Session: The open session; the caller must Close it
//   - error: ErrNoDevice once unregistered, or the Open handler's error
func (i *Interface) Open() (*Session, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.removed {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, i.id)
	}

	s := &Session{iface: i}
	if err := i.handlers.Open(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Session is one open use of an interface.
type Session struct {
	iface *Interface

	mu     sync.Mutex
	value  any
	closed bool
}

// SetContext attaches v to the session. Handlers use it to find the device
// the session operates on.
func (s *Session) SetContext(v any) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

// Context returns the value attached with SetContext, or nil.
func (s *Session) Context() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Interface returns the interface the session was opened on.
func (s *Session) Interface() *Interface {
	return s.iface
}

// Write passes p to the Write handler.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrSessionClosed
	}

	s.iface.mu.RLock()
	defer s.iface.mu.RUnlock()
	if s.iface.removed {
		return 0, fmt.Errorf("%w: %s", ErrNoDevice, s.iface.id)
	}
	return s.iface.handlers.Write(s, p)
}

// Close ends the session, running the Release handler exactly once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.iface.handlers.Release(s)
	return nil
}
