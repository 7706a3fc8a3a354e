package led

import (
	"context"
	"sync"
)

// The process-wide device, owned by Init and Exit.
var (
	currentMu sync.Mutex
	current   *Device
)

// Init creates and loads the process-wide device.
//
// A second call while a device is loaded does nothing and returns nil. On
// failure no device is kept and the *StartupError from Load is returned.
func Init(ctx context.Context, opts Options) error {
	currentMu.Lock()
	defer currentMu.Unlock()

	if current != nil {
		return nil
	}

	d, err := New(opts)
	if err != nil {
		return err
	}
	if err := d.Load(ctx); err != nil {
		return err
	}
	current = d
	return nil
}

// Exit unloads and forgets the process-wide device. It is a no-op when no
// device is loaded.
func Exit(ctx context.Context) error {
	currentMu.Lock()
	defer currentMu.Unlock()

	if current == nil {
		return nil
	}
	d := current
	current = nil
	return d.Unload(ctx)
}

// Current returns the loaded process-wide device, or nil.
func Current() *Device {
	currentMu.Lock()
	defer currentMu.Unlock()
	return current
}
