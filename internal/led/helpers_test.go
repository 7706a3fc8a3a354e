package led

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/gpioled/internal/chardev"
	"github.com/nerrad567/gpioled/internal/gpio"
	"github.com/nerrad567/gpioled/internal/hwdesc"
)

// testPin is the line referenced by the test device tree.
const testPin gpio.PinID = 17

// harness wires a Device to in-memory collaborators.
type harness struct {
	alloc  *chardev.Allocator
	reg    *chardev.Registrar
	pub    *chardev.Publisher
	sim    *gpio.SimDriver
	pins   *gpio.Manager
	tree   fstest.MapFS
	clock  *clock.Mock
	logger *recordLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sim := gpio.NewSimDriver(32)
	return &harness{
		alloc: chardev.NewAllocator(),
		reg:   chardev.NewRegistrar(),
		pub:   chardev.NewPublisher(t.TempDir()),
		sim:   sim,
		pins:  gpio.NewManager(sim),
		tree: fstest.MapFS{
			"soc/gpio@7e200000/phandle":     {Data: beCells(1)},
			"soc/gpio@7e200000/#gpio-cells": {Data: beCells(2)},
			"gpioled/compatible":            {Data: []byte("gpioled\x00")},
			"gpioled/led-gpios":             {Data: beCells(1, uint32(testPin), 0)},
		},
		clock:  clock.NewMock(),
		logger: &recordLogger{},
	}
}

// options returns Options using the harness collaborators.
func (h *harness) options() Options {
	return Options{
		Allocator: h.alloc,
		Registrar: h.reg,
		Publisher: h.pub,
		Resolver:  hwdesc.NewDeviceTree(h.tree),
		Pins:      h.pins,
		Clock:     h.clock,
		Logger:    h.logger,
	}
}

// nodePath is where the device node is published.
func (h *harness) nodePath() string {
	return filepath.Join(h.pub.Dir(), DefaultName)
}

// load creates and loads a device, unloading it at cleanup.
func (h *harness) load(t *testing.T, opts Options) *Device {
	t.Helper()

	d, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := d.Load(t.Context()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() {
		if d.Loaded() {
			d.Unload(context.Background()) //nolint:errcheck // test cleanup
		}
	})
	return d
}

// nextWrite waits for the next simulated pin write.
func nextWrite(t *testing.T, writes <-chan gpio.Write) gpio.Write {
	t.Helper()
	select {
	case w := <-writes:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("no pin write within 2s")
		return gpio.Write{}
	}
}

// advanceUntilWrite moves the mock clock one period at a time until the
// toggler writes the pin.
func advanceUntilWrite(t *testing.T, mock *clock.Mock, writes <-chan gpio.Write) gpio.Write {
	t.Helper()
	for i := 0; i < 50; i++ {
		mock.Add(TogglePeriod)
		select {
		case w := <-writes:
			return w
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("toggler did not fire")
	return gpio.Write{}
}

func nodeExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func beCells(values ...uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(out[4*i:], v)
	}
	return out
}

// recordLogger keeps the names of completed undo steps.
type recordLogger struct {
	mu     sync.Mutex
	undone []string
}

func (l *recordLogger) Debug(msg string, args ...any) {
	if msg != "undo step done" {
		return
	}
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "step" {
			if name, ok := args[i+1].(string); ok {
				l.mu.Lock()
				l.undone = append(l.undone, name)
				l.mu.Unlock()
			}
		}
	}
}

func (l *recordLogger) Info(string, ...any)  {}
func (l *recordLogger) Warn(string, ...any)  {}
func (l *recordLogger) Error(string, ...any) {}

func (l *recordLogger) steps() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.undone...)
}
