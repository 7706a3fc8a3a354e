// Package history feeds pin level changes into the time-series store.
package history

import (
	"sync/atomic"
	"time"

	"github.com/nerrad567/gpioled/internal/led"
)

// LevelWriter stores one level sample. Implementations must not block;
// influxdb.Client satisfies it.
type LevelWriter interface {
	WriteLevel(device, source string, high, active bool, t time.Time)
}

// Recorder is a led.Observer that writes every level change to a
// LevelWriter, including toggler firings.
type Recorder struct {
	w       LevelWriter
	written atomic.Uint64
}

// NewRecorder returns a recorder writing to w.
func NewRecorder(w LevelWriter) *Recorder {
	return &Recorder{w: w}
}

// HandleEvent implements led.Observer.
func (r *Recorder) HandleEvent(e led.Event) {
	if e.Type != led.EventLevelChanged {
		return
	}
	r.w.WriteLevel(e.Device, string(e.Source), e.High, e.Active, e.Time)
	r.written.Add(1)
}

// Written returns how many samples were handed to the writer.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}
