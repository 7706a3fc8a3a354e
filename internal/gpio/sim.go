package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLineBusy is returned by SimDriver when a line is opened twice.
var ErrLineBusy = errors.New("gpio: line busy")

// DefaultSimHistory is how many writes a SimDriver keeps in its log.
const DefaultSimHistory = 1024

// Write is one recorded level change on a simulated line.
type Write struct {
	Pin  PinID
	High bool
	At   time.Time
}

// SimDriver is an in-memory Driver.
//
// It keeps the current level of every line, whether the line is open, and a
// log of the most recent writes including the initial drive done by
// OpenOutput. The log holds at most DefaultSimHistory entries unless
// SetHistory says otherwise.
type SimDriver struct {
	lines int

	mu       sync.Mutex
	levels   map[PinID]bool
	open     map[PinID]bool
	writes   []Write
	history  int
	total    uint64
	failOpen error
	notify   chan Write
}

// NewSimDriver creates a simulated chip with the given number of lines.
// All lines start high, which is the idle level of pulled-up outputs.
func NewSimDriver(lines int) *SimDriver {
	levels := make(map[PinID]bool, lines)
	for i := 0; i < lines; i++ {
		levels[PinID(i)] = true
	}
	return &SimDriver{
		lines:   lines,
		levels:  levels,
		open:    make(map[PinID]bool),
		history: DefaultSimHistory,
	}
}

// NumLines returns the number of simulated lines.
func (d *SimDriver) NumLines() int {
	return d.lines
}

// SetHistory keeps only the last n writes in the log; n <= 0 disables the
// log. Entries beyond the new limit are dropped oldest first.
func (d *SimDriver) SetHistory(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = max(n, 0)
	d.trimLocked()
}

// FailOpen makes subsequent OpenOutput calls fail with err (nil clears it).
func (d *SimDriver) FailOpen(err error) {
	d.mu.Lock()
	d.failOpen = err
	d.mu.Unlock()
}

// Notify returns a channel receiving every write. Sends never block; a
// write is dropped if the channel buffer is full.
func (d *SimDriver) Notify(buffer int) <-chan Write {
	ch := make(chan Write, buffer)
	d.mu.Lock()
	d.notify = ch
	d.mu.Unlock()
	return ch
}

// OpenOutput implements Driver.
func (d *SimDriver) OpenOutput(pin PinID, initialHigh bool, _ string) (Line, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failOpen != nil {
		return nil, d.failOpen
	}
	if int(pin) >= d.lines || !pin.Valid() {
		return nil, fmt.Errorf("line %d out of range", pin)
	}
	if d.open[pin] {
		return nil, fmt.Errorf("%w: %d", ErrLineBusy, pin)
	}

	d.open[pin] = true
	d.recordLocked(pin, initialHigh)
	return &simLine{driver: d, pin: pin}, nil
}

// Level returns the current level of pin.
func (d *SimDriver) Level(pin PinID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.levels[pin]
}

// IsOpen reports whether pin is currently held open by a Line.
func (d *SimDriver) IsOpen(pin PinID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open[pin]
}

// Writes returns a copy of the write log, oldest first.
func (d *SimDriver) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Write, len(d.writes))
	copy(out, d.writes)
	return out
}

// WriteCount returns how many writes were made, including those no longer
// in the log.
func (d *SimDriver) WriteCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

// recordLocked stores a level change. Caller holds d.mu.
func (d *SimDriver) recordLocked(pin PinID, high bool) {
	d.levels[pin] = high
	d.total++
	w := Write{Pin: pin, High: high, At: time.Now()}
	if d.history > 0 {
		d.writes = append(d.writes, w)
		d.trimLocked()
	}
	if d.notify != nil {
		select {
		case d.notify <- w:
		default:
		}
	}
}

// trimLocked drops the oldest writes beyond the history limit.
func (d *SimDriver) trimLocked() {
	excess := len(d.writes) - d.history
	if excess <= 0 {
		return
	}
	if d.history == 0 {
		d.writes = nil
		return
	}
	// Reslicing eats spare capacity, so append moves the log to a fresh
	// array and lets the old one go well before it can grow unbounded.
	d.writes = d.writes[excess:]
}

// simLine is a Line on a SimDriver.
type simLine struct {
	driver *SimDriver
	pin    PinID
	closed bool
}

func (l *simLine) SetValue(high bool) error {
	l.driver.mu.Lock()
	defer l.driver.mu.Unlock()
	if l.closed {
		return errors.New("line closed")
	}
	l.driver.recordLocked(l.pin, high)
	return nil
}

func (l *simLine) Close() error {
	l.driver.mu.Lock()
	defer l.driver.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	delete(l.driver.open, l.pin)
	return nil
}
