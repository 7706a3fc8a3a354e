package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gpioled/internal/led"
)

// DefaultRecorderBuffer is the queue size used when none is given.
const DefaultRecorderBuffer = 256

// writeTimeout bounds each database insert.
const writeTimeout = 5 * time.Second

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder writes audit entries asynchronously.
//
// It is a led.Observer: lifecycle transitions, command-driven level changes
// and rejected commands are recorded. Toggler firings and lifecycle level
// changes are not. Entries queue on a buffered channel and a single
// goroutine writes them serially; when the queue is full the entry is
// dropped and counted.
//
// Thread Safety: all methods are safe for concurrent use.
type Recorder struct {
	repo   Repository
	logger Logger
	queue  chan *AuditLog

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	done    chan struct{}
	once    sync.Once
}

// NewRecorder creates a recorder and starts its writer goroutine.
func NewRecorder(repo Repository, buffer int, logger Logger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultRecorderBuffer
	}
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan *AuditLog, buffer),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

// HandleEvent implements led.Observer.
func (r *Recorder) HandleEvent(e led.Event) {
	entry, ok := entryFor(e)
	if !ok {
		return
	}
	r.Record(entry)
}

// Record queues entry for writing (best-effort). It is a no-op after Close.
func (r *Recorder) Record(entry *AuditLog) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- entry:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("audit queue full, dropping entry", "action", entry.Action, "dropped", n)
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting entries, writes those already queued and waits.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	<-r.done
}

func (r *Recorder) drain() {
	defer close(r.done)
	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Create(ctx, entry); err != nil {
			r.logger.Error("audit log write failed", "action", entry.Action, "error", err)
		}
		cancel()
	}
}

// entryFor maps a device event to an audit entry; ok is false for events
// that are not audited.
func entryFor(e led.Event) (*AuditLog, bool) {
	entry := &AuditLog{
		Action:     string(e.Type),
		EntityType: EntityDevice,
		EntityID:   e.Device,
		Source:     string(led.SourceLifecycle),
		CreatedAt:  e.Time,
	}

	switch e.Type {
	case led.EventLoaded, led.EventUnloaded:
		entry.Details = map[string]any{"high": e.High}
	case led.EventLoadFailed:
		entry.Details = map[string]any{"error": e.Error}
	case led.EventLevelChanged:
		if e.Source != led.SourceCommand {
			return nil, false
		}
		entry.Source = string(e.Source)
		entry.Details = map[string]any{"high": e.High, "active": e.Active}
	case led.EventCommandRejected:
		entry.Source = string(led.SourceCommand)
		entry.Details = map[string]any{"error": e.Error}
		if e.Command != nil {
			entry.Details["command"] = int(*e.Command)
		}
	default:
		return nil, false
	}
	return entry, true
}
