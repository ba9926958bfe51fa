package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SessionRefLen is how many leading characters of a session key survive
// redaction. Shorter refs are dropped entirely.
const SessionRefLen = 8

const defaultFlushTimeout = 2 * time.Second

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// FlushTimeout bounds how long Close waits for queued events to reach
	// the sink. Events still queued afterwards are counted as dropped.
	FlushTimeout time.Duration
}

// Dispatcher forwards QR handshake events to a sink on its own goroutine.
// Session keys are redacted before an event is queued, so no sink sees a
// usable bearer key.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	queue     chan Event
	done      chan struct{}
	drained   chan struct{}
	dropped   atomic.Uint64
	closed    atomic.Bool
	abandoned atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		queue:   make(chan Event, cfg.BufferSize),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer close(d.drained)

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// deliver hands one event to the sink unless Close already gave up on the
// backlog.
func (d *Dispatcher) deliver(event Event) {
	if d.abandoned.Load() {
		d.dropped.Add(1)
		return
	}
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull a full queue drops the event;
// otherwise Emit waits for room, ctx cancellation or Close.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event.SessionRef = RedactSessionRef(event.SessionRef)

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// Close stops accepting events and flushes the queue for at most
// FlushTimeout. A sink that blocks past that point no longer holds up
// shutdown; the rest of the backlog is discarded and counted in Dropped.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)

		timer := time.NewTimer(d.cfg.FlushTimeout)
		defer timer.Stop()

		select {
		case <-d.drained:
		case <-timer.C:
			d.abandoned.Store(true)
		}
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// RedactSessionRef keeps the first SessionRefLen characters of a session
// key. Anything too short to be a key is dropped.
func RedactSessionRef(key string) string {
	if len(key) <= SessionRefLen {
		return ""
	}
	return key[:SessionRefLen]
}
