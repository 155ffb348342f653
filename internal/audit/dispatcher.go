package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the caller when the buffer
	// is full.
	DropIfFull bool
	// Now stamps events that arrive without a timestamp.
	Now func() time.Time
}

// redactedKeys never reach a sink; matching is case-insensitive on the whole
// key or a "_code"/"_token" suffix.
var redactedKeys = []string{"code", "otp", "token", "access_token", "authorization"}

const redacted = "[redacted]"

// Dispatcher forwards events to a sink on its own goroutine so flows never
// wait on audit I/O. A nil Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event
	done chan struct{}
	wg   sync.WaitGroup

	dropped   atomic.Uint64
	delivered atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns nil when cfg.Enabled is false.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.loop()

	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.ch:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit queues ev. With DropIfFull it never blocks; otherwise it waits for
// buffer space until ctx is done or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ev = d.prepare(ev)

	if d.cfg.DropIfFull {
		select {
		case d.ch <- ev:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
	}
}

// prepare stamps the event and copies its metadata with secrets masked, so
// later changes by the caller do not leak into the queued event.
func (d *Dispatcher) prepare(ev Event) Event {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.cfg.Now().UTC()
	}
	if len(ev.Metadata) == 0 {
		return ev
	}
	md := make(map[string]string, len(ev.Metadata))
	for k, v := range ev.Metadata {
		if sensitiveKey(k) {
			v = redacted
		}
		md[k] = v
	}
	ev.Metadata = md
	return ev
}

func sensitiveKey(k string) bool {
	k = strings.ToLower(k)
	if strings.HasSuffix(k, "_code") || strings.HasSuffix(k, "_token") {
		return true
	}
	for _, r := range redactedKeys {
		if k == r {
			return true
		}
	}
	return false
}

// Close stops accepting events and waits until every queued event reached
// the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped counts events lost to a full buffer or a cancelled context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
