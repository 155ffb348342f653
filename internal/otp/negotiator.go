package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/clinicAuth/api"
)

// Errors returned by [Negotiator.Dispatch] and [Negotiator.SelectChannel].
var (
	ErrCooldown       = errors.New("otp resend cooldown active")
	ErrClosed         = errors.New("otp negotiator closed")
	ErrUnknownChannel = errors.New("otp channel unknown")
	ErrInFlight       = errors.New("otp dispatch already in flight")
)

// Defaults applied by [New] to zero Config fields.
const (
	DefaultWindow = 60 * time.Second
	DefaultTick   = time.Second
)

// Config sets the cooldown window, the rounding tick for Remaining, and
// the clock.
type Config struct {
	Window time.Duration
	Tick   time.Duration
	Now    func() time.Time
}

// Negotiator holds the chosen channel and the last dispatch time of a
// single challenge. It is safe for concurrent use.
type Negotiator struct {
	cfg Config

	mu           sync.Mutex
	channel      api.Channel
	subjectRef   string
	dispatchedAt time.Time
	dispatches   int
	inFlight     bool
	closed       bool
}

// New returns a Negotiator with no dispatch recorded.
func New(cfg Config) *Negotiator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Negotiator{cfg: cfg}
}

// SelectChannel records ch as the channel for the next dispatch. It is a
// pure state update and never touches the cooldown.
func (n *Negotiator) SelectChannel(ch api.Channel) error {
	if !ch.Valid() {
		return ErrUnknownChannel
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	n.channel = ch
	return nil
}

// Channel returns the selected channel.
func (n *Negotiator) Channel() api.Channel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channel
}

// Dispatch calls send for subjectRef on the selected channel unless a
// dispatch is in flight or the cooldown is running, in which case it fails
// without calling send. A successful send starts a new cooldown window; a
// failed one leaves the previous window untouched.
func (n *Negotiator) Dispatch(ctx context.Context, subjectRef string, send func(context.Context, api.Channel) error) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	if !n.channel.Valid() {
		n.mu.Unlock()
		return ErrUnknownChannel
	}
	if n.inFlight {
		n.mu.Unlock()
		return ErrInFlight
	}
	if !n.canResendLocked() {
		n.mu.Unlock()
		return ErrCooldown
	}
	ch := n.channel
	n.inFlight = true
	n.mu.Unlock()

	err := send(ctx, ch)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.inFlight = false
	if n.closed {
		return ErrClosed
	}
	if err != nil {
		return err
	}
	n.markLocked(subjectRef)
	return nil
}

// MarkDispatched records a dispatch the server performed on its own, such
// as the code sent on registration.
func (n *Negotiator) MarkDispatched(subjectRef string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.markLocked(subjectRef)
}

func (n *Negotiator) markLocked(subjectRef string) {
	n.subjectRef = subjectRef
	n.dispatchedAt = n.cfg.Now()
	n.dispatches++
}

// CanResend is true when no dispatch is in flight and the cooldown window
// since the last dispatch has elapsed.
func (n *Negotiator) CanResend() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.closed && !n.inFlight && n.canResendLocked()
}

func (n *Negotiator) canResendLocked() bool {
	if n.dispatchedAt.IsZero() {
		return true
	}
	return !n.cfg.Now().Before(n.dispatchedAt.Add(n.cfg.Window))
}

// Remaining is the cooldown left, rounded up to the tick.
func (n *Negotiator) Remaining() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dispatchedAt.IsZero() {
		return 0
	}
	left := n.dispatchedAt.Add(n.cfg.Window).Sub(n.cfg.Now())
	if left <= 0 {
		return 0
	}
	tick := n.cfg.Tick
	return ((left + tick - 1) / tick) * tick
}

// DispatchedAt returns the time of the last successful dispatch.
func (n *Negotiator) DispatchedAt() (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dispatchedAt, !n.dispatchedAt.IsZero()
}

// SubjectRef returns the subject of the last dispatch.
func (n *Negotiator) SubjectRef() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subjectRef
}

// Dispatches counts successful dispatches, including marked ones.
func (n *Negotiator) Dispatches() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dispatches
}

// Close tears the negotiator down. Later dispatches fail with ErrClosed and
// an in-flight result is discarded.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}
