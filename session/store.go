package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoRecord is returned by a [Persister] when no session record exists yet.
var ErrNoRecord = errors.New("session record not found")

const defaultSaveTimeout = 5 * time.Second

// Persister is the durable storage behind a [Store]. It holds exactly one
// record under a fixed storage name.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Listener observes session changes. It receives the new session, or nil on
// logout.
type Listener func(current *Session)

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHydrateFilter installs a predicate consulted during [Store.Hydrate].
// A hydrated session for which keep returns false is discarded and the store
// starts logged out.
func WithHydrateFilter(keep func(*Session) bool) Option {
	return func(s *Store) {
		s.keep = keep
	}
}

// WithSaveTimeout bounds each background write to the persister.
func WithSaveTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.saveTimeout = d
		}
	}
}

// Store is the single source of truth for who is logged in.
//
// Reads and writes of the in-memory value are synchronous. Every write is
// queued for a background writer that persists only the latest value, so
// concurrent Set calls resolve last-write-wins.
type Store struct {
	mu          sync.RWMutex
	current     *Session
	persister   Persister
	logger      *slog.Logger
	keep        func(*Session) bool
	saveTimeout time.Duration

	listeners    map[uint64]Listener
	nextListener uint64

	queued    []byte
	queuedSeq uint64
	savedSeq  uint64
	lastErr   error
	advanced  chan struct{}
	closed    bool

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewStore creates a Store backed by p and starts its background writer.
// A nil persister keeps the session in memory only.
func NewStore(p Persister, opts ...Option) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}

	s := &Store{
		persister:   p,
		logger:      slog.New(slog.DiscardHandler),
		saveTimeout: defaultSaveTimeout,
		listeners:   make(map[uint64]Listener),
		advanced:    make(chan struct{}),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Get returns a copy of the current session. It never blocks on storage.
func (s *Store) Get() (*Session, bool) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()

	if cur == nil {
		return nil, false
	}
	return cur.Clone(), true
}

// Set replaces the stored session. A nil or token-less session logs out.
func (s *Store) Set(sess *Session) {
	var next *Session
	if sess.Valid() {
		next = sess.Clone()
	}

	s.mu.Lock()
	s.current = next
	s.enqueueLocked(next)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, next)
}

// Update shallow-merges p into the current session. It is a no-op and
// returns false when nobody is logged in.
func (s *Store) Update(p Patch) bool {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return false
	}
	next := s.current.Clone()
	p.apply(next)
	s.current = next
	s.enqueueLocked(next)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, next)
	return true
}

// Hydrate loads the persisted record once. Missing, unreadable, or rejected
// records leave the store logged out; Hydrate never fails. It reports whether
// a session was restored.
func (s *Store) Hydrate(ctx context.Context) bool {
	data, err := s.persister.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			s.logger.WarnContext(ctx, "session hydrate failed", slog.Any("error", err))
		}
		return false
	}

	sess, err := Decode(data)
	if err != nil {
		s.logger.WarnContext(ctx, "session record unreadable", slog.Any("error", err))
		return false
	}
	if sess == nil {
		return false
	}
	if s.keep != nil && !s.keep(sess) {
		s.logger.InfoContext(ctx, "persisted session discarded", slog.String("role", string(sess.Role)))
		return false
	}

	s.mu.Lock()
	if s.current != nil {
		// A write that landed before hydration is newer than the record.
		s.mu.Unlock()
		return false
	}
	s.current = sess
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, sess.Clone())
	return true
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Flush waits until every write queued before the call has reached the
// persister and returns the error of the most recent save.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	target := s.queuedSeq
	for s.savedSeq < target {
		ch := s.advanced
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	err := s.lastErr
	s.mu.Unlock()

	return err
}

// Close drains pending writes and stops the background writer. The in-memory
// session stays readable; later writes are no longer persisted.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		s.wg.Wait()
	})
}

func (s *Store) enqueueLocked(next *Session) {
	if s.closed {
		return
	}
	data, err := Encode(next)
	if err != nil {
		s.logger.Error("session encode failed", slog.Any("error", err))
		return
	}
	s.queued = data
	s.queuedSeq++

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) listenersLocked() []Listener {
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, current *Session) {
	for _, fn := range listeners {
		fn(current.Clone())
	}
}

func (s *Store) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.done:
			s.drain()
			return
		}
	}
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if s.savedSeq == s.queuedSeq {
			s.mu.Unlock()
			return
		}
		data := s.queued
		seq := s.queuedSeq
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		err := s.persister.Save(ctx, data)
		cancel()
		if err != nil {
			s.logger.Warn("session persist failed", slog.Any("error", err))
		}

		s.mu.Lock()
		s.savedSeq = seq
		s.lastErr = err
		close(s.advanced)
		s.advanced = make(chan struct{})
		s.mu.Unlock()
	}
}
