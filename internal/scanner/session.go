// Package scanner drives door check-in from a stream of decoded QR payloads. A Session owns one
// frame source at a time, debounces repeated reads, keeps a single verification in flight and
// pauses between results.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"guestpass/internal/domain"
	"guestpass/internal/token"
)

// Default timings of a Session.
const (
	DefaultMinRescanInterval = 2500 * time.Millisecond
	DefaultResultPause       = 3 * time.Second
	DefaultErrorPause        = 750 * time.Millisecond
)

var (
	// ErrBusy is returned by Submit while another verification is in flight.
	ErrBusy = errors.New("scanner: verification in progress")
	// ErrDuplicate is returned by Submit for a repeat of the last token inside the re-scan interval.
	ErrDuplicate = errors.New("scanner: duplicate scan")
	// ErrBlocked is returned by Start while check-in has not opened yet; use Recheck.
	ErrBlocked = errors.New("scanner: blocked until the event starts")
	// ErrNotBlocked is returned by Recheck when the session is not blocked.
	ErrNotBlocked = errors.New("scanner: not blocked")
)

// State is the state of a Session.
type State int

const (
	Idle State = iota
	Scanning
	Verifying
	Paused
	Blocked
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Verifying:
		return "verifying"
	case Paused:
		return "paused"
	case Blocked:
		return "blocked"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FrameSource yields decoded payloads, one per detected code. Open acquires the device and
// Close releases it; the channel returned by Open is closed when the source runs dry.
type FrameSource interface {
	Open(ctx context.Context) (<-chan string, error)
	Close() error
}

// Verifier checks a token in at the door. It returns *domain.NotYetOpenError before the
// event starts.
type Verifier interface {
	Verify(ctx context.Context, tok string) (*domain.CheckInResult, error)
}

// Event reports a state change or a scan outcome to the session's handler.
type Event struct {
	State State
	// Token is the extracted token the event relates to, if any.
	Token  string
	Result *domain.CheckInResult
	Err    error
	// StartsAt is set while Blocked.
	StartsAt time.Time
}

// Timer is the subset of *time.Timer used by a Session.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for a Session.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Option configures a Session.
type Option func(*Session)

func WithClock(c Clock) Option { return func(s *Session) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithEventHandler sets the callback for state changes and outcomes. Calls are serialized.
func WithEventHandler(fn func(Event)) Option { return func(s *Session) { s.onEvent = fn } }

func WithMinRescanInterval(d time.Duration) Option {
	return func(s *Session) { s.minRescan = d }
}

func WithResultPause(d time.Duration) Option { return func(s *Session) { s.resultPause = d } }

func WithErrorPause(d time.Duration) Option { return func(s *Session) { s.errorPause = d } }

// Session is a scan session bound to one event's verifier and one frame source.
type Session struct {
	source   FrameSource
	verifier Verifier
	clock    Clock
	logger   *slog.Logger
	onEvent  func(Event)

	minRescan   time.Duration
	resultPause time.Duration
	errorPause  time.Duration

	mu       sync.Mutex
	state    State
	gen      uint64
	open     bool
	cancel   context.CancelFunc
	busy     bool
	last     string
	lastAt   time.Time
	resume   Timer
	startsAt time.Time
	done     chan struct{}

	emitMu sync.Mutex
}

// NewSession returns an Idle session.
func NewSession(source FrameSource, verifier Verifier, opts ...Option) *Session {
	s := &Session{
		source:      source,
		verifier:    verifier,
		clock:       realClock{},
		logger:      slog.New(slog.DiscardHandler),
		minRescan:   DefaultMinRescanInterval,
		resultPause: DefaultResultPause,
		errorPause:  DefaultErrorPause,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start releases any previously opened source, opens the source again and starts the decode loop.
// The loop stops and the source is released when ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Blocked {
		s.mu.Unlock()
		return ErrBlocked
	}
	ev, err := s.startLocked(ctx)
	s.mu.Unlock()
	if ev != nil {
		s.emit(*ev)
	}
	return err
}

// Stop ends the decode loop, releases the source and returns to Idle.
func (s *Session) Stop() {
	s.mu.Lock()
	s.releaseLocked()
	changed := s.state != Idle
	s.state = Idle
	s.mu.Unlock()
	if changed {
		s.emit(Event{State: Idle})
	}
}

// Done is closed when the decode loop started by the latest Start ends for any reason.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Recheck leaves Blocked once the event has started and resumes scanning.
// Before the start time it returns *domain.NotYetOpenError and stays Blocked.
func (s *Session) Recheck(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Blocked {
		s.mu.Unlock()
		return ErrNotBlocked
	}
	if s.clock.Now().Before(s.startsAt) {
		startsAt := s.startsAt
		s.mu.Unlock()
		return &domain.NotYetOpenError{StartsAt: startsAt}
	}
	s.state = Idle
	s.startsAt = time.Time{}
	ev, err := s.startLocked(ctx)
	s.mu.Unlock()
	if ev != nil {
		s.emit(*ev)
	}
	return err
}

// Submit verifies a manually entered token or link. It bypasses the decode loop but shares its
// busy and debounce guard, and its outcome drives the same pause and block transitions.
func (s *Session) Submit(ctx context.Context, raw string) (*domain.CheckInResult, error) {
	tok := token.Extract(raw)
	if tok == "" {
		return nil, domain.ErrInvalidToken
	}
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.debouncedLocked(tok) {
		s.mu.Unlock()
		return nil, ErrDuplicate
	}
	gen := s.acceptLocked(tok)
	verifying := s.state == Verifying
	s.mu.Unlock()

	if verifying {
		s.emit(Event{State: Verifying, Token: tok})
	}
	return s.verify(ctx, gen, tok)
}

// startLocked requires s.mu.
func (s *Session) startLocked(ctx context.Context) (*Event, error) {
	s.releaseLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	frames, err := s.source.Open(loopCtx)
	if err != nil {
		cancel()
		s.state = Idle
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	s.gen++
	s.open = true
	s.cancel = cancel
	s.state = Scanning
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.gen, frames, s.done)
	return &Event{State: Scanning}, nil
}

// releaseLocked stops the loop, pending timers and the source. It requires s.mu.
func (s *Session) releaseLocked() {
	s.gen++
	s.busy = false
	if s.resume != nil {
		s.resume.Stop()
		s.resume = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.open {
		s.open = false
		if err := s.source.Close(); err != nil {
			s.logger.Warn("close frame source", "err", err)
		}
	}
}

func (s *Session) loop(ctx context.Context, gen uint64, frames <-chan string, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			s.finish(gen, ctx.Err())
			return
		case raw, ok := <-frames:
			if !ok {
				s.finish(gen, nil)
				return
			}
			s.onFrame(ctx, gen, raw)
		}
	}
}

// finish releases the source when the loop of gen ends on its own.
func (s *Session) finish(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.releaseLocked()
	s.state = Idle
	s.mu.Unlock()
	s.emit(Event{State: Idle, Err: cause})
}

func (s *Session) onFrame(ctx context.Context, gen uint64, raw string) {
	tok := token.Extract(raw)
	s.mu.Lock()
	if gen != s.gen || s.state != Scanning || s.busy {
		s.mu.Unlock()
		return
	}
	if tok == "" {
		s.mu.Unlock()
		s.emit(Event{State: Scanning, Err: domain.ErrInvalidToken})
		return
	}
	if s.debouncedLocked(tok) {
		s.mu.Unlock()
		return
	}
	vgen := s.acceptLocked(tok)
	s.mu.Unlock()

	s.emit(Event{State: Verifying, Token: tok})
	go func() {
		_, _ = s.verify(ctx, vgen, tok)
	}()
}

func (s *Session) debouncedLocked(tok string) bool {
	return tok == s.last && s.clock.Now().Sub(s.lastAt) < s.minRescan
}

// acceptLocked marks tok as the in-flight verification and returns the current generation.
func (s *Session) acceptLocked(tok string) uint64 {
	s.busy = true
	s.last = tok
	s.lastAt = s.clock.Now()
	if s.state == Scanning {
		s.state = Verifying
	}
	return s.gen
}

func (s *Session) verify(ctx context.Context, gen uint64, tok string) (*domain.CheckInResult, error) {
	res, err := s.verifier.Verify(ctx, tok)
	if ev := s.settle(gen, tok, res, err); ev != nil {
		s.emit(*ev)
	}
	return res, err
}

// settle applies a verification outcome. Outcomes from a released generation are dropped.
func (s *Session) settle(gen uint64, tok string, res *domain.CheckInResult, err error) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.busy = false

	var notOpen *domain.NotYetOpenError
	if errors.As(err, &notOpen) {
		s.releaseLocked()
		s.state = Blocked
		s.startsAt = notOpen.StartsAt
		return &Event{State: Blocked, Token: tok, Err: err, StartsAt: notOpen.StartsAt}
	}
	if err != nil {
		s.logger.Debug("check-in rejected", "token", tok, "err", err)
	}

	if s.state == Verifying {
		pause := s.resultPause
		if err != nil {
			pause = s.errorPause
		}
		s.state = Paused
		s.resume = s.clock.AfterFunc(pause, func() { s.resumeScanning(gen) })
	}
	return &Event{State: s.state, Token: tok, Result: res, Err: err}
}

func (s *Session) resumeScanning(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != Paused {
		s.mu.Unlock()
		return
	}
	s.resume = nil
	s.state = Scanning
	s.mu.Unlock()
	s.emit(Event{State: Scanning})
}

func (s *Session) emit(ev Event) {
	if s.onEvent == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.onEvent(ev)
}
