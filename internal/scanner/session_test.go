package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestpass/internal/domain"
)

const waitFor = 2 * time.Second

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return &fakeTimerHandle{clock: c, t: t}
}

type fakeTimerHandle struct {
	clock *fakeClock
	t     *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	active := !h.t.stopped && !h.t.fired
	h.t.stopped = true
	return active
}

// Advance moves time forward and runs due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

type fakeSource struct {
	mu      sync.Mutex
	frames  chan string
	opens   int
	closes  int
	openErr error
}

func (s *fakeSource) Open(ctx context.Context) (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	s.frames = make(chan string)
	return s.frames, nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSource) send(v string) {
	s.mu.Lock()
	ch := s.frames
	s.mu.Unlock()
	ch <- v
}

// flush returns once every frame sent before it has been handled by the loop.
func (s *fakeSource) flush() { s.send(" ") }

func (s *fakeSource) counts() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

type verdict struct {
	res *domain.CheckInResult
	err error
}

type fakeVerifier struct {
	mu       sync.Mutex
	verdicts map[string]verdict
	tokens   []string
	block    chan struct{}
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{verdicts: map[string]verdict{}}
}

func (v *fakeVerifier) admit(tok, name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verdicts[tok] = verdict{res: &domain.CheckInResult{Status: domain.CheckInAdmitted, AttendeeName: name}}
}

func (v *fakeVerifier) reject(tok string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verdicts[tok] = verdict{err: err}
}

func (v *fakeVerifier) Verify(ctx context.Context, tok string) (*domain.CheckInResult, error) {
	v.mu.Lock()
	v.tokens = append(v.tokens, tok)
	out, ok := v.verdicts[tok]
	block := v.block
	v.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, domain.ErrAttendeeNotFound
	}
	return out.res, out.err
}

func (v *fakeVerifier) seen() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.tokens...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}

type harness struct {
	clock    *fakeClock
	source   *fakeSource
	verifier *fakeVerifier
	events   *recorder
	session  *Session
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		source:   &fakeSource{},
		verifier: newFakeVerifier(),
		events:   &recorder{},
	}
	opts = append([]Option{WithClock(h.clock), WithEventHandler(h.events.handle)}, opts...)
	h.session = NewSession(h.source, h.verifier, opts...)
	t.Cleanup(h.session.Stop)
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.session.State() == want }, waitFor, time.Millisecond,
		"state stayed %s, want %s", h.session.State(), want)
}

func (h *harness) waitEvent(t *testing.T, pred func(Event) bool) Event {
	t.Helper()
	var ev Event
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = h.events.last()
		return ok && pred(ev)
	}, waitFor, time.Millisecond)
	return ev
}

func TestSession_ScanPausesAndResumes(t *testing.T) {
	h := newHarness(t)
	h.verifier.admit("tok-1", "Jane Doe")

	require.NoError(t, h.session.Start(context.Background()))
	assert.Equal(t, Scanning, h.session.State())

	h.source.send("https://guests.example.com/checkin/tok-1")
	ev := h.waitEvent(t, func(ev Event) bool { return ev.Result != nil })
	assert.Equal(t, Paused, ev.State)
	assert.Equal(t, "Jane Doe", ev.Result.AttendeeName)
	assert.Equal(t, "tok-1", ev.Token)
	assert.Equal(t, []string{"tok-1"}, h.verifier.seen())

	h.clock.Advance(DefaultResultPause - time.Millisecond)
	assert.Equal(t, Paused, h.session.State())
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, Scanning, h.session.State())
}

func TestSession_FramesIgnoredWhilePaused(t *testing.T) {
	h := newHarness(t)
	h.verifier.admit("tok-1", "Jane")
	h.verifier.admit("tok-2", "John")

	require.NoError(t, h.session.Start(context.Background()))
	h.source.send("tok-1")
	h.waitState(t, Paused)

	h.source.send("tok-2")
	h.source.flush()
	assert.Equal(t, []string{"tok-1"}, h.verifier.seen())

	h.clock.Advance(DefaultResultPause)
	require.Equal(t, Scanning, h.session.State())
	h.source.send("tok-2")
	h.waitState(t, Paused)

	assert.Equal(t, []string{"tok-1", "tok-2"}, h.verifier.seen())
}

func TestSession_DebouncesRepeatedToken(t *testing.T) {
	h := newHarness(t, WithResultPause(time.Second))
	h.verifier.admit("tok-1", "Jane")

	require.NoError(t, h.session.Start(context.Background()))
	h.source.send("tok-1")
	h.waitState(t, Paused)
	h.clock.Advance(time.Second)
	require.Equal(t, Scanning, h.session.State())

	// Still inside the re-scan interval.
	h.source.send("tok-1")
	h.source.flush()
	assert.Equal(t, []string{"tok-1"}, h.verifier.seen())
	assert.Equal(t, Scanning, h.session.State())

	h.clock.Advance(DefaultMinRescanInterval - time.Second)
	h.source.send("tok-1")
	h.waitState(t, Paused)
	assert.Equal(t, []string{"tok-1", "tok-1"}, h.verifier.seen())
}

func TestSession_OneVerificationInFlight(t *testing.T) {
	h := newHarness(t)
	h.verifier.admit("tok-1", "Jane")
	h.verifier.block = make(chan struct{})

	require.NoError(t, h.session.Start(context.Background()))
	h.source.send("tok-1")
	h.waitState(t, Verifying)

	h.source.send("tok-2")
	h.source.flush()
	_, err := h.session.Submit(context.Background(), "tok-3")
	assert.ErrorIs(t, err, ErrBusy)

	close(h.verifier.block)
	h.waitState(t, Paused)
	assert.Equal(t, []string{"tok-1"}, h.verifier.seen())
}

func TestSession_ErrorsResumeQuickly(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.session.Start(context.Background()))
	h.source.send("unknown")
	ev := h.waitEvent(t, func(ev Event) bool { return ev.Err != nil })
	assert.ErrorIs(t, ev.Err, domain.ErrAttendeeNotFound)
	assert.Equal(t, Paused, ev.State)

	h.clock.Advance(DefaultErrorPause)
	assert.Equal(t, Scanning, h.session.State())
}

func TestSession_BlankPayloadReportsInvalidToken(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.session.Start(context.Background()))

	h.source.send("https://host/checkin/?ref=x")
	require.Eventually(t, func() bool {
		ev, ok := h.events.last()
		return ok && errors.Is(ev.Err, domain.ErrInvalidToken)
	}, waitFor, time.Millisecond)
	assert.Equal(t, Scanning, h.session.State())
	assert.Empty(t, h.verifier.seen())
}

func TestSession_NotYetOpenBlocksUntilRecheck(t *testing.T) {
	h := newHarness(t)
	startsAt := h.clock.Now().Add(time.Hour)
	h.verifier.reject("tok-1", &domain.NotYetOpenError{StartsAt: startsAt})

	require.NoError(t, h.session.Start(context.Background()))
	h.source.send("tok-1")
	ev := h.waitEvent(t, func(ev Event) bool { return ev.State == Blocked })
	assert.True(t, startsAt.Equal(ev.StartsAt))
	opens, closes := h.source.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes, "source released when blocked")

	// No auto-resume.
	h.clock.Advance(DefaultResultPause)
	assert.Equal(t, Blocked, h.session.State())
	assert.ErrorIs(t, h.session.Start(context.Background()), ErrBlocked)

	var notOpen *domain.NotYetOpenError
	require.ErrorAs(t, h.session.Recheck(context.Background()), &notOpen)
	assert.True(t, startsAt.Equal(notOpen.StartsAt))
	assert.Equal(t, Blocked, h.session.State())

	h.clock.Advance(time.Hour)
	require.NoError(t, h.session.Recheck(context.Background()))
	assert.Equal(t, Scanning, h.session.State())
	opens, _ = h.source.counts()
	assert.Equal(t, 2, opens)

	assert.ErrorIs(t, h.session.Recheck(context.Background()), ErrNotBlocked)
}

func TestSession_ManualEntry(t *testing.T) {
	h := newHarness(t)
	h.verifier.admit("abcd1234", "Jane Doe")

	res, err := h.session.Submit(context.Background(), "  https://host/checkin/abcd1234?ref=x ")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.AttendeeName)
	assert.Equal(t, Idle, h.session.State(), "manual entry does not start the camera loop")

	_, err = h.session.Submit(context.Background(), "abcd1234")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = h.session.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	h.clock.Advance(DefaultMinRescanInterval)
	_, err = h.session.Submit(context.Background(), "abcd1234")
	assert.NoError(t, err)
}

func TestSession_ManualEntryWhileScanningPauses(t *testing.T) {
	h := newHarness(t, WithResultPause(time.Second))
	h.verifier.admit("tok-1", "Jane")
	require.NoError(t, h.session.Start(context.Background()))

	_, err := h.session.Submit(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, Paused, h.session.State())

	// The camera reads the same pass right after the manual entry.
	h.clock.Advance(time.Second)
	require.Equal(t, Scanning, h.session.State())
	h.source.send("tok-1")
	h.source.flush()
	assert.Equal(t, []string{"tok-1"}, h.verifier.seen())
	assert.Equal(t, Scanning, h.session.State())
}

func TestSession_ReleasesSource(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.session.Start(context.Background()))
		h.session.Stop()
		_, closes := h.source.counts()
		assert.Equal(t, 1, closes)
		assert.Equal(t, Idle, h.session.State())
		<-h.session.Done()
	})

	t.Run("restart closes the previous source", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.session.Start(context.Background()))
		require.NoError(t, h.session.Start(context.Background()))
		opens, closes := h.source.counts()
		assert.Equal(t, 2, opens)
		assert.Equal(t, 1, closes)
	})

	t.Run("context cancellation", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, h.session.Start(ctx))
		cancel()
		select {
		case <-h.session.Done():
		case <-time.After(waitFor):
			t.Fatal("loop did not stop")
		}
		_, closes := h.source.counts()
		assert.Equal(t, 1, closes)
		assert.Equal(t, Idle, h.session.State())
	})

	t.Run("open failure", func(t *testing.T) {
		h := newHarness(t)
		h.source.openErr = errors.New("camera busy")
		err := h.session.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "camera busy")
		assert.Equal(t, Idle, h.session.State())
		_, closes := h.source.counts()
		assert.Zero(t, closes)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "verifying", Verifying.String())
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "state(9)", State(9).String())
}
