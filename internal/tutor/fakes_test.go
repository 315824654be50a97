package tutor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/realtime"
	"quiztutor-backend/internal/repository"
)

// fakeHandle supports text and audio like the websocket transport.
type fakeHandle struct {
	mu        sync.Mutex
	events    chan realtime.Event
	muted     bool
	muteCalls []bool
	sent      []string
	audio     [][]byte
	sendErr   error
	closes    int
	closeOnce sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{events: make(chan realtime.Event, 16)}
}

func (h *fakeHandle) Events() <-chan realtime.Event { return h.events }

func (h *fakeHandle) Mute(muted bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.muted = muted
	h.muteCalls = append(h.muteCalls, muted)
	return nil
}

func (h *fakeHandle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closes++
	h.mu.Unlock()
	h.closeOnce.Do(func() { close(h.events) })
	return nil
}

func (h *fakeHandle) SendMessage(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sent = append(h.sent, text)
	return nil
}

func (h *fakeHandle) AppendAudio(pcm []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.audio = append(h.audio, pcm)
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

func (h *fakeHandle) sentMessages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent...)
}

// basicHandle exposes only the required capability set.
type basicHandle struct {
	inner *fakeHandle
}

func (b basicHandle) Events() <-chan realtime.Event { return b.inner.Events() }
func (b basicHandle) Mute(muted bool) error         { return b.inner.Mute(muted) }
func (b basicHandle) Muted() bool                   { return b.inner.Muted() }
func (b basicHandle) Close() error                  { return b.inner.Close() }

type fakeTokens struct {
	mu    sync.Mutex
	token string
	err   error
	calls []string
	// gate, when set, blocks Exchange until it is closed or ctx ends.
	gate chan struct{}
}

func (f *fakeTokens) Exchange(ctx context.Context, credential string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, credential)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeTokens) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeDialer struct {
	mu           sync.Mutex
	handles      []SessionHandle
	err          error
	credentials  []string
	instructions []string
}

func (d *fakeDialer) Dial(ctx context.Context, credential, instructions string) (SessionHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.credentials = append(d.credentials, credential)
	d.instructions = append(d.instructions, instructions)
	if d.err != nil {
		return nil, d.err
	}
	if len(d.handles) == 0 {
		return nil, errors.New("no handle queued")
	}
	h := d.handles[0]
	d.handles = d.handles[1:]
	return h, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.instructions)
}

func (d *fakeDialer) lastInstructions() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.instructions) == 0 {
		return ""
	}
	return d.instructions[len(d.instructions)-1]
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock collects timers so tests can fire them deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every live timer scheduled with duration d and reports how many ran.
func (c *fakeClock) fire(d time.Duration) int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if t.d == d && !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

type testEnv struct {
	tokens *fakeTokens
	dialer *fakeDialer
	clock  *fakeClock

	mu    sync.Mutex
	snaps []models.SessionSnapshot
	audio []models.TutorAudio
}

func (e *testEnv) lastSnapshot() models.SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.snaps) == 0 {
		return models.SessionSnapshot{}
	}
	return e.snaps[len(e.snaps)-1]
}

func newTestSession(t *testing.T, handles ...SessionHandle) (*Session, *testEnv) {
	t.Helper()
	env := &testEnv{
		tokens: &fakeTokens{token: "ek_test"},
		dialer: &fakeDialer{handles: handles},
		clock:  &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}
	s := NewSession(uuid.New(), Config{
		Deck:        repository.ScienceDeck(),
		Tokens:      env.tokens,
		Dialer:      env.dialer,
		StudentName: "Amira",
		Timing:      DefaultTiming(),
		OnChange: func(snap models.SessionSnapshot) {
			env.mu.Lock()
			env.snaps = append(env.snaps, snap)
			env.mu.Unlock()
		},
		OnAudio: func(a models.TutorAudio) {
			env.mu.Lock()
			env.audio = append(env.audio, a)
			env.mu.Unlock()
		},
		Now:       env.clock.Now,
		AfterFunc: env.clock.AfterFunc,
		Spawn:     func(f func()) { f() },
	})
	t.Cleanup(s.Close)
	return s, env
}

// connected returns a session that has completed Connect with h.
func connected(t *testing.T, h SessionHandle) (*Session, *testEnv) {
	t.Helper()
	s, env := newTestSession(t, h)
	if err := s.Connect("sk-test"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if got := s.Snapshot().Connection; got != string(Connected) {
		t.Fatalf("expected connected, got %s (error %q)", got, s.Snapshot().Error)
	}
	return s, env
}

// deliver applies ev to the current connection as the pump would.
func deliver(s *Session, events ...realtime.Event) {
	for _, ev := range events {
		s.mu.Lock()
		gen := s.gen
		s.mu.Unlock()
		s.dispatch(gen, ev)
	}
}

func transcriptTexts(snap models.SessionSnapshot) []string {
	out := make([]string, len(snap.Transcript))
	for i, turn := range snap.Transcript {
		out[i] = turn.Role + ":" + turn.Text
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
