package tutor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/realtime"
	"quiztutor-backend/internal/repository"
)

// SessionHandle is one live realtime connection. A handle is owned by exactly
// one Session and is never reused after Close.
type SessionHandle interface {
	Events() <-chan realtime.Event
	Mute(muted bool) error
	Muted() bool
	Close() error
}

// TextSender is implemented by handles that accept injected text messages.
type TextSender interface {
	SendMessage(text string) error
}

// AudioAppender is implemented by handles that accept microphone audio.
type AudioAppender interface {
	AppendAudio(pcm []byte) error
}

type TokenExchanger interface {
	Exchange(ctx context.Context, credential string) (string, error)
}

type Dialer interface {
	Dial(ctx context.Context, credential, instructions string) (SessionHandle, error)
}

// Timer is the part of *time.Timer the session needs.
type Timer interface {
	Stop() bool
}

type Timing struct {
	QuestionShownDelay time.Duration
	AutoUnmuteDelay    time.Duration
	RetryDelay         time.Duration
	PendingTimeout     time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		QuestionShownDelay: 800 * time.Millisecond,
		AutoUnmuteDelay:    500 * time.Millisecond,
		RetryDelay:         3 * time.Second,
		PendingTimeout:     15 * time.Second,
	}
}

type Config struct {
	Deck        *repository.QuestionStore
	Tokens      TokenExchanger
	Dialer      Dialer
	StudentName string
	Timing      Timing
	Debug       bool

	OnChange func(models.SessionSnapshot)
	OnAudio  func(models.TutorAudio)

	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) Timer
	Spawn     func(f func())
}

func (c *Config) setDefaults() {
	if c.StudentName == "" {
		c.StudentName = "Student"
	}
	if c.Timing == (Timing{}) {
		c.Timing = DefaultTiming()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.AfterFunc == nil {
		c.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if c.Spawn == nil {
		c.Spawn = func(f func()) { go f() }
	}
}

// anyGeneration disables the connection generation check for commands issued
// directly by the client.
const anyGeneration = ^uint64(0)

// Session is one mounted tutor UI: a quiz in progress plus at most one realtime
// connection. All state is guarded by mu; network calls happen outside it.
type Session struct {
	id  uuid.UUID
	cfg Config

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu            sync.Mutex
	closed        bool
	state         connState
	quiz          quizState
	handle        SessionHandle
	gen           uint64
	cancelConnect context.CancelFunc
	credential    string
	connTimers    timerSet
	quizTimers    timerSet
	version       uint64
	lastActive    time.Time
}

func NewSession(id uuid.UUID, cfg Config) *Session {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		cfg:        cfg,
		baseCtx:    ctx,
		cancelBase: cancel,
		quiz:       newQuizState(),
	}
	s.state.reset()
	s.lastActive = cfg.Now()
	return s
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot returns the current client-visible state without bumping the version.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.SessionSnapshot {
	turns := s.state.Transcript.Turns()
	views := make([]models.TurnView, len(turns))
	for i, t := range turns {
		views[i] = models.TurnView{
			Role:      string(t.Role),
			Text:      t.Text,
			Timestamp: t.CreatedAt,
			Pending:   t.Pending,
			Failed:    t.Failed,
			Synthetic: t.Synthetic,
		}
	}

	q, _ := s.cfg.Deck.At(s.quiz.index)
	progress := models.ProgressView{
		QuestionIndex: s.quiz.index,
		QuestionCount: s.cfg.Deck.Len(),
		Attempts:      s.quiz.attempts,
		Result:        string(s.quiz.result),
		Completed:     len(s.quiz.completed),
		Locked:        s.quiz.locked,
		Terminal:      s.quiz.terminal,
	}
	if s.quiz.terminal {
		progress.Reveal = &models.Reveal{Answer: q.Answer, Explanation: q.Explanation}
	}

	return models.SessionSnapshot{
		SessionID:     s.id,
		Version:       s.version,
		Connection:    string(s.state.Connection),
		Listening:     s.state.Listening,
		TutorSpeaking: s.state.TutorSpeaking,
		Error:         s.state.Error,
		Transcript:    views,
		Progress:      progress,
		Question:      q.Public(),
	}
}

// commitLocked records a mutation and returns the snapshot to publish once
// the lock is released.
func (s *Session) commitLocked() models.SessionSnapshot {
	s.version++
	s.lastActive = s.cfg.Now()
	return s.snapshotLocked()
}

func (s *Session) publish(snap models.SessionSnapshot) {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange(snap)
	}
}

// timerSet tracks the live timers of one scope. Fired timers remove
// themselves so the set only holds what stop still has to cancel.
type timerSet struct {
	next   uint64
	timers map[uint64]Timer
}

func (ts *timerSet) len() int {
	return len(ts.timers)
}

func (ts *timerSet) stop() {
	for _, t := range ts.timers {
		t.Stop()
	}
	ts.timers = nil
}

// scheduleLocked runs fn after d and drops the timer from ts once it fires.
func (s *Session) scheduleLocked(ts *timerSet, d time.Duration, fn func()) {
	if ts.timers == nil {
		ts.timers = make(map[uint64]Timer)
	}
	ts.next++
	key := ts.next
	ts.timers[key] = s.cfg.AfterFunc(d, func() {
		s.mu.Lock()
		delete(ts.timers, key)
		s.mu.Unlock()
		fn()
	})
}

// afterConnLocked schedules fn for the current connection. fn receives the
// generation it was scheduled under and must re-check it.
func (s *Session) afterConnLocked(d time.Duration, fn func(gen uint64)) {
	gen := s.gen
	s.scheduleLocked(&s.connTimers, d, func() { fn(gen) })
}

// afterQuizLocked schedules fn for the current question.
func (s *Session) afterQuizLocked(d time.Duration, fn func(epoch uint64)) {
	epoch := s.quiz.epoch
	s.scheduleLocked(&s.quizTimers, d, func() { fn(epoch) })
}

func (s *Session) closeHandle(h SessionHandle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		log.Printf("tutor: session %s: failed to close realtime handle: %v", s.id, err)
	}
}

// Close unmounts the session. It disconnects and stops every timer.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	h := s.teardownLocked(true)
	s.mu.Unlock()

	s.cancelBase()
	s.closeHandle(h)
}
