package tutor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/realtime"
)

type Notification string

const (
	NotifyQuestionShown Notification = "question_shown"
	NotifyFirstWrong    Notification = "first_wrong"
	NotifySecondWrong   Notification = "second_wrong"
	NotifyCorrect       Notification = "correct"
)

// Message is the student-voice text injected into the conversation.
func (n Notification) Message() string {
	switch n {
	case NotifyQuestionShown:
		return "I'm looking at this question now. Can you help me understand it?"
	case NotifyFirstWrong:
		return "I tried answering but got it wrong. Can you give me a hint?"
	case NotifySecondWrong:
		return "I tried again but still got it wrong. Can you help me understand the concept?"
	case NotifyCorrect:
		return "I got it right!"
	}
	return ""
}

type connectAttempt struct {
	ctx          context.Context
	gen          uint64
	credential   string
	instructions string
	autoUnmute   bool
	firstView    bool
}

// Connect starts connecting to the realtime API for the current question.
// It returns once the attempt has started; the outcome is reported through
// snapshots, with failures recorded in the error field.
func (s *Session) Connect(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return ErrMissingCredential
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state.Connection != Disconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	a := s.beginLocked(credential, false)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	s.cfg.Spawn(func() { s.runConnect(a) })
	return nil
}

func (s *Session) beginLocked(credential string, autoUnmute bool) connectAttempt {
	s.gen++
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancelConnect = cancel
	s.credential = credential
	s.state.Connection = Connecting
	s.state.Error = ""

	q, _ := s.cfg.Deck.At(s.quiz.index)
	return connectAttempt{
		ctx:        ctx,
		gen:        s.gen,
		credential: credential,
		instructions: BuildInstructions(QuestionContext{
			StudentName:   s.cfg.StudentName,
			Question:      q,
			QuestionIndex: s.quiz.index,
			QuestionCount: s.cfg.Deck.Len(),
			Attempts:      s.quiz.attempts,
			Result:        s.quiz.result,
		}),
		autoUnmute: autoUnmute,
		firstView:  s.quiz.attempts == 0,
	}
}

// runConnect exchanges the credential and dials. After each network call the
// attempt re-checks its generation; a superseded attempt closes whatever it
// obtained and leaves the state alone.
func (s *Session) runConnect(a connectAttempt) error {
	token, err := s.cfg.Tokens.Exchange(a.ctx, a.credential)
	if err != nil {
		return s.failConnect(a.gen, "token exchange", err)
	}
	if !s.isCurrent(a.gen) {
		return ErrConnectAborted
	}

	handle, err := s.cfg.Dialer.Dial(a.ctx, token, a.instructions)
	if err != nil {
		return s.failConnect(a.gen, "realtime connect", err)
	}

	s.mu.Lock()
	if s.gen != a.gen || s.closed {
		s.mu.Unlock()
		s.closeHandle(handle)
		return ErrConnectAborted
	}
	s.handle = handle
	s.cancelConnectLocked()
	s.state.Connection = Connected
	s.state.Error = ""
	s.state.Listening = false
	s.state.TutorSpeaking = false
	if a.firstView {
		s.afterConnLocked(s.cfg.Timing.QuestionShownDelay, func(gen uint64) {
			if err := s.sendStudentText(NotifyQuestionShown.Message(), true, gen); err != nil {
				s.logNotifyError(NotifyQuestionShown, err)
			}
		})
	}
	if a.autoUnmute {
		s.afterConnLocked(s.cfg.Timing.AutoUnmuteDelay, func(gen uint64) {
			if err := s.setMuted(false, gen); err != nil && !errors.Is(err, ErrConnectAborted) {
				log.Printf("tutor: session %s: auto-unmute failed: %v", s.id, err)
			}
		})
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	log.Printf("tutor: session %s connected", s.id)
	s.publish(snap)

	// Mute may emit MuteChanged, so the pump has to be draining events first.
	go s.pump(a.gen, handle)
	if err := handle.Mute(true); err != nil {
		log.Printf("tutor: session %s: failed to start muted: %v", s.id, err)
	}
	return nil
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && !s.closed
}

func (s *Session) failConnect(gen uint64, step string, err error) error {
	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		return ErrConnectAborted
	}
	s.cancelConnectLocked()
	s.state.Connection = Disconnected
	s.state.Error = err.Error()
	snap := s.commitLocked()
	s.mu.Unlock()

	log.Printf("tutor: session %s: %s failed: %v", s.id, step, err)
	s.publish(snap)
	return fmt.Errorf("%s: %w", step, err)
}

func (s *Session) cancelConnectLocked() {
	if s.cancelConnect != nil {
		s.cancelConnect()
		s.cancelConnect = nil
	}
}

// teardownLocked drops the current connection and invalidates every callback
// bound to it. With resetQuiz the per-question progress returns to the first
// question as well. The returned handle must be closed after unlocking.
func (s *Session) teardownLocked(resetQuiz bool) SessionHandle {
	s.gen++
	s.cancelConnectLocked()
	s.connTimers.stop()

	h := s.handle
	s.handle = nil
	s.state.reset()

	if resetQuiz {
		s.quiz.index = 0
		s.resetQuestionLocked()
	}
	return h
}

// Disconnect is a full session reset. It is a no-op when already disconnected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state.Connection == Disconnected && s.handle == nil {
		s.mu.Unlock()
		return
	}
	h := s.teardownLocked(true)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.closeHandle(h)
	s.publish(snap)
}

// SetMuted gates the microphone. Listening is updated optimistically; the
// transport's MuteChanged event has the final word.
func (s *Session) SetMuted(muted bool) error {
	return s.setMuted(muted, anyGeneration)
}

func (s *Session) setMuted(muted bool, gen uint64) error {
	s.mu.Lock()
	if gen != anyGeneration && gen != s.gen {
		s.mu.Unlock()
		return ErrConnectAborted
	}
	if s.state.Connection != Connected || s.handle == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	h := s.handle
	s.state.Listening = !muted
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	if err := h.Mute(muted); err != nil {
		return fmt.Errorf("set mute: %w", err)
	}
	return nil
}

// SendText appends the student's message optimistically and forwards it.
func (s *Session) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return s.sendStudentText(text, false, anyGeneration)
}

// Notify injects a synthetic student turn describing quiz progress.
func (s *Session) Notify(n Notification) error {
	msg := n.Message()
	if msg == "" {
		return fmt.Errorf("unknown notification %q", n)
	}
	return s.sendStudentText(msg, true, anyGeneration)
}

func (s *Session) logNotifyError(n Notification, err error) {
	switch {
	case errors.Is(err, ErrConnectAborted), errors.Is(err, ErrNotConnected):
	case errors.Is(err, ErrUnsupportedOperation):
		if s.cfg.Debug {
			log.Printf("tutor: session %s: %s notification kept locally: %v", s.id, n, err)
		}
	default:
		log.Printf("tutor: session %s: %s notification failed: %v", s.id, n, err)
	}
}

func (s *Session) sendStudentText(text string, synthetic bool, gen uint64) error {
	s.mu.Lock()
	if gen != anyGeneration && gen != s.gen {
		s.mu.Unlock()
		return ErrConnectAborted
	}
	if s.state.Connection != Connected || s.handle == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	sender, canSend := s.handle.(TextSender)
	turn := Turn{
		Role:      RoleStudent,
		Text:      text,
		CreatedAt: s.cfg.Now(),
		Synthetic: synthetic,
		Pending:   canSend,
		Failed:    !canSend && !synthetic,
	}
	seq := s.state.Transcript.AppendTurn(turn)
	if canSend {
		s.afterConnLocked(s.cfg.Timing.PendingTimeout, func(gen uint64) { s.failPending(seq, gen) })
	}
	current := s.gen
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	if !canSend {
		return ErrUnsupportedOperation
	}
	if err := sender.SendMessage(text); err != nil {
		s.failPending(seq, current)
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (s *Session) failPending(seq, gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.state.Transcript.FailPending(seq) {
		s.mu.Unlock()
		return
	}
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// RelayAudio forwards browser microphone audio while connected and unmuted.
func (s *Session) RelayAudio(pcm []byte) error {
	s.mu.Lock()
	if s.state.Connection != Connected || s.handle == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	h := s.handle
	s.lastActive = s.cfg.Now()
	s.mu.Unlock()

	appender, ok := h.(AudioAppender)
	if !ok {
		return ErrUnsupportedOperation
	}
	if h.Muted() {
		return nil
	}
	return appender.AppendAudio(pcm)
}

func (s *Session) ClearTranscript() {
	s.mu.Lock()
	s.state.Transcript.Clear()
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// pump delivers one handle's events in order until the handle closes.
func (s *Session) pump(gen uint64, h SessionHandle) {
	for ev := range h.Events() {
		s.dispatch(gen, ev)
	}
}

type liveFlags struct {
	listening, speaking, open bool
}

func (s *Session) flagsLocked() liveFlags {
	return liveFlags{s.state.Listening, s.state.TutorSpeaking, s.state.Transcript.Open()}
}

// dispatch applies one event. Events from a superseded handle are dropped and
// a panic while handling one event is logged without affecting the session.
func (s *Session) dispatch(gen uint64, ev realtime.Event) {
	var (
		snap    models.SessionSnapshot
		changed bool
		stale   SessionHandle
		audio   *models.TutorAudio
	)

	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("tutor: session %s: recovered while handling %T: %v", s.id, ev, r)
			}
		}()

		if s.gen != gen || s.closed {
			return
		}

		before := s.flagsLocked()
		now := s.cfg.Now()
		switch e := ev.(type) {
		case realtime.Disconnected:
			if e.Err != nil {
				log.Printf("tutor: session %s: realtime connection lost: %v", s.id, e.Err)
			} else {
				log.Printf("tutor: session %s: realtime connection closed by remote", s.id)
			}
			stale = s.teardownLocked(true)
		case realtime.AudioDelta:
			s.state.apply(ev, now)
			if len(e.Data) > 0 {
				audio = &models.TutorAudio{ResponseID: e.ResponseID, Data: e.Data}
			}
			// Closing the open turn is invisible to clients and the next
			// transcript delta rejoins it by response id.
			if after := s.flagsLocked(); after.listening == before.listening && after.speaking == before.speaking {
				s.lastActive = now
				return
			}
		case realtime.Unknown:
			if s.cfg.Debug {
				log.Printf("tutor: session %s: ignoring realtime event %q", s.id, e.Type)
			}
			s.state.apply(ev, now)
			if s.flagsLocked() == before {
				return
			}
		default:
			s.state.apply(ev, now)
		}

		snap = s.commitLocked()
		changed = true
	}()

	s.closeHandle(stale)
	if audio != nil && s.cfg.OnAudio != nil {
		s.cfg.OnAudio(*audio)
	}
	if changed {
		s.publish(snap)
	}
}
