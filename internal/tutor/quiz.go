package tutor

import (
	"strings"
	"unicode"

	"quiztutor-backend/internal/models"
)

const maxAttempts = 2

type quizState struct {
	index    int
	attempts int
	result   Result
	locked   bool
	terminal bool
	// epoch changes whenever the per-question fields reset, invalidating
	// pending reopen timers.
	epoch uint64
	// completed holds the IDs of questions answered correctly at least once.
	completed map[int]struct{}
}

func newQuizState() quizState {
	return quizState{result: ResultUnknown, completed: make(map[int]struct{})}
}

func (s *Session) resetQuestionLocked() {
	s.quiz.attempts = 0
	s.quiz.result = ResultUnknown
	s.quiz.locked = false
	s.quiz.terminal = false
	s.quiz.epoch++
	s.quizTimers.stop()
}

// Grade judges a submission. Choice answers must match exactly. Open answers
// are compared case-insensitively and also pass when every comma or
// whitespace separated word of the canonical answer appears in the submission.
func Grade(q models.Question, value string) bool {
	if q.Kind == models.QuestionChoice {
		return value == q.Answer
	}

	got := strings.ToLower(strings.TrimSpace(value))
	want := strings.ToLower(strings.TrimSpace(q.Answer))
	if got == "" {
		return false
	}
	if got == want {
		return true
	}

	words := strings.FieldsFunc(want, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(got, w) {
			return false
		}
	}
	return true
}

// SubmitAnswer grades an answer for the current question.
func (s *Session) SubmitAnswer(value string) (models.SubmitAnswerResponse, error) {
	if strings.TrimSpace(value) == "" {
		return models.SubmitAnswerResponse{}, ErrEmptyAnswer
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.SubmitAnswerResponse{}, ErrSessionClosed
	}
	if s.quiz.terminal || s.quiz.locked {
		s.mu.Unlock()
		return models.SubmitAnswerResponse{}, ErrAnswerLocked
	}

	q, _ := s.cfg.Deck.At(s.quiz.index)
	correct := Grade(q, value)
	s.quiz.attempts++

	var note Notification
	switch {
	case correct:
		s.quiz.result = ResultCorrect
		s.quiz.terminal = true
		s.quiz.completed[q.ID] = struct{}{}
		note = NotifyCorrect
	case s.quiz.attempts >= maxAttempts:
		s.quiz.result = ResultIncorrect
		s.quiz.terminal = true
		note = NotifySecondWrong
	default:
		s.quiz.result = ResultIncorrect
		s.quiz.locked = true
		s.afterQuizLocked(s.cfg.Timing.RetryDelay, s.reopen)
		note = NotifyFirstWrong
	}

	resp := models.SubmitAnswerResponse{
		Correct:  correct,
		Attempts: s.quiz.attempts,
		Terminal: s.quiz.terminal,
	}
	if s.quiz.terminal {
		resp.Reveal = &models.Reveal{Answer: q.Answer, Explanation: q.Explanation}
	}
	connected := s.state.Connection == Connected
	snap := s.commitLocked()
	s.mu.Unlock()

	s.publish(snap)
	if connected {
		if err := s.Notify(note); err != nil {
			s.logNotifyError(note, err)
		}
	}
	return resp, nil
}

// reopen lets the student retry after the feedback window.
func (s *Session) reopen(epoch uint64) {
	s.mu.Lock()
	if s.quiz.epoch != epoch || !s.quiz.locked || s.closed {
		s.mu.Unlock()
		return
	}
	s.quiz.locked = false
	snap := s.commitLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Advance moves to the next question. At the last question it does nothing.
// A live connection is replaced by a fresh one carrying the new question's
// context, and that connection starts unmuted.
func (s *Session) Advance() error {
	return s.advance(false)
}

// Skip abandons the current question without touching the completed count.
func (s *Session) Skip() error {
	return s.advance(true)
}

func (s *Session) advance(skip bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	if s.quiz.index >= s.cfg.Deck.Len()-1 {
		if !skip {
			s.mu.Unlock()
			return nil
		}
		s.resetQuestionLocked()
		snap := s.commitLocked()
		s.mu.Unlock()
		s.publish(snap)
		return nil
	}

	s.quiz.index++
	s.resetQuestionLocked()
	s.state.Transcript.Clear()

	var (
		stale   SessionHandle
		attempt connectAttempt
		restart bool
	)
	if s.state.Connection != Disconnected {
		stale = s.teardownLocked(false)
		attempt = s.beginLocked(s.credential, true)
		restart = true
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.closeHandle(stale)
	s.publish(snap)
	if restart {
		s.cfg.Spawn(func() { s.runConnect(attempt) })
	}
	return nil
}
