package tutor

import (
	"strings"
	"time"

	"quiztutor-backend/internal/realtime"
)

type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
)

// connState is the reconciled view of one realtime connection.
type connState struct {
	Connection    ConnectionState
	Listening     bool
	TutorSpeaking bool
	Error         string
	Transcript    Transcript
}

func (s *connState) reset() {
	s.Connection = Disconnected
	s.Listening = false
	s.TutorSpeaking = false
	s.Error = ""
	s.Transcript.Clear()
}

// apply folds one transport event into the state. Side effects that touch the
// handle or the outside world (teardown, audio fan-out) are left to the caller.
func (s *connState) apply(ev realtime.Event, now time.Time) {
	if _, ok := ev.(realtime.TextDelta); !ok {
		s.Transcript.CloseOpen()
	}

	switch e := ev.(type) {
	case realtime.SpeechStarted:
		s.Listening = true
		s.TutorSpeaking = false
	case realtime.SpeechStopped:
		s.Listening = false
	case realtime.InputTranscriptionCompleted:
		if text := strings.TrimSpace(e.Transcript); text != "" {
			s.Transcript.AppendTurn(Turn{Role: RoleStudent, Text: text, CreatedAt: now})
		}
	case realtime.TextDelta:
		s.Transcript.AppendDelta(e.ResponseID, e.Delta, now)
	case realtime.ResponseStarted, realtime.AudioDelta:
		s.TutorSpeaking = true
		s.Listening = false
	case realtime.ResponseEnded:
		s.TutorSpeaking = false
	case realtime.MuteChanged:
		s.Listening = !e.Muted
	case realtime.HistoryItemAdded:
		turn, ok := turnFromHistory(e.Item, now)
		if !ok {
			return
		}
		if turn.Role == RoleStudent && s.Transcript.ConfirmPending(turn.Text) {
			return
		}
		s.Transcript.AppendTurn(turn)
	case realtime.HistoryUpdated:
		synthetic := make(map[string]bool)
		for _, turn := range s.Transcript.turns {
			if turn.Synthetic {
				synthetic[turn.Text] = true
			}
		}
		turns := make([]Turn, 0, len(e.Items))
		for _, item := range e.Items {
			if turn, ok := turnFromHistory(item, now); ok {
				turn.Synthetic = turn.Role == RoleStudent && synthetic[turn.Text]
				turns = append(turns, turn)
			}
		}
		s.Transcript.Replace(turns)
	case realtime.ServerError:
		s.Error = e.Message
		if s.Error == "" {
			s.Error = "realtime error: " + e.Type
		}
	case realtime.Disconnected, realtime.Unknown:
		// Disconnected is handled by the caller as a full teardown.
	}
}

// turnFromHistory converts a message item into a turn. Items without text or
// with roles other than user and assistant are skipped.
func turnFromHistory(item realtime.HistoryItem, now time.Time) (Turn, bool) {
	if item.Type != "" && item.Type != "message" {
		return Turn{}, false
	}
	text := strings.TrimSpace(item.Text)
	if text == "" {
		return Turn{}, false
	}

	var role Role
	switch item.Role {
	case "user":
		role = RoleStudent
	case "assistant":
		role = RoleTutor
	default:
		return Turn{}, false
	}

	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}
	return Turn{Role: role, Text: text, CreatedAt: created}, true
}
