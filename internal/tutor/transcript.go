package tutor

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// Turn is one contiguous span of text from a single speaker.
type Turn struct {
	Role       Role
	Text       string
	CreatedAt  time.Time
	ResponseID string

	// Optimistic student turns stay pending until the transport echoes them back.
	Pending   bool
	Failed    bool
	Synthetic bool

	seq uint64
}

// Transcript is the ordered conversation. Only the last turn can be open, and
// only if it is a tutor turn that has not been closed by a non-delta event.
type Transcript struct {
	turns   []Turn
	open    bool
	nextSeq uint64
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// Turns returns a copy of the conversation in order.
func (t *Transcript) Turns() []Turn {
	return append([]Turn(nil), t.turns...)
}

// Open reports whether the last turn is still accepting tutor deltas.
func (t *Transcript) Open() bool {
	return t.open
}

func (t *Transcript) CloseOpen() {
	t.open = false
}

func (t *Transcript) Clear() {
	t.turns = nil
	t.open = false
}

// AppendTurn appends a closed turn and returns its sequence number.
func (t *Transcript) AppendTurn(turn Turn) uint64 {
	t.nextSeq++
	turn.seq = t.nextSeq
	t.turns = append(t.turns, turn)
	t.open = false
	return turn.seq
}

// AppendDelta extends the tutor turn a delta belongs to, or starts a new one.
// A delta carrying a response id rejoins the last turn of the same response
// even after it was closed; mismatched ids never merge. Without an id the
// open tutor turn is extended by adjacency.
func (t *Transcript) AppendDelta(responseID, delta string, now time.Time) {
	if delta == "" {
		return
	}
	if n := len(t.turns); n > 0 {
		last := &t.turns[n-1]
		if last.Role == RoleTutor {
			switch {
			case responseID != "" && last.ResponseID == responseID:
				last.Text += delta
				t.open = true
				return
			case t.open && (responseID == "" || last.ResponseID == ""):
				last.Text += delta
				if last.ResponseID == "" {
					last.ResponseID = responseID
				}
				return
			}
		}
	}

	t.AppendTurn(Turn{Role: RoleTutor, Text: delta, CreatedAt: now, ResponseID: responseID})
	t.open = true
}

// Replace rebuilds the conversation wholesale from a snapshot.
func (t *Transcript) Replace(turns []Turn) {
	t.turns = t.turns[:0]
	for _, turn := range turns {
		t.AppendTurn(turn)
	}
	t.open = false
}

// ConfirmPending clears the pending flag of the oldest pending student turn
// with the same text. It reports whether a turn matched.
func (t *Transcript) ConfirmPending(text string) bool {
	text = strings.TrimSpace(text)
	for i := range t.turns {
		turn := &t.turns[i]
		if turn.Pending && turn.Role == RoleStudent && turn.Text == text {
			turn.Pending = false
			return true
		}
	}
	return false
}

// FailPending marks a still-pending turn as failed.
func (t *Transcript) FailPending(seq uint64) bool {
	for i := range t.turns {
		turn := &t.turns[i]
		if turn.seq == seq {
			if !turn.Pending {
				return false
			}
			turn.Pending = false
			turn.Failed = true
			return true
		}
	}
	return false
}
