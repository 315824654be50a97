package models

import (
	"time"

	"github.com/google/uuid"
)

type TurnView struct {
	Role      string    `json:"role"` // "student" | "tutor"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Pending   bool      `json:"pending,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
	Synthetic bool      `json:"synthetic,omitempty"`
}

type ProgressView struct {
	QuestionIndex int     `json:"question_index"`
	QuestionCount int     `json:"question_count"`
	Attempts      int     `json:"attempts"`
	Result        string  `json:"result"` // "unknown" | "correct" | "incorrect"
	Completed     int     `json:"completed"`
	Locked        bool    `json:"locked"`
	Terminal      bool    `json:"terminal"`
	Reveal        *Reveal `json:"reveal,omitempty"`
}

// SessionSnapshot is the full client-visible state of one tutor session.
// Version increases with every mutation so clients can drop stale pushes.
type SessionSnapshot struct {
	SessionID     uuid.UUID      `json:"session_id"`
	Version       uint64         `json:"version"`
	Connection    string         `json:"connection"` // "disconnected" | "connecting" | "connected"
	Listening     bool           `json:"listening"`
	TutorSpeaking bool           `json:"tutor_speaking"`
	Error         string         `json:"error,omitempty"`
	Transcript    []TurnView     `json:"transcript"`
	Progress      ProgressView   `json:"progress"`
	Question      PublicQuestion `json:"question"`
}

type CreateSessionResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Ticket    string    `json:"ticket"`
	ExpiresIn int       `json:"expires_in"`
}

type ConnectRequest struct {
	APIKey string `json:"apiKey"`
}

type MuteRequest struct {
	Muted bool `json:"muted"`
}

type SendTextRequest struct {
	Text string `json:"text"`
}
