package realtime

import (
	"encoding/json"
	"time"
)

// Event is a decoded server event. The set of implementations is closed;
// consumers dispatch with a type switch.
type Event interface {
	realtimeEvent()
}

// SpeechStarted: server VAD detected the student speaking.
type SpeechStarted struct {
	ItemID string
}

type SpeechStopped struct {
	ItemID string
}

// InputTranscriptionCompleted carries the final transcript of one student utterance.
type InputTranscriptionCompleted struct {
	ItemID     string
	Transcript string
}

// TextDelta is a fragment of tutor text, either the transcript of spoken
// output or plain text output.
type TextDelta struct {
	ResponseID string
	ItemID     string
	Delta      string
}

// AudioDelta is a chunk of tutor audio (PCM16, 24kHz mono).
type AudioDelta struct {
	ResponseID string
	ItemID     string
	Data       []byte
}

type ResponseStarted struct {
	ResponseID string
	Stage      string
}

type ResponseEnded struct {
	ResponseID string
	Stage      string
}

// Disconnected is emitted once when the remote side closes the socket.
// It is never emitted after a local Close.
type Disconnected struct {
	Err error
}

// MuteChanged reports the transport's authoritative microphone state.
type MuteChanged struct {
	Muted bool
}

type HistoryItemAdded struct {
	Item HistoryItem
}

// HistoryUpdated is a full snapshot of the conversation as the transport knows it.
type HistoryUpdated struct {
	Items []HistoryItem
}

type ServerError struct {
	Type    string
	Code    string
	Message string
}

type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (SpeechStarted) realtimeEvent()               {}
func (SpeechStopped) realtimeEvent()               {}
func (InputTranscriptionCompleted) realtimeEvent() {}
func (TextDelta) realtimeEvent()                   {}
func (AudioDelta) realtimeEvent()                  {}
func (ResponseStarted) realtimeEvent()             {}
func (ResponseEnded) realtimeEvent()               {}
func (Disconnected) realtimeEvent()                {}
func (MuteChanged) realtimeEvent()                 {}
func (HistoryItemAdded) realtimeEvent()            {}
func (HistoryUpdated) realtimeEvent()              {}
func (ServerError) realtimeEvent()                 {}
func (Unknown) realtimeEvent()                     {}

// HistoryItem is one conversation item reduced to its text.
type HistoryItem struct {
	ID        string
	Type      string // "message", "function_call", ...
	Role      string // "user" | "assistant" | "system"
	Text      string
	CreatedAt time.Time
}
