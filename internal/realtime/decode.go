package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type wireContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

type wireItem struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireResponse struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Output []wireItem `json:"output"`
}

type wireError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type serverFrame struct {
	Type       string        `json:"type"`
	ItemID     string        `json:"item_id"`
	ResponseID string        `json:"response_id"`
	Delta      string        `json:"delta"`
	Transcript string        `json:"transcript"`
	Item       *wireItem     `json:"item"`
	Response   *wireResponse `json:"response"`
	Error      *wireError    `json:"error"`
}

// itemText flattens an item's content parts into display text.
func itemText(content []wireContent) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		var text string
		switch c.Type {
		case "text", "input_text", "output_text":
			text = c.Text
		case "audio", "input_audio", "output_audio":
			text = c.Transcript
		default:
			text = c.Transcript
			if text == "" {
				text = c.Text
			}
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// historyTracker mirrors the server-side conversation so full snapshots can be
// emitted. It is owned by the read loop.
type historyTracker struct {
	items map[string]*HistoryItem
	order []string
	now   func() time.Time
}

func newHistoryTracker(now func() time.Time) *historyTracker {
	return &historyTracker{items: make(map[string]*HistoryItem), now: now}
}

// upsert records an item and reports whether it was new.
func (h *historyTracker) upsert(item wireItem) (HistoryItem, bool) {
	existing, ok := h.items[item.ID]
	if !ok {
		existing = &HistoryItem{ID: item.ID, CreatedAt: h.now()}
		h.items[item.ID] = existing
		h.order = append(h.order, item.ID)
	}
	if item.Type != "" {
		existing.Type = item.Type
	}
	if item.Role != "" {
		existing.Role = item.Role
	}
	if text := itemText(item.Content); text != "" {
		existing.Text = text
	}
	return *existing, !ok
}

func (h *historyTracker) setText(id, text string) {
	if item, ok := h.items[id]; ok && text != "" {
		item.Text = text
	}
}

func (h *historyTracker) remove(id string) {
	if _, ok := h.items[id]; !ok {
		return
	}
	delete(h.items, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *historyTracker) snapshot() []HistoryItem {
	out := make([]HistoryItem, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, *h.items[id])
	}
	return out
}

type decoder struct {
	history *historyTracker
}

func newDecoder(now func() time.Time) *decoder {
	return &decoder{history: newHistoryTracker(now)}
}

// decode turns one text frame into zero or more events.
func (d *decoder) decode(data []byte) ([]Event, error) {
	var f serverFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}

	switch f.Type {
	case "input_audio_buffer.speech_started":
		return []Event{SpeechStarted{ItemID: f.ItemID}}, nil
	case "input_audio_buffer.speech_stopped":
		return []Event{SpeechStopped{ItemID: f.ItemID}}, nil

	case "conversation.item.input_audio_transcription.completed":
		d.history.setText(f.ItemID, f.Transcript)
		return []Event{InputTranscriptionCompleted{ItemID: f.ItemID, Transcript: f.Transcript}}, nil

	case "response.audio_transcript.delta", "response.output_audio_transcript.delta",
		"response.text.delta", "response.output_text.delta":
		return []Event{TextDelta{ResponseID: f.ResponseID, ItemID: f.ItemID, Delta: f.Delta}}, nil

	case "response.audio.delta", "response.output_audio.delta":
		pcm, err := base64.StdEncoding.DecodeString(f.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta: %w", err)
		}
		return []Event{AudioDelta{ResponseID: f.ResponseID, ItemID: f.ItemID, Data: pcm}}, nil

	case "response.created", "response.started":
		id := f.ResponseID
		if f.Response != nil {
			id = f.Response.ID
		}
		return []Event{ResponseStarted{ResponseID: id, Stage: f.Type}}, nil
	case "response.output_item.added":
		return []Event{ResponseStarted{ResponseID: f.ResponseID, Stage: f.Type}}, nil

	case "response.audio.done", "response.output_audio.done":
		return []Event{ResponseEnded{ResponseID: f.ResponseID, Stage: f.Type}}, nil
	case "response.output_item.done":
		if f.Item != nil && f.Item.ID != "" {
			d.history.upsert(*f.Item)
		}
		return []Event{ResponseEnded{ResponseID: f.ResponseID, Stage: f.Type}}, nil
	case "response.done":
		var id string
		if f.Response != nil {
			id = f.Response.ID
			for _, item := range f.Response.Output {
				if item.ID != "" {
					d.history.upsert(item)
				}
			}
		}
		return []Event{
			ResponseEnded{ResponseID: id, Stage: f.Type},
			HistoryUpdated{Items: d.history.snapshot()},
		}, nil

	case "conversation.item.created", "conversation.item.added":
		if f.Item == nil || f.Item.ID == "" {
			return nil, nil
		}
		item, isNew := d.history.upsert(*f.Item)
		if !isNew {
			return nil, nil
		}
		return []Event{HistoryItemAdded{Item: item}}, nil
	case "conversation.item.done":
		if f.Item != nil && f.Item.ID != "" {
			d.history.upsert(*f.Item)
		}
		return nil, nil
	case "conversation.item.deleted":
		d.history.remove(f.ItemID)
		return nil, nil

	case "error":
		e := ServerError{Type: "error"}
		if f.Error != nil {
			e.Type = f.Error.Type
			e.Code = f.Error.Code
			e.Message = f.Error.Message
		}
		return []Event{e}, nil
	}

	return []Event{Unknown{Type: f.Type, Raw: append(json.RawMessage(nil), data...)}}, nil
}
