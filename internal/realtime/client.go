package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultConnectTimeout = 15 * time.Second
	eventBufferSize       = 256
)

var ErrSessionClosed = errors.New("realtime session is closed")

// DialError describes a failed websocket handshake.
type DialError struct {
	Status int
	Err    error
}

func (e *DialError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("realtime dial failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("realtime dial failed: %v", e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Threshold         float64
	PrefixPaddingMS   int
	SilenceDurationMS int
}

type Client struct {
	baseURL         string
	model           string
	transcribeModel string
	turnDetection   TurnDetection
	dialer          *websocket.Dialer
}

func NewClient(baseURL, model, transcribeModel string) *Client {
	return &Client{
		baseURL:         baseURL,
		model:           model,
		transcribeModel: transcribeModel,
		turnDetection: TurnDetection{
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 500,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultConnectTimeout,
		},
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse realtime URL: %w", err)
	}
	q := u.Query()
	q.Set("model", c.model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Type         string      `json:"type"`
	Instructions string      `json:"instructions"`
	Audio        audioConfig `json:"audio"`
}

type audioConfig struct {
	Input audioInputConfig `json:"input"`
}

type audioInputConfig struct {
	Transcription transcriptionConfig `json:"transcription"`
	TurnDetection turnDetectionConfig `json:"turn_detection"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

type turnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

// Connect opens a realtime session authorized by a short-lived credential and
// configures it with the given system instructions.
func (c *Client) Connect(ctx context.Context, credential, instructions string) (*Session, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("realtime credential is required")
	}

	wsURL, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+credential)

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(dialCtx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, &DialError{Status: resp.StatusCode, Err: err}
		}
		return nil, &DialError{Err: err}
	}

	// The first frame is either session.created or an error.
	_ = conn.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read session.created: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var first serverFrame
	if err := json.Unmarshal(payload, &first); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode first realtime frame: %w", err)
	}
	switch first.Type {
	case "session.created":
	case "error":
		_ = conn.Close()
		msg := "realtime session rejected"
		if first.Error != nil && first.Error.Message != "" {
			msg = first.Error.Message
		}
		return nil, errors.New(msg)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected first realtime frame %q", first.Type)
	}

	update := sessionUpdate{
		Type: "session.update",
		Session: sessionConfig{
			Type:         "realtime",
			Instructions: instructions,
			Audio: audioConfig{
				Input: audioInputConfig{
					Transcription: transcriptionConfig{Model: c.transcribeModel},
					TurnDetection: turnDetectionConfig{
						Type:              "server_vad",
						Threshold:         c.turnDetection.Threshold,
						PrefixPaddingMS:   c.turnDetection.PrefixPaddingMS,
						SilenceDurationMS: c.turnDetection.SilenceDurationMS,
					},
				},
			},
		},
	}
	if err := conn.WriteJSON(update); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send session.update: %w", err)
	}

	s := newSession(conn)
	go s.readLoop()
	return s, nil
}

// Session is one live realtime connection. Events are delivered in arrival
// order on a single channel, which is closed when the read loop exits.
type Session struct {
	conn    *websocket.Conn
	decoder *decoder

	events  chan Event
	done    chan struct{}
	closing chan struct{}

	emitMu       sync.RWMutex
	eventsClosed bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	muted     atomic.Bool
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		conn:    conn,
		decoder: newDecoder(time.Now),
		events:  make(chan Event, eventBufferSize),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
}

func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) Muted() bool {
	return s.muted.Load()
}

// Mute gates microphone audio. Pending input is discarded on mute. The new
// state is confirmed with a MuteChanged event.
func (s *Session) Mute(muted bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.muted.Store(muted)
	if muted {
		if err := s.sendJSON(map[string]string{"type": "input_audio_buffer.clear"}); err != nil {
			log.Printf("realtime: failed to clear input buffer: %v", err)
		}
	}
	s.emit(MuteChanged{Muted: muted})
	return nil
}

// AppendAudio forwards PCM16 microphone audio. Frames are dropped while muted.
func (s *Session) AppendAudio(pcm []byte) error {
	if s.muted.Load() || len(pcm) == 0 {
		return nil
	}
	return s.sendJSON(map[string]string{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
}

type conversationItemCreate struct {
	Type string   `json:"type"`
	Item wireItem `json:"item"`
}

// SendMessage injects a student text message and asks for a response.
func (s *Session) SendMessage(text string) error {
	item := conversationItemCreate{
		Type: "conversation.item.create",
		Item: wireItem{
			Type:    "message",
			Role:    "user",
			Content: []wireContent{{Type: "input_text", Text: text}},
		},
	}
	if err := s.sendJSON(item); err != nil {
		return err
	}
	return s.sendJSON(map[string]string{"type": "response.create"})
}

func (s *Session) sendJSON(v any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close tears the connection down and waits for the read loop to exit.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closing)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer func() {
		s.emitMu.Lock()
		s.eventsClosed = true
		close(s.events)
		s.emitMu.Unlock()
	}()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				var cause error
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					cause = err
				}
				s.emit(Disconnected{Err: cause})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		events, err := s.decoder.decode(data)
		if err != nil {
			log.Printf("realtime: dropping malformed frame: %v", err)
			continue
		}
		for _, ev := range events {
			s.emit(ev)
		}
	}
}

func (s *Session) emit(ev Event) {
	s.emitMu.RLock()
	defer s.emitMu.RUnlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- ev:
	case <-s.closing:
	}
}
