package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/services"
	"quiztutor-backend/internal/tutor"
)

const (
	maxAudioFrame    = 1 << 20
	writeTimeout     = 10 * time.Second
	subscribeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type TicketVerifier interface {
	Verify(ticket string) (uuid.UUID, error)
}

// SessionBridge is how the hub reaches tutor sessions.
type SessionBridge interface {
	SessionSnapshot(id uuid.UUID) (models.SessionSnapshot, bool)
	RelayAudio(id uuid.UUID, pcm []byte) error
}

// client serializes writes; gorilla connections allow one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(data)
}

func (c *client) writeLocked(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// subscription is the Redis subscription shared by a session's browsers.
// ready closes once SUBSCRIBE is confirmed or has failed.
type subscription struct {
	cancel context.CancelFunc
	ready  chan struct{}
	err    error
}

// Hub streams session updates to browsers and relays their microphone audio.
// With Redis configured, updates arrive over pub/sub; otherwise the hub is
// the publisher itself.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*client
	redisClient *redis.Client
	tickets     TicketVerifier
	sessions    SessionBridge
	subs        map[uuid.UUID]*subscription
}

// NewHub creates a hub. redisClient may be nil, in which case updates must be
// delivered through PublishState and PublishAudio.
func NewHub(redisClient *redis.Client, tickets TicketVerifier) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*client),
		redisClient: redisClient,
		tickets:     tickets,
		subs:        make(map[uuid.UUID]*subscription),
	}
}

// Attach sets the session registry. It must be called before serving.
func (h *Hub) Attach(sessions SessionBridge) {
	h.sessions = sessions
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via ticket query param
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID, err := h.tickets.Verify(ticket)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if requested := r.URL.Query().Get("session_id"); requested != "" && requested != sessionID.String() {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if _, ok := h.sessions.SessionSnapshot(sessionID); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(maxAudioFrame)

	// Broadcasts to c wait on c.mu until the snapshot is written. The snapshot
	// is read once the subscription is live, so every update is either in it
	// or delivered after it. Browsers drop versions they have already seen.
	c := &client{conn: conn}
	c.mu.Lock()
	if err := h.registerConnection(sessionID, c); err != nil {
		c.mu.Unlock()
		log.Printf("WebSocket subscribe failed: session %s: %v", sessionID, err)
		h.unregisterConnection(sessionID, c)
		return
	}
	snap, ok := h.sessions.SessionSnapshot(sessionID)
	if ok {
		var data []byte
		if data, err = json.Marshal(models.WSMessage{Type: models.WSTypeState, Payload: snap}); err == nil {
			err = c.writeLocked(data)
		}
	}
	c.mu.Unlock()
	if !ok || err != nil {
		h.unregisterConnection(sessionID, c)
		return
	}

	go func() {
		defer h.unregisterConnection(sessionID, c)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			if err := h.sessions.RelayAudio(sessionID, data); err != nil {
				if errors.Is(err, tutor.ErrSessionClosed) {
					break
				}
				if !errors.Is(err, tutor.ErrNotConnected) {
					log.Printf("WebSocket audio relay failed: session %s: %v", sessionID, err)
				}
			}
		}
	}()
}

// registerConnection adds c to the session and returns once the session's
// Redis subscription is live.
func (h *Hub) registerConnection(sessionID uuid.UUID, c *client) error {
	h.mu.Lock()
	h.connections[sessionID] = append(h.connections[sessionID], c)
	total := len(h.connections[sessionID])

	if h.redisClient == nil {
		h.mu.Unlock()
		log.Printf("WebSocket connected: session %s (total: %d)", sessionID, total)
		return nil
	}

	sub, ok := h.subs[sessionID]
	if !ok {
		// First connection for this session subscribes
		ctx, cancel := context.WithCancel(context.Background())
		sub = &subscription{cancel: cancel, ready: make(chan struct{})}
		h.subs[sessionID] = sub
		h.mu.Unlock()

		pubsub, err := h.subscribe(ctx, sessionID)
		sub.err = err
		close(sub.ready)
		if err == nil {
			go h.forward(ctx, sessionID, pubsub)
		}
	} else {
		h.mu.Unlock()
	}

	<-sub.ready
	if sub.err != nil {
		return sub.err
	}
	log.Printf("WebSocket connected: session %s (total: %d)", sessionID, total)
	return nil
}

// subscribe issues SUBSCRIBE and waits for Redis to confirm it.
func (h *Hub) subscribe(ctx context.Context, sessionID uuid.UUID) (*redis.PubSub, error) {
	pubsub := h.redisClient.Subscribe(ctx, services.UpdateChannel(sessionID))

	confirmCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()
	msg, err := pubsub.Receive(confirmCtx)
	if err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", services.UpdateChannel(sessionID), err)
	}
	if _, ok := msg.(*redis.Subscription); !ok {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: unexpected reply %T", services.UpdateChannel(sessionID), msg)
	}
	return pubsub, nil
}

func (h *Hub) unregisterConnection(sessionID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[sessionID]
	found := false
	for i, existing := range conns {
		if existing == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if sub, ok := h.subs[sessionID]; ok {
			sub.cancel()
			delete(h.subs, sessionID)
		}
	}

	log.Printf("WebSocket disconnected: session %s", sessionID)
}

// forward relays a confirmed subscription to the session's browsers until ctx
// is cancelled by the last unregister.
func (h *Hub) forward(ctx context.Context, sessionID uuid.UUID, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients := append([]*client(nil), h.connections[sessionID]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			// The read loop notices the broken connection and unregisters it.
			c.conn.Close()
		}
	}
}

// SendToSession sends a message directly to a session's browsers (for use outside pub/sub)
func (h *Hub) SendToSession(sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(sessionID, data)
}

// PublishState and PublishAudio let the hub stand in for Redis when the
// server runs as a single instance.
func (h *Hub) PublishState(ctx context.Context, sessionID uuid.UUID, snapshot models.SessionSnapshot) {
	h.SendToSession(sessionID, models.WSMessage{Type: models.WSTypeState, Payload: snapshot})
}

func (h *Hub) PublishAudio(ctx context.Context, sessionID uuid.UUID, audio models.TutorAudio) {
	h.SendToSession(sessionID, models.WSMessage{Type: models.WSTypeTutorAudio, Payload: audio})
}

// Connections reports how many browsers are attached to a session.
func (h *Hub) Connections(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[sessionID])
}

// Close drops every browser connection and subscription. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, clients := range h.connections {
		for _, c := range clients {
			c.conn.Close()
		}
		delete(h.connections, id)
	}
	for id, sub := range h.subs {
		sub.cancel()
		delete(h.subs, id)
	}
}
