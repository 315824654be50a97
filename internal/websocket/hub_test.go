package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/services"
	"quiztutor-backend/internal/tutor"
)

type stubVerifier struct {
	tickets map[string]uuid.UUID
}

func (s stubVerifier) Verify(ticket string) (uuid.UUID, error) {
	id, ok := s.tickets[ticket]
	if !ok {
		return uuid.Nil, errors.New("invalid ticket")
	}
	return id, nil
}

type stubBridge struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]models.SessionSnapshot
	audio [][]byte
	err   error
}

func (b *stubBridge) SessionSnapshot(id uuid.UUID) (models.SessionSnapshot, bool) {
	snap, ok := b.snaps[id]
	return snap, ok
}

func (b *stubBridge) RelayAudio(id uuid.UUID, pcm []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, pcm)
	return b.err
}

func (b *stubBridge) frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.audio)
}

func newTestHub(t *testing.T) (*Hub, *stubBridge, uuid.UUID, *httptest.Server) {
	t.Helper()
	return newTestHubWithRedis(t, nil)
}

func newTestHubWithRedis(t *testing.T, redisClient *redis.Client) (*Hub, *stubBridge, uuid.UUID, *httptest.Server) {
	t.Helper()
	id := uuid.New()
	bridge := &stubBridge{snaps: map[uuid.UUID]models.SessionSnapshot{
		id: {SessionID: id, Version: 7, Connection: "disconnected"},
	}}
	hub := NewHub(redisClient, stubVerifier{tickets: map[string]uuid.UUID{"good": id, "orphan": uuid.New()}})
	hub.Attach(bridge)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, bridge, id, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg models.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestHub_RejectsBadTickets(t *testing.T) {
	_, _, id, srv := newTestHub(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing ticket", "session_id=" + id.String(), http.StatusUnauthorized},
		{"unknown ticket", "ticket=bad", http.StatusUnauthorized},
		{"ticket for another session", "ticket=good&session_id=" + uuid.New().String(), http.StatusForbidden},
		{"session not mounted", "ticket=orphan", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + tc.query
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err == nil {
				t.Fatalf("expected handshake to fail")
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Fatalf("Expected status %d, got %v", tc.status, resp)
			}
		})
	}
}

func TestHub_SendsSnapshotOnConnect(t *testing.T) {
	hub, _, id, srv := newTestHub(t)
	conn := dial(t, srv, "ticket=good&session_id="+id.String())

	msg := readMessage(t, conn)
	if msg.Type != models.WSTypeState {
		t.Fatalf("Expected %q, got %q", models.WSTypeState, msg.Type)
	}
	payload, _ := msg.Payload.(map[string]interface{})
	if payload["version"] != float64(7) {
		t.Errorf("unexpected snapshot payload %v", payload)
	}
	if hub.Connections(id) != 1 {
		t.Errorf("expected one registered connection, got %d", hub.Connections(id))
	}
}

func TestHub_PublishesToAttachedBrowsers(t *testing.T) {
	hub, _, id, srv := newTestHub(t)
	a := dial(t, srv, "ticket=good")
	b := dial(t, srv, "ticket=good")
	readMessage(t, a)
	readMessage(t, b)
	waitFor(t, func() bool { return hub.Connections(id) == 2 })

	hub.PublishAudio(context.Background(), id, models.TutorAudio{ResponseID: "r1", Data: []byte{1, 2, 3}})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Type != models.WSTypeTutorAudio {
			t.Fatalf("Expected %q, got %q", models.WSTypeTutorAudio, msg.Type)
		}
		payload, _ := msg.Payload.(map[string]interface{})
		if payload["data"] != "AQID" {
			t.Errorf("expected base64 audio, got %v", payload["data"])
		}
	}
}

func TestHub_RelaysBinaryAudio(t *testing.T) {
	_, bridge, _, srv := newTestHub(t)
	conn := dial(t, srv, "ticket=good")
	readMessage(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0, 1, 0, 1}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	waitFor(t, func() bool { return bridge.frames() == 1 })
}

func TestHub_ClosedSessionDropsBrowser(t *testing.T) {
	hub, bridge, id, srv := newTestHub(t)
	bridge.mu.Lock()
	bridge.err = tutor.ErrSessionClosed
	bridge.mu.Unlock()
	conn := dial(t, srv, "ticket=good")
	readMessage(t, conn)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0, 1}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitFor(t, func() bool { return hub.Connections(id) == 0 })
}

func newRedisHub(t *testing.T) (*miniredis.Miniredis, *services.UpdatePublisher, *Hub, uuid.UUID, *httptest.Server) {
	t.Helper()
	mr := miniredis.RunT(t)
	subscriber := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	publisher := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		subscriber.Close()
		publisher.Close()
	})

	hub, _, id, srv := newTestHubWithRedis(t, subscriber)
	return mr, services.NewUpdatePublisher(publisher), hub, id, srv
}

func subscribers(mr *miniredis.Miniredis, id uuid.UUID) int {
	channel := services.UpdateChannel(id)
	return mr.PubSubNumSub(channel)[channel]
}

func TestHub_RedisDeliversUpdatesPublishedRightAfterSnapshot(t *testing.T) {
	_, publisher, hub, id, srv := newRedisHub(t)

	for i := 0; i < 20; i++ {
		conn := dial(t, srv, "ticket=good")
		if msg := readMessage(t, conn); msg.Type != models.WSTypeState {
			t.Fatalf("trial %d: expected snapshot first, got %q", i, msg.Type)
		}

		version := uint64(100 + i)
		publisher.PublishState(context.Background(), id, models.SessionSnapshot{SessionID: id, Version: version})

		msg := readMessage(t, conn)
		payload, _ := msg.Payload.(map[string]interface{})
		if msg.Type != models.WSTypeState || payload["version"] != float64(version) {
			t.Fatalf("trial %d: expected update version %d, got %q %v", i, version, msg.Type, payload)
		}

		conn.Close()
		waitFor(t, func() bool { return hub.Connections(id) == 0 })
	}
}

func TestHub_RedisSubscriptionFollowsConnections(t *testing.T) {
	mr, publisher, hub, id, srv := newRedisHub(t)

	a := dial(t, srv, "ticket=good")
	b := dial(t, srv, "ticket=good")
	readMessage(t, a)
	readMessage(t, b)
	waitFor(t, func() bool { return hub.Connections(id) == 2 })

	if got := subscribers(mr, id); got != 1 {
		t.Fatalf("expected one subscription shared by both browsers, got %d", got)
	}

	publisher.PublishAudio(context.Background(), id, models.TutorAudio{ResponseID: "r1", Data: []byte{1, 2, 3}})
	for _, conn := range []*websocket.Conn{a, b} {
		if msg := readMessage(t, conn); msg.Type != models.WSTypeTutorAudio {
			t.Fatalf("Expected %q, got %q", models.WSTypeTutorAudio, msg.Type)
		}
	}

	a.Close()
	waitFor(t, func() bool { return hub.Connections(id) == 1 })
	if got := subscribers(mr, id); got != 1 {
		t.Errorf("expected subscription to survive while a browser remains, got %d", got)
	}

	b.Close()
	waitFor(t, func() bool { return hub.Connections(id) == 0 })
	waitFor(t, func() bool { return subscribers(mr, id) == 0 })
}
