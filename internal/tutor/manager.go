package tutor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/repository"
)

// Publisher fans session updates out to connected browsers.
type Publisher interface {
	PublishState(ctx context.Context, sessionID uuid.UUID, snapshot models.SessionSnapshot)
	PublishAudio(ctx context.Context, sessionID uuid.UUID, audio models.TutorAudio)
}

type ManagerConfig struct {
	Deck        *repository.QuestionStore
	Tokens      TokenExchanger
	Dialer      Dialer
	Publisher   Publisher
	StudentName string
	Timing      Timing
	IdleTimeout time.Duration
	Debug       bool
}

// Manager is the registry of mounted tutor sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	cfg      ManagerConfig
	now      func() time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*Session),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Create mounts a new session on the first question.
func (m *Manager) Create() *Session {
	id := uuid.New()
	cfg := Config{
		Deck:        m.cfg.Deck,
		Tokens:      m.cfg.Tokens,
		Dialer:      m.cfg.Dialer,
		StudentName: m.cfg.StudentName,
		Timing:      m.cfg.Timing,
		Debug:       m.cfg.Debug,
		Now:         m.now,
	}
	if pub := m.cfg.Publisher; pub != nil {
		cfg.OnChange = func(snap models.SessionSnapshot) {
			pub.PublishState(context.Background(), id, snap)
		}
		cfg.OnAudio = func(audio models.TutorAudio) {
			pub.PublishAudio(context.Background(), id, audio)
		}
	}

	s := NewSession(id, cfg)

	m.mu.Lock()
	m.sessions[id] = s
	total := len(m.sessions)
	m.mu.Unlock()

	log.Printf("tutor: session %s mounted (total: %d)", id, total)
	return s
}

func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove unmounts a session, closing any live connection.
func (m *Manager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	log.Printf("tutor: session %s unmounted", id)
	return true
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepIdle unmounts sessions idle for longer than the configured timeout.
func (m *Manager) SweepIdle(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}

	m.mu.RLock()
	var idle []uuid.UUID
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range idle {
		if m.Remove(id) {
			removed++
		}
	}
	return removed
}

// CloseAll unmounts every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// SessionSnapshot and RelayAudio let the websocket hub reach sessions by id.
func (m *Manager) SessionSnapshot(id uuid.UUID) (models.SessionSnapshot, bool) {
	s, ok := m.Get(id)
	if !ok {
		return models.SessionSnapshot{}, false
	}
	return s.Snapshot(), true
}

func (m *Manager) RelayAudio(id uuid.UUID, pcm []byte) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionClosed
	}
	return s.RelayAudio(pcm)
}
