package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/tutor"
)

type sessionRegistry interface {
	Create() *tutor.Session
	Get(id uuid.UUID) (*tutor.Session, bool)
	Remove(id uuid.UUID) bool
}

type ticketIssuer interface {
	Issue(sessionID uuid.UUID) (string, error)
}

type SessionHandler struct {
	sessions  sessionRegistry
	tickets   ticketIssuer
	ticketTTL time.Duration
}

func NewSessionHandler(sessions sessionRegistry, tickets ticketIssuer, ticketTTL time.Duration) *SessionHandler {
	return &SessionHandler{sessions: sessions, tickets: tickets, ticketTTL: ticketTTL}
}

// Create mounts a new tutor session and returns the ticket that controls it.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()

	ticket, err := h.tickets.Issue(s.ID())
	if err != nil {
		log.Printf("session: failed to issue ticket for %s: %v", s.ID(), err)
		h.sessions.Remove(s.ID())
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create session", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID: s.ID(),
		Ticket:    ticket,
		ExpiresIn: int(h.ticketTTL.Seconds()),
	})
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*tutor.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return nil, false
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Delete unmounts the session, tearing down any live connection.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.sessions.Remove(s.ID())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session closed"})
}

// Connect starts connecting in the background. Progress and failures arrive
// through the state stream.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := s.Connect(req.APIKey); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Disconnect()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) Mute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.MuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := s.SetMuted(req.Muted); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) SendText(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := s.SendText(req.Text); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

func (h *SessionHandler) ClearTranscript(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearTranscript()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := s.SubmitAnswer(req.Value)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Advance(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *SessionHandler) Skip(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Skip(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}
