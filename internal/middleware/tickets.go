package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

var (
	ErrInvalidTicket = errors.New("invalid session ticket")
	ErrTicketExpired = errors.New("session ticket has expired")
)

// SessionTickets issues and verifies the bearer tickets that bind a browser
// to one tutor session. A ticket grants no access to any other session.
type SessionTickets struct {
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewSessionTickets(secret string, ttl time.Duration) *SessionTickets {
	return &SessionTickets{Secret: []byte(secret), TTL: ttl, now: time.Now}
}

// Issue creates an HS256 ticket for sessionID.
func (t *SessionTickets) Issue(sessionID uuid.UUID) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"session_id": sessionID.String(),
		"exp":        now.Add(t.TTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.Secret)
}

// Verify checks a ticket's signature and expiry and returns its session.
func (t *SessionTickets) Verify(ticket string) (uuid.UUID, error) {
	token, err := jwt.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.Secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTicketExpired
		}
		return uuid.Nil, ErrInvalidTicket
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidTicket
	}
	idStr, ok := claims["session_id"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidTicket
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, ErrInvalidTicket
	}
	return id, nil
}

// Middleware requires a bearer ticket for the session named by the {id}
// route parameter and attaches the session ID to the context.
func (t *SessionTickets) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		sessionID, err := t.Verify(parts[1])
		if err != nil {
			if errors.Is(err, ErrTicketExpired) {
				writeError(w, http.StatusUnauthorized, "TICKET_EXPIRED", "Session ticket has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session ticket", r)
			}
			return
		}

		if param := chi.URLParam(r, "id"); param != "" && param != sessionID.String() {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Ticket does not grant access to this session", r)
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID extracts the ticket's session from request context
func GetSessionID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(SessionIDKey).(uuid.UUID)
	return id
}
