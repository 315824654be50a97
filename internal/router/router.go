package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"quiztutor-backend/internal/handlers"
	"quiztutor-backend/internal/middleware"
	"quiztutor-backend/internal/websocket"
)

func New(
	tickets *middleware.SessionTickets,
	tokenLimiter *middleware.RateLimiter,
	tokenHandler *handlers.TokenHandler,
	questionHandler *handlers.QuestionHandler,
	sessionHandler *handlers.SessionHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Token Exchange (public, rate limited) ────
		r.With(tokenLimiter.Middleware).Post("/token", tokenHandler.Exchange)

		// ──── Question Deck (public, answers hidden) ────
		r.Get("/questions", questionHandler.List)

		// ──── Tutor Sessions ────
		r.Route("/sessions", func(r chi.Router) {
			r.With(tokenLimiter.Middleware).Post("/", sessionHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(tickets.Middleware)
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Post("/connect", sessionHandler.Connect)
				r.Post("/disconnect", sessionHandler.Disconnect)
				r.Post("/mute", sessionHandler.Mute)
				r.Post("/messages", sessionHandler.SendText)
				r.Delete("/transcript", sessionHandler.ClearTranscript)
				r.Post("/answers", sessionHandler.SubmitAnswer)
				r.Post("/advance", sessionHandler.Advance)
				r.Post("/skip", sessionHandler.Skip)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
