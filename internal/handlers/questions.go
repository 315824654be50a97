package handlers

import (
	"net/http"

	"quiztutor-backend/internal/repository"
)

type QuestionHandler struct {
	deck *repository.QuestionStore
}

func NewQuestionHandler(deck *repository.QuestionStore) *QuestionHandler {
	return &QuestionHandler{deck: deck}
}

// List returns the deck without answers or explanations.
func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions": h.deck.Public(),
		"count":     h.deck.Len(),
	})
}
