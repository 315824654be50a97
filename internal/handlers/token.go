package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/services"
)

type tokenExchanger interface {
	Exchange(ctx context.Context, credential string) (string, error)
}

// TokenHandler mints short-lived realtime credentials for browsers that
// connect to the realtime API directly. Its error bodies keep the flat
// {"error", "details"} shape those clients expect.
type TokenHandler struct {
	tokens tokenExchanger
}

func NewTokenHandler(tokens tokenExchanger) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

func (h *TokenHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("token: invalid request body: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.TokenErrorResponse{
			Error:   "Internal server error",
			Details: err.Error(),
		})
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		writeJSON(w, http.StatusBadRequest, models.TokenErrorResponse{Error: "API key is required"})
		return
	}

	token, err := h.tokens.Exchange(r.Context(), req.APIKey)
	if err != nil {
		var invalid *services.InvalidCredentialError
		var rejected *services.UpstreamRejectedError
		switch {
		case errors.As(err, &invalid):
			writeJSON(w, http.StatusBadRequest, models.TokenErrorResponse{Error: "API key is required"})
		case errors.As(err, &rejected):
			writeJSON(w, rejected.Status, models.TokenErrorResponse{
				Error:   "Failed to generate ephemeral token",
				Details: rejected.Details,
			})
		default:
			log.Printf("token: error generating ephemeral token: %v", err)
			writeJSON(w, http.StatusInternalServerError, models.TokenErrorResponse{
				Error:   "Internal server error",
				Details: err.Error(),
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{Token: token})
}
