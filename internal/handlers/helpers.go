package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiztutor-backend/internal/models"
	"quiztutor-backend/internal/services"
	"quiztutor-backend/internal/tutor"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch e := err.(type) {
	case *services.InvalidCredentialError:
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", e.Message, r))
		return
	case *services.UpstreamRejectedError:
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_REJECTED", e.Error(), r))
		return
	case *services.TransportError:
		writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_UNAVAILABLE", "Realtime service is unreachable", r))
		return
	}

	switch {
	case errors.Is(err, tutor.ErrEmptyAnswer), errors.Is(err, tutor.ErrEmptyText), errors.Is(err, tutor.ErrMissingCredential):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, tutor.ErrNotConnected):
		writeJSON(w, http.StatusConflict, errorResp("NOT_CONNECTED", "Tutor is not connected", r))
	case errors.Is(err, tutor.ErrAlreadyConnected):
		writeJSON(w, http.StatusConflict, errorResp("ALREADY_CONNECTED", "Tutor is already connected or connecting", r))
	case errors.Is(err, tutor.ErrAnswerLocked):
		writeJSON(w, http.StatusConflict, errorResp("ANSWER_LOCKED", "Answers are not accepted for this question right now", r))
	case errors.Is(err, tutor.ErrUnsupportedOperation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("UNSUPPORTED_OPERATION", "The realtime connection does not support this operation", r))
	case errors.Is(err, tutor.ErrSessionClosed):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
