package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxUpstreamBody = 64 << 10

// TokenService mints short-lived realtime credentials from a long-lived API key.
// It never stores the key.
type TokenService struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewTokenService(baseURL, model string) *TokenService {
	return &TokenService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

type clientSecretRequest struct {
	Session clientSecretSession `json:"session"`
}

type clientSecretSession struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

type clientSecretResponse struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// Exchange performs exactly one request to the client_secrets endpoint.
func (s *TokenService) Exchange(ctx context.Context, credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", &InvalidCredentialError{Message: "API key is required"}
	}

	body, err := json.Marshal(clientSecretRequest{
		Session: clientSecretSession{Type: "realtime", Model: s.model},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/realtime/client_secrets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamRejectedError{Status: resp.StatusCode, Details: upstreamDetails(raw)}
	}

	var secret clientSecretResponse
	if err := json.Unmarshal(raw, &secret); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if secret.Value == "" {
		return "", fmt.Errorf("token response did not include a credential")
	}
	return secret.Value, nil
}

// upstreamDetails keeps JSON bodies structured and falls back to the raw text.
func upstreamDetails(raw []byte) interface{} {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err == nil {
		return decoded
	}
	return strings.TrimSpace(string(raw))
}
