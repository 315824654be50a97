package models

// WebSocket message types
const (
	WSTypeState      = "state"
	WSTypeTutorAudio = "tutor_audio"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TutorAudio struct {
	ResponseID string `json:"response_id,omitempty"`
	Data       []byte `json:"data"` // base64 in JSON
}

// Token exchange wire format. Field names follow the browser client.
type TokenRequest struct {
	APIKey string `json:"apiKey"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type TokenErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
