package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quiztutor-backend/internal/models"
)

// UpdateChannel is the Redis pub/sub channel carrying updates for one tutor session.
func UpdateChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("tutor_updates:%s", sessionID.String())
}

// UpdatePublisher fans session state and tutor audio out to websocket hubs.
type UpdatePublisher struct {
	redis *redis.Client
}

func NewUpdatePublisher(redisClient *redis.Client) *UpdatePublisher {
	return &UpdatePublisher{redis: redisClient}
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (p *UpdatePublisher) PublishUpdate(ctx context.Context, sessionID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("publisher: failed to encode %s update for session %s: %v", msg.Type, sessionID, err)
		return
	}
	if err := p.redis.Publish(ctx, UpdateChannel(sessionID), string(data)).Err(); err != nil {
		log.Printf("publisher: failed to publish %s update for session %s: %v", msg.Type, sessionID, err)
	}
}

func (p *UpdatePublisher) PublishState(ctx context.Context, sessionID uuid.UUID, snapshot models.SessionSnapshot) {
	p.PublishUpdate(ctx, sessionID, models.WSMessage{Type: models.WSTypeState, Payload: snapshot})
}

func (p *UpdatePublisher) PublishAudio(ctx context.Context, sessionID uuid.UUID, audio models.TutorAudio) {
	p.PublishUpdate(ctx, sessionID, models.WSMessage{Type: models.WSTypeTutorAudio, Payload: audio})
}
