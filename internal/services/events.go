package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"suzy-backend/internal/models"
)

// EventPublisher fans session activity out to connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, ev models.SessionEvent)
}

func SessionChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session_events:%s", sessionID.String())
}

type RedisEventPublisher struct {
	redis *redis.Client
}

func NewRedisEventPublisher(redisClient *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{redis: redisClient}
}

// Publish is called after commit; a failed publish only loses the push.
func (p *RedisEventPublisher) Publish(ctx context.Context, eventType string, ev models.SessionEvent) {
	data, err := json.Marshal(models.WSMessage{Type: eventType, Payload: ev})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to encode session event")
		return
	}
	if err := p.redis.Publish(ctx, SessionChannel(ev.SessionID), data).Err(); err != nil {
		log.Warn().Err(err).Str("event", eventType).Str("sessionId", ev.SessionID.String()).Msg("failed to publish session event")
	}
}
