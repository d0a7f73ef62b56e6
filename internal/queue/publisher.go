package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultUpdateStream is the Redis stream carrying update-request events.
const DefaultUpdateStream = "supportagent:user-updates"

// EventUserUpdateRequested is the event type stamped on published entries.
const EventUserUpdateRequested = "UserUpdateRequested"

// Publisher emits update-request events onto a Redis stream for the profile
// CRUD service to consume.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher creates a Publisher on the given stream. An empty stream name
// uses DefaultUpdateStream.
func NewPublisher(client *redis.Client, stream string) *Publisher {
	if stream == "" {
		stream = DefaultUpdateStream
	}
	return &Publisher{client: client, stream: stream}
}

// Publish appends one update-request event to the stream.
func (p *Publisher) Publish(ctx context.Context, req models.UserUpdateRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal update request: %w", err)
	}

	eventID := uuid.NewString()
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":  eventID,
			"type":      EventUserUpdateRequested,
			"issued_at": time.Now().UTC().Format(time.RFC3339),
			"payload":   string(payload),
		},
	}).Err()
	if err != nil {
		slog.Error("Publisher XAdd failed", "error", err, "stream", p.stream)
		return fmt.Errorf("failed to publish update request: %w", err)
	}

	slog.Info("Publisher update request published", "stream", p.stream, "eventID", eventID)
	return nil
}
