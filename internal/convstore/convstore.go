// Package convstore holds the ephemeral conversation state in Redis.
//
// One key per contact identity, JSON-encoded working state, sliding TTL.
// Cache misses are not errors: a miss means a fresh conversation, so Get
// opens a durable flow record and returns a new Idle state. The durable
// history store keeps the anonymized audit trail; this store keeps the
// live, unmasked working copy for the duration of the conversation.
package convstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/augustodasneves/supportagent/internal/history"
	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the inactivity window before a conversation state expires.
const DefaultTTL = 30 * time.Minute

// DefaultPrefix is the Redis key prefix for conversation state.
const DefaultPrefix = "conversation:"

// Store persists conversation state in Redis keyed by contact identity.
type Store struct {
	client  *redis.Client
	history history.Store
	prefix  string
	ttl     time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the inactivity expiration for conversation state.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the Redis key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Store on an existing Redis client. The history store is
// used to open a durable flow record when a fresh conversation starts.
func New(client *redis.Client, hist history.Store, opts ...Option) *Store {
	s := &Store{
		client:  client,
		history: hist,
		prefix:  DefaultPrefix,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(identity string) string {
	return s.prefix + identity
}

// Get loads the conversation state for an identity. A missing key starts a
// new conversation: a durable flow record is created and a fresh Idle state
// carrying its flow id is returned.
func (s *Store) Get(ctx context.Context, identity string) (*models.ConversationState, error) {
	if identity == "" {
		return nil, models.ErrEmptyIdentity
	}

	val, err := s.client.Get(ctx, s.key(identity)).Result()
	if err == redis.Nil {
		flowID, err := s.history.CreateFlow(ctx, identity)
		if err != nil {
			slog.Error("ConvStore Get: failed to open flow record", "error", err)
			return nil, fmt.Errorf("failed to open flow record: %w", err)
		}
		slog.Debug("ConvStore Get: new conversation", "flowID", flowID)
		return models.NewConversationState(flowID, identity), nil
	}
	if err != nil {
		slog.Error("ConvStore Get failed", "error", err)
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		slog.Error("ConvStore Get: corrupt state, starting over", "error", err)
		flowID, ferr := s.history.CreateFlow(ctx, identity)
		if ferr != nil {
			return nil, fmt.Errorf("failed to open flow record: %w", ferr)
		}
		return models.NewConversationState(flowID, identity), nil
	}

	slog.Debug("ConvStore Get succeeded", "flowID", state.FlowID, "step", state.CurrentStep)
	return &state, nil
}

// Save writes the conversation state back with a refreshed TTL and mirrors
// the step, data, and retry counters into the durable record.
func (s *Store) Save(ctx context.Context, state *models.ConversationState) error {
	if state == nil || state.Identity == "" {
		return models.ErrEmptyIdentity
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(state.Identity), data, s.ttl).Err(); err != nil {
		slog.Error("ConvStore Save failed", "error", err, "flowID", state.FlowID)
		return fmt.Errorf("failed to save conversation state: %w", err)
	}

	if err := s.history.UpdateState(ctx, state.FlowID, state); err != nil {
		slog.Warn("ConvStore Save: durable mirror failed", "error", err, "flowID", state.FlowID)
	}

	slog.Debug("ConvStore Save succeeded", "flowID", state.FlowID, "step", state.CurrentStep)
	return nil
}

// Clear ends the conversation: the durable record gets its terminal status
// and the cache entry is deleted so the next message starts a new flow.
func (s *Store) Clear(ctx context.Context, state *models.ConversationState, status models.FlowStatus) error {
	if state == nil || state.Identity == "" {
		return models.ErrEmptyIdentity
	}

	if err := s.history.UpdateState(ctx, state.FlowID, state); err != nil {
		slog.Warn("ConvStore Clear: durable mirror failed", "error", err, "flowID", state.FlowID)
	}
	if err := s.history.CompleteFlow(ctx, state.FlowID, status); err != nil {
		slog.Warn("ConvStore Clear: failed to mark flow", "error", err, "flowID", state.FlowID, "status", status)
	}

	if err := s.client.Del(ctx, s.key(state.Identity)).Err(); err != nil {
		slog.Error("ConvStore Clear failed", "error", err, "flowID", state.FlowID)
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}

	slog.Info("ConvStore conversation cleared", "flowID", state.FlowID, "status", status)
	return nil
}
