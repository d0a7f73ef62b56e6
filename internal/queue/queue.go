// Package queue moves inbound messages from the webhook to the flow engine
// and update-request events from the engine to downstream consumers, both
// over Redis.
//
// The consumer runs a bounded worker pool over a Redis list. Two messages
// from the same contact arriving close together are a lost-update hazard:
// each worker holds a per-identity distributed lock for the whole turn, so
// at most one turn per contact is ever in flight.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/redis/go-redis/v9"
)

// Defaults for the inbound consumer.
const (
	DefaultInboundKey   = "supportagent:inbound"
	DefaultWorkers      = 8
	DefaultLockTTL      = 30 * time.Second
	DefaultBlockTimeout = 5 * time.Second
)

// Processor runs one turn for one inbound message.
type Processor interface {
	ProcessMessage(ctx context.Context, msg models.InboundMessage) error
}

// Inbound enqueues and consumes inbound messages on a Redis list.
type Inbound struct {
	client       *redis.Client
	locker       *Locker
	key          string
	workers      int
	lockTTL      time.Duration
	blockTimeout time.Duration
}

// InboundOption configures an Inbound queue.
type InboundOption func(*Inbound)

// WithInboundKey overrides the Redis list key. An empty key keeps the
// default.
func WithInboundKey(key string) InboundOption {
	return func(q *Inbound) {
		if key != "" {
			q.key = key
		}
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) InboundOption {
	return func(q *Inbound) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithLockTTL sets how long a per-identity lock may be held before it
// expires on its own.
func WithLockTTL(ttl time.Duration) InboundOption {
	return func(q *Inbound) { q.lockTTL = ttl }
}

// WithBlockTimeout sets how long one BLPOP waits before re-checking for
// shutdown.
func WithBlockTimeout(d time.Duration) InboundOption {
	return func(q *Inbound) { q.blockTimeout = d }
}

// NewInbound creates the inbound queue on an existing Redis client.
func NewInbound(client *redis.Client, opts ...InboundOption) *Inbound {
	q := &Inbound{
		client:       client,
		locker:       NewLocker(client, "supportagent:"),
		key:          DefaultInboundKey,
		workers:      DefaultWorkers,
		lockTTL:      DefaultLockTTL,
		blockTimeout: DefaultBlockTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue pushes one inbound message onto the list.
func (q *Inbound) Enqueue(ctx context.Context, msg models.InboundMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal inbound message: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		slog.Error("Inbound Enqueue failed", "error", err)
		return fmt.Errorf("failed to enqueue inbound message: %w", err)
	}
	slog.Debug("Inbound message enqueued")
	return nil
}

// Consume pulls messages off the list and processes them on the worker pool
// until the context ends. Each turn runs under the contact's identity lock.
func (q *Inbound) Consume(ctx context.Context, proc Processor) error {
	slog.Info("Inbound consumer starting", "key", q.key, "workers", q.workers)

	sem := make(chan struct{}, q.workers)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			slog.Info("Inbound consumer stopped")
			return ctx.Err()
		default:
		}

		vals, err := q.client.BLPop(ctx, q.blockTimeout, q.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				slog.Info("Inbound consumer stopped")
				return ctx.Err()
			}
			slog.Error("Inbound BLPOP failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(vals) < 2 {
			continue
		}

		var msg models.InboundMessage
		if err := json.Unmarshal([]byte(vals[1]), &msg); err != nil {
			slog.Error("Inbound message malformed, dropping", "error", err)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(msg models.InboundMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			q.process(ctx, proc, msg)
		}(msg)
	}
}

// process runs one turn under the identity lock.
func (q *Inbound) process(ctx context.Context, proc Processor, msg models.InboundMessage) {
	unlock, err := q.locker.Lock(ctx, msg.From, q.lockTTL)
	if err != nil {
		slog.Error("Inbound failed to acquire identity lock, requeueing", "error", err)
		if err := q.Enqueue(context.WithoutCancel(ctx), msg); err != nil {
			slog.Error("Inbound requeue failed, message lost", "error", err)
		}
		return
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Inbound lock release failed", "error", err)
		}
	}()

	if err := proc.ProcessMessage(ctx, msg); err != nil {
		slog.Error("Inbound turn failed", "error", err)
	}
}
