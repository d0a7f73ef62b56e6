package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// recordingProcessor tracks per-identity concurrency to catch lost-update
// races between workers handling the same contact.
type recordingProcessor struct {
	mu        sync.Mutex
	inFlight  map[string]int
	overlap   bool
	processed []models.InboundMessage
	delay     time.Duration
}

func (p *recordingProcessor) ProcessMessage(ctx context.Context, msg models.InboundMessage) error {
	p.mu.Lock()
	if p.inFlight == nil {
		p.inFlight = make(map[string]int)
	}
	p.inFlight[msg.From]++
	if p.inFlight[msg.From] > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	p.inFlight[msg.From]--
	p.processed = append(p.processed, msg)
	p.mu.Unlock()
	return nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func TestEnqueueValidatesMessage(t *testing.T) {
	client := newTestRedis(t)
	q := NewInbound(client)

	err := q.Enqueue(context.Background(), models.InboundMessage{From: "", Content: "oi"})
	if !errors.Is(err, models.ErrEmptyIdentity) {
		t.Errorf("err = %v, want ErrEmptyIdentity", err)
	}
}

func TestConsumeProcessesAllMessages(t *testing.T) {
	client := newTestRedis(t)
	q := NewInbound(client, WithWorkers(4), WithBlockTimeout(50*time.Millisecond))
	proc := &recordingProcessor{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i, identity := range []string{"+551", "+552", "+553", "+554", "+555"} {
		err := q.Enqueue(ctx, models.InboundMessage{
			From: identity, Content: "oi", ReceivedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	done := make(chan struct{})
	go func() {
		q.Consume(ctx, proc)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for proc.count() < 5 {
		select {
		case <-deadline:
			t.Fatalf("processed %d of 5 messages before timeout", proc.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestConsumeSerializesTurnsPerIdentity(t *testing.T) {
	client := newTestRedis(t)
	q := NewInbound(client, WithWorkers(4), WithBlockTimeout(50*time.Millisecond))
	proc := &recordingProcessor{delay: 30 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Three rapid messages from the same contact plus one from another.
	for _, msg := range []models.InboundMessage{
		{From: "+5511999998888", Content: "11999998888", ReceivedAt: time.Now()},
		{From: "+5511999998888", Content: "maria@example.com", ReceivedAt: time.Now()},
		{From: "+5511999998888", Content: "sim", ReceivedAt: time.Now()},
		{From: "+5511900000000", Content: "oi", ReceivedAt: time.Now()},
	} {
		if err := q.Enqueue(ctx, msg); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		q.Consume(ctx, proc)
		close(done)
	}()

	deadline := time.After(10 * time.Second)
	for proc.count() < 4 {
		select {
		case <-deadline:
			t.Fatalf("processed %d of 4 messages before timeout", proc.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if proc.overlap {
		t.Error("two turns for the same identity ran concurrently")
	}
}

func TestConsumeDropsMalformedPayload(t *testing.T) {
	client := newTestRedis(t)
	q := NewInbound(client, WithBlockTimeout(50*time.Millisecond))
	proc := &recordingProcessor{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client.RPush(ctx, DefaultInboundKey, "{not json")
	if err := q.Enqueue(ctx, models.InboundMessage{From: "+551", Content: "oi"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		q.Consume(ctx, proc)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for proc.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("valid message was not processed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestLockerMutualExclusion(t *testing.T) {
	client := newTestRedis(t)
	locker := NewLocker(client, "supportagent:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "+5511999998888", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second holder cannot acquire while the lock is held.
	shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(shortCtx, "+5511999998888", time.Minute); err == nil {
		t.Fatal("second Lock succeeded while held")
	}

	// Another identity is unaffected.
	otherUnlock, err := locker.Lock(ctx, "+5511900000000", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	otherUnlock(ctx)

	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	// Released lock can be re-acquired immediately.
	unlock2, err := locker.Lock(ctx, "+5511999998888", time.Minute)
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}
	unlock2(ctx)
}

func TestPublisherWritesStreamEntry(t *testing.T) {
	client := newTestRedis(t)
	p := NewPublisher(client, "")
	ctx := context.Background()

	req := models.UserUpdateRequest{
		Identity:       "+5511999998888",
		NewName:        "Maria Silva",
		NewPhoneNumber: "11999998888",
		NewEmail:       "maria@example.com",
		NewAddress:     "Rua das Flores, 123, SP",
		RequestedAt:    time.Now().UTC(),
	}
	if err := p.Publish(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := client.XRange(ctx, DefaultUpdateStream, "-", "+").Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d stream entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Values["type"] != EventUserUpdateRequested {
		t.Errorf("event type = %v", entry.Values["type"])
	}
	if entry.Values["event_id"] == "" {
		t.Error("event id missing")
	}

	var decoded models.UserUpdateRequest
	if err := json.Unmarshal([]byte(entry.Values["payload"].(string)), &decoded); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if decoded.Identity != req.Identity || decoded.NewEmail != req.NewEmail {
		t.Errorf("payload = %+v", decoded)
	}
}
