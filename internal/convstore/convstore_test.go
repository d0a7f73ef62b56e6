package convstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/redis/go-redis/v9"
)

// fakeHistory records history calls so tests can assert the durable side
// effects without a SQL database.
type fakeHistory struct {
	mu        sync.Mutex
	created   int
	updates   []string
	completed map[string]models.FlowStatus
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{completed: make(map[string]models.FlowStatus)}
}

func (f *fakeHistory) CreateFlow(ctx context.Context, identity string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return "flow-" + identity, nil
}

func (f *fakeHistory) AppendMessage(ctx context.Context, flowID string, msg models.FlowMessage) error {
	return nil
}

func (f *fakeHistory) UpdateState(ctx context.Context, flowID string, state *models.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, flowID)
	return nil
}

func (f *fakeHistory) CompleteFlow(ctx context.Context, flowID string, status models.FlowStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[flowID] = status
	return nil
}

func (f *fakeHistory) ContactHistory(ctx context.Context, identity string, limit int) ([]models.FlowHistoryRecord, error) {
	return nil, nil
}

func (f *fakeHistory) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeHistory) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeHistory) Close() error { return nil }

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *fakeHistory) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hist := newFakeHistory()
	return New(client, hist), mr, hist
}

func TestGetCreatesFlowOnMiss(t *testing.T) {
	s, _, hist := newTestStore(t)
	ctx := context.Background()

	state, err := s.Get(ctx, "+5511999998888")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.CurrentStep != models.StepIdle {
		t.Errorf("fresh state step = %q, want Idle", state.CurrentStep)
	}
	if state.FlowID != "flow-+5511999998888" {
		t.Errorf("flow id = %q", state.FlowID)
	}
	if hist.created != 1 {
		t.Errorf("created %d flows, want 1", hist.created)
	}
}

func TestSaveThenGetRoundTrip(t *testing.T) {
	s, _, hist := newTestStore(t)
	ctx := context.Background()

	state, err := s.Get(ctx, "+5511999998888")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state.CurrentStep = models.StepCollectingName
	state.CollectedData[models.FieldName] = "Maria Silva"
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := s.Get(ctx, "+5511999998888")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.CurrentStep != models.StepCollectingName {
		t.Errorf("step = %q, want CollectingName", loaded.CurrentStep)
	}
	if loaded.CollectedData[models.FieldName] != "Maria Silva" {
		t.Errorf("collected data lost: %v", loaded.CollectedData)
	}
	if hist.created != 1 {
		t.Errorf("created %d flows after round trip, want 1", hist.created)
	}
	if len(hist.updates) != 1 || hist.updates[0] != state.FlowID {
		t.Errorf("durable mirror not updated: %v", hist.updates)
	}
}

func TestSaveRefreshesTTL(t *testing.T) {
	s, mr, _ := newTestStore(t)
	ctx := context.Background()

	state, err := s.Get(ctx, "+5511988887777")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ttl := mr.TTL("conversation:+5511988887777")
	if ttl <= 0 || ttl > DefaultTTL {
		t.Errorf("ttl = %v, want (0, %v]", ttl, DefaultTTL)
	}

	// TTL expiry drops the state entirely; the next Get starts a new flow.
	mr.FastForward(DefaultTTL + time.Minute)
	if mr.Exists("conversation:+5511988887777") {
		t.Error("state survived past its TTL")
	}
}

func TestClearCompletesFlowAndDeletesKey(t *testing.T) {
	s, mr, hist := newTestStore(t)
	ctx := context.Background()

	state, err := s.Get(ctx, "+5511977776666")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Clear(ctx, state, models.FlowStatusCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mr.Exists("conversation:+5511977776666") {
		t.Error("cache entry survived Clear")
	}
	if hist.completed[state.FlowID] != models.FlowStatusCompleted {
		t.Errorf("flow not marked completed: %v", hist.completed)
	}

	// A new message after Clear opens a fresh flow.
	if _, err := s.Get(ctx, "+5511977776666"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hist.created != 2 {
		t.Errorf("created %d flows, want 2", hist.created)
	}
}

func TestGetEmptyIdentity(t *testing.T) {
	s, _, _ := newTestStore(t)
	if _, err := s.Get(context.Background(), ""); err != models.ErrEmptyIdentity {
		t.Errorf("err = %v, want ErrEmptyIdentity", err)
	}
}

func TestGetCorruptStateStartsOver(t *testing.T) {
	s, mr, hist := newTestStore(t)
	ctx := context.Background()

	mr.Set("conversation:+5511966665555", "{not json")
	state, err := s.Get(ctx, "+5511966665555")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.CurrentStep != models.StepIdle {
		t.Errorf("step = %q, want Idle", state.CurrentStep)
	}
	if hist.created != 1 {
		t.Errorf("created %d flows, want 1", hist.created)
	}
}
