package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/google/uuid"
)

// Engine routes each inbound message to the handler for the contact's
// current step and persists the mutated state afterwards.
type Engine struct {
	states   StateStore
	sender   *sender
	handlers map[models.Step]Handler
}

// NewEngine wires the full handler set over the given collaborators.
func NewEngine(states StateStore, transcript Transcript, messenger Messenger,
	classifier IntentClassifier, profiles ProfileDirectory, publisher UpdatePublisher) *Engine {
	snd := &sender{messenger: messenger, transcript: transcript}

	e := &Engine{
		states:   states,
		sender:   snd,
		handlers: make(map[models.Step]Handler),
	}
	for _, h := range []Handler{
		&idleHandler{sender: snd, classifier: classifier, profiles: profiles},
		&confirmUpdateHandler{sender: snd},
		&collectNameHandler{sender: snd},
		newCollectPhoneHandler(snd),
		newCollectEmailHandler(snd),
		newCollectAddressHandler(snd),
		&confirmDataHandler{sender: snd, publisher: publisher},
	} {
		e.handlers[h.Step()] = h
	}
	return e
}

// ProcessMessage runs one turn: load state, record the inbound message,
// dispatch to the step handler, persist. An unknown or corrupted step is
// healed to Idle and the message is handled there.
func (e *Engine) ProcessMessage(ctx context.Context, msg models.InboundMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid inbound message: %w", err)
	}

	state, err := e.states.Get(ctx, msg.From)
	if err != nil {
		slog.Error("FlowEngine failed to load state", "error", err)
		return fmt.Errorf("failed to load conversation state: %w", err)
	}
	slog.Debug("FlowEngine ProcessMessage", "flowID", state.FlowID, "step", state.CurrentStep)

	e.sender.log(ctx, state.FlowID, models.FlowMessage{
		MessageID: uuid.NewString(),
		Direction: models.DirectionIn,
		Content:   msg.Content,
		Step:      state.CurrentStep,
		Timestamp: time.Now().UTC(),
	})

	handler := e.handlerFor(state)
	status, handleErr := handler.Handle(ctx, state, msg.Content)
	if handleErr != nil {
		slog.Error("FlowEngine handler error", "error", handleErr, "flowID", state.FlowID, "step", handler.Step())
	}

	if status != "" {
		if err := e.states.Clear(ctx, state, status); err != nil {
			return fmt.Errorf("failed to clear conversation state: %w", err)
		}
	} else if err := e.states.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}

	return handleErr
}

// handlerFor resolves the handler for the state's current step, healing an
// unknown step back to Idle.
func (e *Engine) handlerFor(state *models.ConversationState) Handler {
	if step, ok := models.CanonicalStep(string(state.CurrentStep)); ok {
		if h, found := e.handlers[step]; found {
			state.CurrentStep = step
			return h
		}
	}
	slog.Warn("FlowEngine unknown step, resetting to Idle", "flowID", state.FlowID, "step", state.CurrentStep)
	state.CurrentStep = models.StepIdle
	return e.handlers[models.StepIdle]
}

// sender is the shared outbound side effect: deliver the message, then
// append it to the durable transcript tagged with the current step.
type sender struct {
	messenger  Messenger
	transcript Transcript
}

// sendAndLog delivers a message to the contact and records it. Delivery and
// transcript failures are logged, never propagated: the turn completes on a
// best-effort basis either way.
func (s *sender) sendAndLog(ctx context.Context, state *models.ConversationState, message string) {
	messageID, err := s.messenger.Send(ctx, state.Identity, message)
	if err != nil {
		slog.Error("Flow send failed", "error", err, "flowID", state.FlowID, "step", state.CurrentStep)
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	s.log(ctx, state.FlowID, models.FlowMessage{
		MessageID: messageID,
		Direction: models.DirectionOut,
		Content:   message,
		Step:      state.CurrentStep,
		Timestamp: time.Now().UTC(),
	})
}

func (s *sender) log(ctx context.Context, flowID string, msg models.FlowMessage) {
	if err := s.transcript.AppendMessage(ctx, flowID, msg); err != nil {
		slog.Warn("Flow transcript append failed", "error", err, "flowID", flowID)
	}
}
