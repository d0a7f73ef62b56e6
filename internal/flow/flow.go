// Package flow implements the conversation flow engine: one handler per
// conversation step, dispatched by the current step of the contact's state.
//
// A turn never fails for business reasons. Validation failures re-prompt the
// contact, a corrupted step self-heals to Idle, and downstream failures
// (classifier, messenger, durable history) degrade without aborting the turn.
// The cache is the authoritative state; durable history is advisory.
package flow

import (
	"context"
	"strings"

	"github.com/augustodasneves/supportagent/internal/models"
)

// StateStore loads and persists the ephemeral conversation state.
type StateStore interface {
	Get(ctx context.Context, identity string) (*models.ConversationState, error)
	Save(ctx context.Context, state *models.ConversationState) error
	Clear(ctx context.Context, state *models.ConversationState, status models.FlowStatus) error
}

// Transcript appends messages to the durable flow transcript.
type Transcript interface {
	AppendMessage(ctx context.Context, flowID string, msg models.FlowMessage) error
}

// Messenger delivers an outbound message and returns the provider message id.
type Messenger interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// IntentClassifier labels free text with one of the known intent labels.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// ProfileDirectory looks up a contact's registered profile. A nil profile
// with a nil error means the contact is unknown.
type ProfileDirectory interface {
	Profile(ctx context.Context, identity string) (*models.UserProfile, error)
}

// UpdatePublisher emits the update-request event once a contact confirms.
type UpdatePublisher interface {
	Publish(ctx context.Context, req models.UserUpdateRequest) error
}

// Handler processes one turn for its step. It mutates the state and performs
// its own outbound side effects. A non-empty FlowStatus marks the flow
// terminal: the engine then clears the cached state and stamps the durable
// record instead of saving.
type Handler interface {
	Step() models.Step
	Handle(ctx context.Context, state *models.ConversationState, text string) (models.FlowStatus, error)
}

// isAffirmative reports whether the text reads as a yes. Anything else is
// treated as a no.
func isAffirmative(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "sim") || strings.Contains(lower, "yes")
}
