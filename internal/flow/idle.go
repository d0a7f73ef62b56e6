package flow

import (
	"context"
	"log/slog"

	"github.com/augustodasneves/supportagent/internal/intent"
	"github.com/augustodasneves/supportagent/internal/models"
)

// idleHandler is the entry state. It classifies the message's intent and
// branches on whether the contact has a registered profile: unknown contacts
// go straight into registration, known contacts are offered an update or a
// help text.
type idleHandler struct {
	sender     *sender
	classifier IntentClassifier
	profiles   ProfileDirectory
}

func (h *idleHandler) Step() models.Step { return models.StepIdle }

func (h *idleHandler) Handle(ctx context.Context, state *models.ConversationState, text string) (models.FlowStatus, error) {
	profile, err := h.profiles.Profile(ctx, state.Identity)
	if err != nil {
		slog.Warn("Idle profile lookup failed, treating contact as unknown", "error", err, "flowID", state.FlowID)
		profile = nil
	}

	if profile == nil {
		state.FlowType = models.FlowTypeRegistration
		state.CurrentStep = models.StepCollectingName
		h.sender.sendAndLog(ctx, state, msgStartRegistration)
		return "", nil
	}

	switch h.classify(ctx, text) {
	case models.IntentUpdateRegistration:
		state.FlowType = models.FlowTypeUpdate
		state.CurrentStep = models.StepConfirmingUpdate
		h.sender.sendAndLog(ctx, state, msgGreetKnownUpdate(profile.Name))
	default:
		// The model occasionally misses explicit update requests; the
		// keyword matcher catches those and skips the confirmation.
		if intent.FallbackLabel(text) == models.IntentUpdateRegistration {
			state.FlowType = models.FlowTypeUpdate
			state.CurrentStep = models.StepCollectingName
			h.sender.sendAndLog(ctx, state, msgStartUpdate)
			return "", nil
		}
		h.sender.sendAndLog(ctx, state, msgGreetKnownOther(profile.Name))
	}
	return "", nil
}

// classify runs the external classifier with the OTHER label as the
// degraded default on any failure.
func (h *idleHandler) classify(ctx context.Context, text string) string {
	label, err := h.classifier.Classify(ctx, text)
	if err != nil {
		slog.Warn("Idle intent classification failed, defaulting to OTHER", "error", err)
		return models.IntentOther
	}
	return label
}

// confirmUpdateHandler asks a known contact to confirm they want to update
// their data before collection starts.
type confirmUpdateHandler struct {
	sender *sender
}

func (h *confirmUpdateHandler) Step() models.Step { return models.StepConfirmingUpdate }

func (h *confirmUpdateHandler) Handle(ctx context.Context, state *models.ConversationState, text string) (models.FlowStatus, error) {
	if isAffirmative(text) {
		state.FlowType = models.FlowTypeUpdate
		state.CurrentStep = models.StepCollectingName
		h.sender.sendAndLog(ctx, state, msgConfirmUpdateYes)
		return "", nil
	}

	state.CurrentStep = models.StepIdle
	h.sender.sendAndLog(ctx, state, msgConfirmUpdateNo)
	return "", nil
}
