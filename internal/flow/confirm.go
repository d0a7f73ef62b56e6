package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
)

// confirmDataHandler shows the collected summary's yes/no outcome. A yes
// publishes the update-request event and completes the flow; anything else
// restarts collection from the name field, keeping the same flow.
type confirmDataHandler struct {
	sender    *sender
	publisher UpdatePublisher
}

func (h *confirmDataHandler) Step() models.Step { return models.StepConfirmingData }

func (h *confirmDataHandler) Handle(ctx context.Context, state *models.ConversationState, text string) (models.FlowStatus, error) {
	if !isAffirmative(text) {
		state.CurrentStep = models.StepCollectingName
		h.sender.sendAndLog(ctx, state, msgRestartCollection)
		return "", nil
	}

	req := models.UserUpdateRequest{
		Identity:       state.Identity,
		NewName:        state.CollectedData[models.FieldName],
		NewPhoneNumber: state.CollectedData[models.FieldPhone],
		NewEmail:       state.CollectedData[models.FieldEmail],
		NewAddress:     state.CollectedData[models.FieldAddress],
		RequestedAt:    time.Now().UTC(),
	}
	if err := h.publisher.Publish(ctx, req); err != nil {
		// Keep the state at ConfirmingData so another "sim" retries the publish.
		slog.Error("ConfirmData publish failed", "error", err, "flowID", state.FlowID)
		return "", fmt.Errorf("failed to publish update request: %w", err)
	}

	slog.Info("ConfirmData update request published", "flowID", state.FlowID, "flowType", state.FlowType)
	flowType := state.FlowType
	state.Reset()
	h.sender.sendAndLog(ctx, state, msgFlowCompleted(flowType))
	return models.FlowStatusCompleted, nil
}
