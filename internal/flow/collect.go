package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/augustodasneves/supportagent/internal/models"
	"github.com/augustodasneves/supportagent/internal/validate"
)

// collectNameHandler collects the contact's full name. Names are free-form:
// a too-short input re-prompts without touching the retry budget.
type collectNameHandler struct {
	sender *sender
}

func (h *collectNameHandler) Step() models.Step { return models.StepCollectingName }

func (h *collectNameHandler) Handle(ctx context.Context, state *models.ConversationState, text string) (models.FlowStatus, error) {
	name := strings.TrimSpace(text)
	if len(name) < 2 {
		h.sender.sendAndLog(ctx, state, msgNameTooShort)
		return "", nil
	}

	state.CollectedData[models.FieldName] = name
	state.CurrentStep = models.StepCollectingPhone
	h.sender.sendAndLog(ctx, state, msgNameSaved(state.FlowType))
	return "", nil
}

// collectFieldHandler is the shared handler for the validated fields (phone,
// email, address). Each field owns an independent retry counter; success
// resets only that counter, and exhausting the budget aborts the whole flow.
type collectFieldHandler struct {
	sender    *sender
	step      models.Step
	field     string
	retryKey  string
	next      models.Step
	validator validate.Validator
	savedMsg  func(models.FlowType) string
}

func newCollectPhoneHandler(snd *sender) *collectFieldHandler {
	return &collectFieldHandler{
		sender:    snd,
		step:      models.StepCollectingPhone,
		field:     models.FieldPhone,
		retryKey:  models.RetryKeyPhone,
		next:      models.StepCollectingEmail,
		validator: validate.PhoneValidator{},
		savedMsg:  msgPhoneSaved,
	}
}

func newCollectEmailHandler(snd *sender) *collectFieldHandler {
	return &collectFieldHandler{
		sender:    snd,
		step:      models.StepCollectingEmail,
		field:     models.FieldEmail,
		retryKey:  models.RetryKeyEmail,
		next:      models.StepCollectingAddress,
		validator: validate.EmailValidator{},
		savedMsg:  msgEmailSaved,
	}
}

func newCollectAddressHandler(snd *sender) *collectFieldHandler {
	return &collectFieldHandler{
		sender:    snd,
		step:      models.StepCollectingAddress,
		field:     models.FieldAddress,
		retryKey:  models.RetryKeyAddress,
		next:      models.StepConfirmingData,
		validator: validate.AddressValidator{},
		savedMsg:  nil, // address success sends the confirmation summary
	}
}

func (h *collectFieldHandler) Step() models.Step { return h.step }

func (h *collectFieldHandler) Handle(ctx context.Context, state *models.ConversationState, text string) (models.FlowStatus, error) {
	result := h.validator.Validate(text)
	if !result.Valid {
		return h.handleInvalid(ctx, state, result.Message), nil
	}

	state.CollectedData[h.field] = result.Normalized
	state.ValidationRetries[h.retryKey] = 0
	state.CurrentStep = h.next

	if h.next == models.StepConfirmingData {
		h.sender.sendAndLog(ctx, state, msgConfirmSummary(state))
	} else {
		h.sender.sendAndLog(ctx, state, h.savedMsg(state.FlowType))
	}
	return "", nil
}

func (h *collectFieldHandler) handleInvalid(ctx context.Context, state *models.ConversationState, errorMessage string) models.FlowStatus {
	state.ValidationRetries[h.retryKey]++

	if state.ValidationRetries[h.retryKey] >= models.MaxValidationRetries {
		slog.Warn("Flow retry budget exhausted, cancelling", "flowID", state.FlowID, "field", h.retryKey)
		flowType := state.FlowType
		state.Reset()
		h.sender.sendAndLog(ctx, state, msgFlowCancelled(flowType))
		return models.FlowStatusCancelled
	}

	retriesLeft := models.MaxValidationRetries - state.ValidationRetries[h.retryKey]
	h.sender.sendAndLog(ctx, state, msgRetriesLeft(errorMessage, retriesLeft))
	return ""
}
