// Package models defines the core data structures for the support agent.
//
// It includes the conversation working state, the inbound and outbound event
// payloads, and the enumerations shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Step names the conversation state a contact is currently in.
type Step string

const (
	// StepIdle is the entry state; every new conversation starts here.
	StepIdle Step = "Idle"
	// StepConfirmingUpdate asks a known contact whether they want to update their data.
	StepConfirmingUpdate Step = "ConfirmingUpdate"
	// StepCollectingName collects the contact's full name.
	StepCollectingName Step = "CollectingName"
	// StepCollectingPhone collects and validates a phone number.
	StepCollectingPhone Step = "CollectingPhone"
	// StepCollectingEmail collects and validates an email address.
	StepCollectingEmail Step = "CollectingEmail"
	// StepCollectingAddress collects and validates a postal address.
	StepCollectingAddress Step = "CollectingAddress"
	// StepConfirmingData shows the collected summary and asks for a yes/no.
	StepConfirmingData Step = "ConfirmingData"
)

// CanonicalStep maps a step value to its canonical form, matching
// case-insensitively. Returns false when the value names no known step.
func CanonicalStep(s string) (Step, bool) {
	for _, step := range []Step{
		StepIdle, StepConfirmingUpdate, StepCollectingName,
		StepCollectingPhone, StepCollectingEmail, StepCollectingAddress,
		StepConfirmingData,
	} {
		if strings.EqualFold(s, string(step)) {
			return step, true
		}
	}
	return "", false
}

// FlowType distinguishes a first-time registration from a profile update.
type FlowType string

const (
	FlowTypeRegistration FlowType = "registration"
	FlowTypeUpdate       FlowType = "update"
)

// Collected data field keys.
const (
	FieldName    = "NewName"
	FieldPhone   = "NewPhoneNumber"
	FieldEmail   = "NewEmail"
	FieldAddress = "NewAddress"
)

// Validation retry counter keys.
const (
	RetryKeyPhone   = "Phone"
	RetryKeyEmail   = "Email"
	RetryKeyAddress = "Address"
)

// MaxValidationRetries is the per-field retry budget. Reaching it aborts the
// whole flow, not just the field.
const MaxValidationRetries = 3

// ConversationState is the ephemeral working state of one contact's flow.
// It lives in the cache under the contact's identity and is rewritten on
// every turn. FlowID is assigned once, when the state is created, and
// correlates the state to its durable history record.
type ConversationState struct {
	FlowID            string            `json:"flow_id"`
	Identity          string            `json:"identity"`
	CurrentStep       Step              `json:"current_step"`
	CollectedData     map[string]string `json:"collected_data"`
	ValidationRetries map[string]int    `json:"validation_retries"`
	FlowType          FlowType          `json:"flow_type"`
}

// NewConversationState creates a fresh state at the Idle step.
func NewConversationState(flowID, identity string) *ConversationState {
	return &ConversationState{
		FlowID:            flowID,
		Identity:          identity,
		CurrentStep:       StepIdle,
		CollectedData:     make(map[string]string),
		ValidationRetries: make(map[string]int),
		FlowType:          FlowTypeRegistration,
	}
}

// Reset returns the state to Idle and discards all collected data and retry
// counters. The FlowID is kept so the durable record stays correlated.
func (s *ConversationState) Reset() {
	s.CurrentStep = StepIdle
	s.CollectedData = make(map[string]string)
	s.ValidationRetries = make(map[string]int)
}

// Error variables for payload validation.
var (
	ErrEmptyIdentity = errors.New("identity cannot be empty")
	ErrEmptyContent  = errors.New("message content cannot be empty")
)

// InboundMessage is one message consumed from the inbound queue.
type InboundMessage struct {
	From       string    `json:"from"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the inbound payload before it enters a turn.
func (m *InboundMessage) Validate() error {
	if strings.TrimSpace(m.From) == "" {
		return ErrEmptyIdentity
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// UserUpdateRequest is the downstream event published when a contact confirms
// the collected data. Consumed by the profile CRUD service.
type UserUpdateRequest struct {
	Identity       string    `json:"identity"`
	NewName        string    `json:"new_name,omitempty"`
	NewPhoneNumber string    `json:"new_phone_number"`
	NewEmail       string    `json:"new_email"`
	NewAddress     string    `json:"new_address"`
	RequestedAt    time.Time `json:"requested_at"`
}

// UserProfile is the profile CRUD service's view of a registered contact.
type UserProfile struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

// Intent labels returned by the classifier.
const (
	IntentUpdateRegistration = "UPDATE_REGISTRATION"
	IntentOther              = "OTHER"
)
