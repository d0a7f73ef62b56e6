// Package models defines durable flow history structures for the support agent.
package models

import "time"

// HistoryTTL is how long a durable flow record is retained before expiry.
const HistoryTTL = 90 * 24 * time.Hour

// MessageDirection tags a flow message as inbound or outbound.
type MessageDirection string

const (
	// DirectionIn is a message from the contact to the agent.
	DirectionIn MessageDirection = "in"
	// DirectionOut is a message from the agent to the contact.
	DirectionOut MessageDirection = "out"
)

// FlowStatus is the lifecycle status of a durable flow record.
type FlowStatus string

const (
	// FlowStatusActive marks a flow still in progress.
	FlowStatusActive FlowStatus = "active"
	// FlowStatusCompleted marks a flow that finished with a confirmed submission.
	FlowStatusCompleted FlowStatus = "completed"
	// FlowStatusCancelled marks a flow aborted by the contact or the retry budget.
	FlowStatusCancelled FlowStatus = "cancelled"
	// FlowStatusExpired marks a flow abandoned past its inactivity window.
	FlowStatusExpired FlowStatus = "expired"
)

// FlowMessage is one message in a flow's ordered transcript, tagged with the
// step the conversation was in when it was sent or received.
type FlowMessage struct {
	MessageID string           `json:"message_id"`
	Direction MessageDirection `json:"direction"`
	Content   string           `json:"content"`
	Step      Step             `json:"step"`
	Timestamp time.Time        `json:"timestamp"`
}

// FlowHistoryRecord is the durable, anonymized audit record of one flow.
// The contact identity is stored only as an irreversible hash plus a masked
// form for human display; collected phone/email values are masked before the
// record is written.
type FlowHistoryRecord struct {
	FlowID            string            `json:"flow_id"`
	IdentityHash      string            `json:"identity_hash"`
	MaskedIdentity    string            `json:"masked_identity"`
	CurrentStep       Step              `json:"current_step"`
	CollectedData     map[string]string `json:"collected_data"`
	ValidationRetries map[string]int    `json:"validation_retries"`
	Messages          []FlowMessage     `json:"messages"`
	CreatedAt         time.Time         `json:"created_at"`
	LastUpdatedAt     time.Time         `json:"last_updated_at"`
	ExpiresAt         time.Time         `json:"expires_at"`
	Status            FlowStatus        `json:"status"`
}
