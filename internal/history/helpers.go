package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
)

// scanFlowRecord scans one row of the flows table. Column order must match
// the SELECT lists in the SQLite and Postgres backends.
func scanFlowRecord(rows *sql.Rows) (models.FlowHistoryRecord, error) {
	var (
		record      models.FlowHistoryRecord
		step        string
		status      string
		dataJSON    string
		retriesJSON string
	)
	err := rows.Scan(&record.FlowID, &record.IdentityHash, &record.MaskedIdentity,
		&step, &dataJSON, &retriesJSON, &status,
		&record.CreatedAt, &record.LastUpdatedAt, &record.ExpiresAt)
	if err != nil {
		return record, fmt.Errorf("failed to scan flow row: %w", err)
	}

	record.CurrentStep = models.Step(step)
	record.Status = models.FlowStatus(status)
	if err := json.Unmarshal([]byte(dataJSON), &record.CollectedData); err != nil {
		return record, fmt.Errorf("failed to decode collected data for flow %s: %w", record.FlowID, err)
	}
	if err := json.Unmarshal([]byte(retriesJSON), &record.ValidationRetries); err != nil {
		return record, fmt.Errorf("failed to decode validation retries for flow %s: %w", record.FlowID, err)
	}
	return record, nil
}

// scanFlowMessage scans one row of the flow_messages table.
func scanFlowMessage(rows *sql.Rows) (models.FlowMessage, error) {
	var (
		msg       models.FlowMessage
		direction string
		step      string
		ts        time.Time
	)
	if err := rows.Scan(&msg.MessageID, &direction, &msg.Content, &step, &ts); err != nil {
		return msg, fmt.Errorf("failed to scan message row: %w", err)
	}
	msg.Direction = models.MessageDirection(direction)
	msg.Step = models.Step(step)
	msg.Timestamp = ts
	return msg, nil
}
