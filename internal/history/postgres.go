package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/augustodasneves/supportagent/internal/anonymize"
	"github.com/augustodasneves/supportagent/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on a PostgreSQL database.
type PostgresStore struct {
	db   *sql.DB
	anon *anonymize.Anonymizer
}

// NewPostgresStore creates a new PostgreSQL history store with the given DSN.
func NewPostgresStore(anon *anonymize.Anonymizer, opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db, anon: anon}, nil
}

// CreateFlow mints a flow id and inserts an Active record for the identity.
func (s *PostgresStore) CreateFlow(ctx context.Context, identity string) (string, error) {
	flowID := s.anon.NewFlowID(identity)
	masked := anonymize.MaskPhone(identity)
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flows (flow_id, identity_hash, masked_identity, current_step, collected_data, validation_retries, status, created_at, last_updated_at, expires_at)
		VALUES ($1, $2, $3, $4, '{}', '{}', $5, $6, $7, $8)`,
		flowID, s.anon.Hash(identity), masked, string(models.StepIdle),
		string(models.FlowStatusActive), now, now, now.Add(models.HistoryTTL))
	if err != nil {
		slog.Error("PostgresStore CreateFlow failed", "error", err, "maskedIdentity", masked)
		return "", fmt.Errorf("failed to insert flow for %s: %w", masked, err)
	}

	slog.Info("PostgresStore created flow", "flowID", flowID, "maskedIdentity", masked)
	return flowID, nil
}

// AppendMessage appends to the flow's message transcript. A missing flow is
// a no-op so no orphan transcript rows outlive the purge.
func (s *PostgresStore) AppendMessage(ctx context.Context, flowID string, msg models.FlowMessage) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE flows SET last_updated_at = $1 WHERE flow_id = $2`, time.Now().UTC(), flowID)
	if err != nil {
		return fmt.Errorf("failed to touch flow %s: %w", flowID, err)
	}
	touched, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if touched == 0 {
		slog.Debug("PostgresStore AppendMessage skipped, no such flow", "flowID", flowID)
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_messages (flow_id, message_id, direction, content, step, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		flowID, msg.MessageID, string(msg.Direction), msg.Content, string(msg.Step), msg.Timestamp.UTC())
	if err != nil {
		slog.Error("PostgresStore AppendMessage failed", "error", err, "flowID", flowID)
		return fmt.Errorf("failed to append message to flow %s: %w", flowID, err)
	}
	slog.Debug("PostgresStore AppendMessage succeeded", "flowID", flowID, "direction", msg.Direction)
	return nil
}

// UpdateState overwrites the record's step, anonymized data, and retry counters.
func (s *PostgresStore) UpdateState(ctx context.Context, flowID string, state *models.ConversationState) error {
	dataJSON, err := json.Marshal(anonymize.MaskCollectedData(state.CollectedData))
	if err != nil {
		slog.Error("PostgresStore UpdateState data marshal failed", "error", err, "flowID", flowID)
		return err
	}
	retriesJSON, err := json.Marshal(state.ValidationRetries)
	if err != nil {
		slog.Error("PostgresStore UpdateState retries marshal failed", "error", err, "flowID", flowID)
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE flows SET current_step = $1, collected_data = $2, validation_retries = $3, last_updated_at = $4
		WHERE flow_id = $5`,
		string(state.CurrentStep), string(dataJSON), string(retriesJSON), time.Now().UTC(), flowID)
	if err != nil {
		slog.Error("PostgresStore UpdateState failed", "error", err, "flowID", flowID)
		return fmt.Errorf("failed to update flow %s: %w", flowID, err)
	}

	slog.Debug("PostgresStore UpdateState succeeded", "flowID", flowID, "step", state.CurrentStep)
	return nil
}

// CompleteFlow sets a terminal status on the record.
func (s *PostgresStore) CompleteFlow(ctx context.Context, flowID string, status models.FlowStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE flows SET status = $1, last_updated_at = $2 WHERE flow_id = $3`,
		string(status), time.Now().UTC(), flowID)
	if err != nil {
		slog.Error("PostgresStore CompleteFlow failed", "error", err, "flowID", flowID, "status", status)
		return fmt.Errorf("failed to complete flow %s: %w", flowID, err)
	}

	slog.Info("PostgresStore flow completed", "flowID", flowID, "status", status)
	return nil
}

// ContactHistory returns the most recent flow records for an identity, newest first.
func (s *PostgresStore) ContactHistory(ctx context.Context, identity string, limit int) ([]models.FlowHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_id, identity_hash, masked_identity, current_step, collected_data, validation_retries, status, created_at, last_updated_at, expires_at
		FROM flows WHERE identity_hash = $1 ORDER BY created_at DESC LIMIT $2`,
		s.anon.Hash(identity), limit)
	if err != nil {
		slog.Error("PostgresStore ContactHistory query failed", "error", err)
		return nil, fmt.Errorf("failed to query contact history: %w", err)
	}
	defer rows.Close()

	var records []models.FlowHistoryRecord
	for rows.Next() {
		record, err := scanFlowRecord(rows)
		if err != nil {
			slog.Error("PostgresStore ContactHistory scan failed", "error", err)
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flow rows: %w", err)
	}

	for i := range records {
		if err := s.loadMessages(ctx, &records[i]); err != nil {
			return nil, err
		}
	}

	slog.Debug("PostgresStore ContactHistory succeeded", "count", len(records))
	return records, nil
}

// ExpireStale marks Active flows idle since before the cutoff as Expired.
func (s *PostgresStore) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE flows SET status = $1 WHERE status = $2 AND last_updated_at <= $3`,
		models.FlowStatusExpired, models.FlowStatusActive, cutoff.UTC())
	if err != nil {
		slog.Error("PostgresStore ExpireStale failed", "error", err)
		return 0, fmt.Errorf("failed to expire stale flows: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		slog.Info("PostgresStore expired stale flows", "count", expired)
	}
	return expired, nil
}

// PurgeExpired deletes records whose expiry has passed.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM flow_messages WHERE flow_id IN (SELECT flow_id FROM flows WHERE expires_at <= $1)`, now.UTC())
	if err != nil {
		slog.Error("PostgresStore PurgeExpired messages failed", "error", err)
		return 0, fmt.Errorf("failed to purge expired messages: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		slog.Error("PostgresStore PurgeExpired flows failed", "error", err)
		return 0, fmt.Errorf("failed to purge expired flows: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		slog.Info("PostgresStore purged expired flows", "count", purged)
	}
	return purged, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

func (s *PostgresStore) loadMessages(ctx context.Context, record *models.FlowHistoryRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, direction, content, step, ts
		FROM flow_messages WHERE flow_id = $1 ORDER BY seq`, record.FlowID)
	if err != nil {
		return fmt.Errorf("failed to query flow messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanFlowMessage(rows)
		if err != nil {
			return err
		}
		record.Messages = append(record.Messages, msg)
	}
	return rows.Err()
}
