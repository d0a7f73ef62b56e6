// Package history provides the durable flow history store.
//
// This file implements the SQLite backend.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/augustodasneves/supportagent/internal/anonymize"
	"github.com/augustodasneves/supportagent/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	anon *anonymize.Anonymizer
}

// NewSQLiteStore creates a new SQLite history store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(anon *anonymize.Anonymizer, opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, anon: anon}, nil
}

// CreateFlow mints a flow id and inserts an Active record for the identity.
func (s *SQLiteStore) CreateFlow(ctx context.Context, identity string) (string, error) {
	flowID := s.anon.NewFlowID(identity)
	masked := anonymize.MaskPhone(identity)
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flows (flow_id, identity_hash, masked_identity, current_step, collected_data, validation_retries, status, created_at, last_updated_at, expires_at)
		VALUES (?, ?, ?, ?, '{}', '{}', ?, ?, ?, ?)`,
		flowID, s.anon.Hash(identity), masked, string(models.StepIdle),
		string(models.FlowStatusActive), now, now, now.Add(models.HistoryTTL))
	if err != nil {
		slog.Error("SQLiteStore CreateFlow failed", "error", err, "maskedIdentity", masked)
		return "", fmt.Errorf("failed to insert flow for %s: %w", masked, err)
	}

	slog.Info("SQLiteStore created flow", "flowID", flowID, "maskedIdentity", masked)
	return flowID, nil
}

// AppendMessage appends to the flow's message transcript. A missing flow is
// a no-op so no orphan transcript rows outlive the purge.
func (s *SQLiteStore) AppendMessage(ctx context.Context, flowID string, msg models.FlowMessage) error {
	exists, err := s.touch(ctx, flowID)
	if err != nil {
		return err
	}
	if !exists {
		slog.Debug("SQLiteStore AppendMessage skipped, no such flow", "flowID", flowID)
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flow_messages (flow_id, message_id, direction, content, step, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		flowID, msg.MessageID, string(msg.Direction), msg.Content, string(msg.Step), msg.Timestamp.UTC())
	if err != nil {
		slog.Error("SQLiteStore AppendMessage failed", "error", err, "flowID", flowID)
		return fmt.Errorf("failed to append message to flow %s: %w", flowID, err)
	}
	slog.Debug("SQLiteStore AppendMessage succeeded", "flowID", flowID, "direction", msg.Direction)
	return nil
}

// UpdateState overwrites the record's step, anonymized data, and retry counters.
func (s *SQLiteStore) UpdateState(ctx context.Context, flowID string, state *models.ConversationState) error {
	dataJSON, err := json.Marshal(anonymize.MaskCollectedData(state.CollectedData))
	if err != nil {
		slog.Error("SQLiteStore UpdateState data marshal failed", "error", err, "flowID", flowID)
		return err
	}
	retriesJSON, err := json.Marshal(state.ValidationRetries)
	if err != nil {
		slog.Error("SQLiteStore UpdateState retries marshal failed", "error", err, "flowID", flowID)
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE flows SET current_step = ?, collected_data = ?, validation_retries = ?, last_updated_at = ?
		WHERE flow_id = ?`,
		string(state.CurrentStep), string(dataJSON), string(retriesJSON), time.Now().UTC(), flowID)
	if err != nil {
		slog.Error("SQLiteStore UpdateState failed", "error", err, "flowID", flowID)
		return fmt.Errorf("failed to update flow %s: %w", flowID, err)
	}

	slog.Debug("SQLiteStore UpdateState succeeded", "flowID", flowID, "step", state.CurrentStep)
	return nil
}

// CompleteFlow sets a terminal status on the record.
func (s *SQLiteStore) CompleteFlow(ctx context.Context, flowID string, status models.FlowStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE flows SET status = ?, last_updated_at = ? WHERE flow_id = ?`,
		string(status), time.Now().UTC(), flowID)
	if err != nil {
		slog.Error("SQLiteStore CompleteFlow failed", "error", err, "flowID", flowID, "status", status)
		return fmt.Errorf("failed to complete flow %s: %w", flowID, err)
	}

	slog.Info("SQLiteStore flow completed", "flowID", flowID, "status", status)
	return nil
}

// ContactHistory returns the most recent flow records for an identity, newest first.
func (s *SQLiteStore) ContactHistory(ctx context.Context, identity string, limit int) ([]models.FlowHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flow_id, identity_hash, masked_identity, current_step, collected_data, validation_retries, status, created_at, last_updated_at, expires_at
		FROM flows WHERE identity_hash = ? ORDER BY created_at DESC LIMIT ?`,
		s.anon.Hash(identity), limit)
	if err != nil {
		slog.Error("SQLiteStore ContactHistory query failed", "error", err)
		return nil, fmt.Errorf("failed to query contact history: %w", err)
	}
	defer rows.Close()

	var records []models.FlowHistoryRecord
	for rows.Next() {
		record, err := scanFlowRecord(rows)
		if err != nil {
			slog.Error("SQLiteStore ContactHistory scan failed", "error", err)
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

	slog.Debug("SQLiteStore ContactHistory succeeded", "count", len(records))
	return records, nil
}

// ExpireStale marks Active flows idle since before the cutoff as Expired.
// Their conversation cache entry is long gone; the record stays readable
// until the purge removes it.
func (s *SQLiteStore) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE flows SET status = ? WHERE status = ? AND last_updated_at <= ?`,
		models.FlowStatusExpired, models.FlowStatusActive, cutoff.UTC())
	if err != nil {
		slog.Error("SQLiteStore ExpireStale failed", "error", err)
		return 0, fmt.Errorf("failed to expire stale flows: %w", err)
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		slog.Info("SQLiteStore expired stale flows", "count", expired)
	}
	return expired, nil
}

// PurgeExpired deletes records whose expiry has passed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM flow_messages WHERE flow_id IN (SELECT flow_id FROM flows WHERE expires_at <= ?)`, now.UTC())
	if err != nil {
		slog.Error("SQLiteStore PurgeExpired messages failed", "error", err)
		return 0, fmt.Errorf("failed to purge expired messages: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		slog.Error("SQLiteStore PurgeExpired flows failed", "error", err)
		return 0, fmt.Errorf("failed to purge expired flows: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		slog.Info("SQLiteStore purged expired flows", "count", purged)
	}
	return purged, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// touch bumps the flow's last_updated_at, reporting whether the flow exists.
func (s *SQLiteStore) touch(ctx context.Context, flowID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE flows SET last_updated_at = ? WHERE flow_id = ?`, time.Now().UTC(), flowID)
	if err != nil {
		return false, fmt.Errorf("failed to touch flow %s: %w", flowID, err)
	}
	touched, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return touched > 0, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, record *models.FlowHistoryRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, direction, content, step, ts
		FROM flow_messages WHERE flow_id = ? ORDER BY seq`, record.FlowID)
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
