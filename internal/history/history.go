// Package history provides the durable, anonymized flow history store.
//
// One record per flow, indexed by flow id (unique lookup) and identity hash
// (history-by-contact lookup), with an expiry column standing in for a TTL
// index: a periodic purge deletes rows past their expires_at. The store is
// advisory for audit, not authoritative for correctness. All writes are
// idempotent on flow id and a missing record is silently a no-op.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/augustodasneves/supportagent/internal/models"
)

// Store is the durable flow history contract.
type Store interface {
	// CreateFlow mints a flow id for the identity and inserts an Active
	// record with hashed/masked identity and a 90-day expiry.
	CreateFlow(ctx context.Context, identity string) (string, error)

	// AppendMessage appends to the flow's ordered message transcript.
	AppendMessage(ctx context.Context, flowID string, msg models.FlowMessage) error

	// UpdateState overwrites the record's step, anonymized collected data,
	// and retry counters from the working state.
	UpdateState(ctx context.Context, flowID string, state *models.ConversationState) error

	// CompleteFlow sets a terminal status on the record.
	CompleteFlow(ctx context.Context, flowID string, status models.FlowStatus) error

	// ContactHistory returns the most recent flow records for an identity,
	// newest first.
	ContactHistory(ctx context.Context, identity string, limit int) ([]models.FlowHistoryRecord, error)

	// ExpireStale marks Active records idle since before the cutoff as
	// Expired. Returns the number of flows marked.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)

	// PurgeExpired deletes records whose expiry has passed. Returns the
	// number of flows removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// Close releases the underlying connection.
	Close() error
}

// Opts holds configuration for history store backends.
type Opts struct {
	DSN string
}

// Option configures a history store backend.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the backend DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the backend DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
