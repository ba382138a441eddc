package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgAuditSink writes audit events to PostgreSQL. Per contract it
// never surfaces errors: a failed write is logged and dropped.
type PgAuditSink struct {
	pool *pgxpool.Pool
}

// NewPgAuditSink wraps a pgx pool.
func NewPgAuditSink(pool *pgxpool.Pool) *PgAuditSink {
	return &PgAuditSink{pool: pool}
}

func (s *PgAuditSink) Log(ctx context.Context, ev AuditEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (match_id, player_id, kind, detail, at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.MatchID, string(ev.PlayerID), ev.Kind, ev.Detail, ev.At)
	if err != nil {
		slog.Error("audit write failed",
			"match", ev.MatchID,
			"kind", ev.Kind,
			"error", err)
	}
}

var _ AuditSink = (*PgAuditSink)(nil)
