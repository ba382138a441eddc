package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyduel/keyduel/internal/model"
)

// PgMatchStore archives matches in PostgreSQL. ON CONFLICT DO NOTHING
// on match_id makes Insert idempotent, so a retried settlement never
// duplicates a row.
type PgMatchStore struct {
	pool *pgxpool.Pool
}

// NewPgMatchStore wraps a pgx pool.
func NewPgMatchStore(pool *pgxpool.Pool) *PgMatchStore {
	return &PgMatchStore{pool: pool}
}

func (s *PgMatchStore) Insert(ctx context.Context, rec model.MatchRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO matches (
			match_id, mode, player1, player2, is_bot,
			started_at, ended_at,
			p1_wpm, p1_accuracy, p1_score,
			p2_wpm, p2_accuracy, p2_score,
			winner, forfeit_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (match_id) DO NOTHING
	`,
		rec.MatchID, string(rec.Mode), string(rec.Player1), string(rec.Player2), rec.IsBot,
		rec.StartedAt, rec.EndedAt,
		rec.P1WPM, rec.P1Accuracy, rec.P1Score,
		rec.P2WPM, rec.P2Accuracy, rec.P2Score,
		string(rec.Winner), string(rec.ForfeitBy),
	)
	if err != nil {
		return fmt.Errorf("archiving match %s: %w", rec.MatchID, err)
	}
	return nil
}

var _ MatchStore = (*PgMatchStore)(nil)
