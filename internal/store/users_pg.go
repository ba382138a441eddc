package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyduel/keyduel/internal/model"
)

// PgUserStore implements UserStore over PostgreSQL.
type PgUserStore struct {
	pool *pgxpool.Pool
}

// NewPgUserStore wraps a pgx pool.
func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

func (s *PgUserStore) Get(ctx context.Context, id model.PlayerID) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, photo_ref, elo, coins,
		       total_matches, wins, losses, avg_wpm, avg_accuracy,
		       peak_elo, best_wpm, cursor, effect, rank_background
		FROM users WHERE id = $1
	`, string(id)).Scan(
		&p.ID, &p.DisplayName, &p.PhotoRef, &p.Elo, &p.Coins,
		&p.TotalMatches, &p.Wins, &p.Losses, &p.AvgWPM, &p.AvgAccuracy,
		&p.PeakElo, &p.BestWPM, &p.EquippedCursor, &p.EquippedEffect, &p.RankBackground,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", id, err)
	}
	return &p, nil
}

func (s *PgUserStore) AddCoins(ctx context.Context, id model.PlayerID, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET coins = GREATEST(0, coins + $1) WHERE id = $2`,
		delta, string(id),
	)
	if err != nil {
		return fmt.Errorf("crediting coins for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStats applies the settlement patch in one statement so the
// running averages and monotonic peaks stay consistent under
// concurrent settlements.
func (s *PgUserStore) UpdateStats(ctx context.Context, id model.PlayerID, patch model.StatsPatch) error {
	win, loss := 0, 0
	if patch.Won {
		win = 1
	}
	if patch.Lost {
		loss = 1
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			elo          = GREATEST(0, elo + $1),
			total_matches = total_matches + 1,
			wins         = wins + $2,
			losses       = losses + $3,
			avg_wpm      = (avg_wpm * total_matches + $4) / (total_matches + 1),
			avg_accuracy = (avg_accuracy * total_matches + $5) / (total_matches + 1),
			peak_elo     = GREATEST(peak_elo, $6),
			best_wpm     = GREATEST(best_wpm, $7),
			rank_background = CASE WHEN $8 THEN $9 ELSE rank_background END
		WHERE id = $10
	`,
		patch.EloDelta, win, loss, patch.WPM, patch.Accuracy,
		patch.PeakElo, patch.BestWPM, patch.RankBGSet, patch.RankBG,
		string(id),
	)
	if err != nil {
		return fmt.Errorf("updating stats for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ UserStore = (*PgUserStore)(nil)
