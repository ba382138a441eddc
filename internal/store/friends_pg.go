package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyduel/keyduel/internal/model"
)

// PgFriendGraph reads the friendships table. Rows are stored once per
// direction, written by the profile service.
type PgFriendGraph struct {
	pool *pgxpool.Pool
}

// NewPgFriendGraph wraps a pgx pool.
func NewPgFriendGraph(pool *pgxpool.Pool) *PgFriendGraph {
	return &PgFriendGraph{pool: pool}
}

func (g *PgFriendGraph) FriendsOf(ctx context.Context, id model.PlayerID) ([]model.PlayerID, error) {
	rows, err := g.pool.Query(ctx,
		`SELECT friend_id FROM friendships WHERE user_id = $1 ORDER BY friend_id`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("querying friends of %q: %w", id, err)
	}
	defer rows.Close()

	var out []model.PlayerID
	for rows.Next() {
		var fid string
		if err := rows.Scan(&fid); err != nil {
			return nil, fmt.Errorf("scanning friend row: %w", err)
		}
		out = append(out, model.PlayerID(fid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend rows: %w", err)
	}
	return out, nil
}

var _ FriendGraph = (*PgFriendGraph)(nil)
