package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/keyduel/keyduel/internal/model"
)

const leaderboardKey = "lb:elo"

// Leaderboard bonus rates by placement.
const (
	top3BonusRate  = 0.50
	top10BonusRate = 0.20
)

// RedisLeaderboard keeps the Elo leaderboard in a Redis sorted set
// and answers the settlement coin-bonus query from live placement.
type RedisLeaderboard struct {
	rdb *redis.Client
}

// NewRedisLeaderboard wraps an existing client.
func NewRedisLeaderboard(rdb *redis.Client) *RedisLeaderboard {
	return &RedisLeaderboard{rdb: rdb}
}

func (l *RedisLeaderboard) BonusFor(ctx context.Context, id model.PlayerID) (LeaderboardBonus, error) {
	rank, err := l.rdb.ZRevRank(ctx, leaderboardKey, string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return LeaderboardBonus{}, nil
	}
	if err != nil {
		return LeaderboardBonus{}, fmt.Errorf("querying leaderboard rank: %w", err)
	}

	switch {
	case rank < 3:
		return LeaderboardBonus{IsTop3: true, IsTop10: true, Rate: top3BonusRate}, nil
	case rank < 10:
		return LeaderboardBonus{IsTop10: true, Rate: top10BonusRate}, nil
	default:
		return LeaderboardBonus{}, nil
	}
}

func (l *RedisLeaderboard) SetScore(ctx context.Context, id model.PlayerID, elo int) error {
	err := l.rdb.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(elo),
		Member: string(id),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating leaderboard score: %w", err)
	}
	return nil
}

var _ LeaderboardQuery = (*RedisLeaderboard)(nil)
