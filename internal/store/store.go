// Package store defines the match core's collaborator contracts:
// identity, persistent profiles, match archive, audit, friend graph,
// and leaderboard bonus lookup. Production implementations live in
// this package (pgx, redis); in-memory fakes live in testutil.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/keyduel/keyduel/internal/model"
)

// ErrNotFound is returned when a profile does not exist. Bot IDs
// always resolve to ErrNotFound.
var ErrNotFound = errors.New("profile not found")

// UserStore is the persistent profile record.
type UserStore interface {
	Get(ctx context.Context, id model.PlayerID) (*model.Profile, error)
	AddCoins(ctx context.Context, id model.PlayerID, delta int) error
	// UpdateStats applies a settlement patch atomically. Peak fields
	// (peak elo, best wpm) are monotonic: stored values only grow.
	UpdateStats(ctx context.Context, id model.PlayerID, patch model.StatsPatch) error
}

// MatchStore archives finished matches. Insert is idempotent on
// MatchID.
type MatchStore interface {
	Insert(ctx context.Context, rec model.MatchRecord) error
}

// AuditEvent is one fire-and-forget audit record.
type AuditEvent struct {
	MatchID  string
	PlayerID model.PlayerID
	Kind     string
	Detail   string
	At       time.Time
}

// AuditSink records audit events. Implementations must not return
// errors to callers and must not panic; failures are logged and
// dropped.
type AuditSink interface {
	Log(ctx context.Context, ev AuditEvent)
}

// FriendGraph answers friend-list queries for friends-mode matchmaking.
type FriendGraph interface {
	FriendsOf(ctx context.Context, id model.PlayerID) ([]model.PlayerID, error)
}

// LeaderboardBonus is the coin-bonus placement of a player.
type LeaderboardBonus struct {
	IsTop3  bool
	IsTop10 bool
	Rate    float64 // 0.50 top-3, 0.20 top-4..10, else 0
}

// LeaderboardQuery resolves the settlement leaderboard bonus and
// accepts Elo updates so placement stays current.
type LeaderboardQuery interface {
	BonusFor(ctx context.Context, id model.PlayerID) (LeaderboardBonus, error)
	SetScore(ctx context.Context, id model.PlayerID, elo int) error
}

// IdentityProvider verifies a session token and returns its subject.
type IdentityProvider interface {
	Verify(token string) (model.PlayerID, error)
}
