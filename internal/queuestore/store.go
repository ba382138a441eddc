// Package queuestore is the shared matchmaking state: per-mode
// ordered queues, matched sets, serialized queue entries, and the
// short-TTL pairing locks. It is the only cross-replica state in
// matchmaking.
package queuestore

import (
	"context"
	"errors"
	"time"

	"github.com/keyduel/keyduel/internal/model"
)

// ErrNotQueued is returned when an operation targets a player that is
// not present in the requested queue.
var ErrNotQueued = errors.New("player not queued")

// Store is the narrow port over the shared key/value store. The Redis
// implementation is authoritative in production; Memory backs tests
// and single-node runs.
type Store interface {
	// Enqueue inserts the entry into the mode's ordered queue, keyed
	// by entry.JoinedAt, and persists the serialized entry (including
	// the friend list, so friends-mode filtering works on any
	// replica).
	Enqueue(ctx context.Context, mode model.Mode, entry model.QueueEntry) error

	// Dequeue removes the player from the mode's queue and deletes
	// the stored entry. Idempotent.
	Dequeue(ctx context.Context, mode model.Mode, id model.PlayerID) error

	// IsQueued reports queue membership.
	IsQueued(ctx context.Context, mode model.Mode, id model.PlayerID) (bool, error)

	// QueuePosition returns the 0-based FIFO position, or ErrNotQueued.
	QueuePosition(ctx context.Context, mode model.Mode, id model.PlayerID) (int, error)

	// Entry fetches the stored queue entry, or ErrNotQueued.
	Entry(ctx context.Context, mode model.Mode, id model.PlayerID) (*model.QueueEntry, error)

	// OldestIDs returns up to limit queue members in FIFO order,
	// excluding the given player.
	OldestIDs(ctx context.Context, mode model.Mode, limit int, exclude model.PlayerID) ([]model.PlayerID, error)

	// MatchedMany checks matched-set membership for several players
	// in one round trip.
	MatchedMany(ctx context.Context, mode model.Mode, ids []model.PlayerID) ([]bool, error)

	// IsMatched reports matched-set membership for one player.
	IsMatched(ctx context.Context, mode model.Mode, id model.PlayerID) (bool, error)

	// MarkMatched adds both players to the mode's matched set in a
	// single atomic transaction. Either player may be empty to mark
	// only one (bot fallback).
	MarkMatched(ctx context.Context, mode model.Mode, a, b model.PlayerID) error

	// ClearMatched removes players from the mode's matched set.
	// Idempotent.
	ClearMatched(ctx context.Context, mode model.Mode, ids ...model.PlayerID) error

	// AcquireLock takes the per-player pairing lock with the given
	// TTL. Returns false without error when the lock is held.
	AcquireLock(ctx context.Context, id model.PlayerID, ttl time.Duration) (bool, error)

	// ReleaseLock drops the pairing lock. Idempotent.
	ReleaseLock(ctx context.Context, id model.PlayerID) error
}
