package queuestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyduel/keyduel/internal/model"
)

// Redis implements Store on a Redis server (or any compatible store).
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func queueKey(mode model.Mode) string   { return "mm:queue:" + string(mode) }
func entryKey(mode model.Mode) string   { return "mm:entry:" + string(mode) }
func matchedKey(mode model.Mode) string { return "mm:matched:" + string(mode) }
func lockKey(id model.PlayerID) string  { return "mm:lock:" + string(id) }

func (r *Redis) Enqueue(ctx context.Context, mode model.Mode, entry model.QueueEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling queue entry: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, queueKey(mode), redis.Z{Score: entry.JoinedAt, Member: string(entry.PlayerID)})
	pipe.HSet(ctx, entryKey(mode), string(entry.PlayerID), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueueing %s in %s: %w", entry.PlayerID, mode, err)
	}
	return nil
}

func (r *Redis) Dequeue(ctx context.Context, mode model.Mode, id model.PlayerID) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, queueKey(mode), string(id))
	pipe.HDel(ctx, entryKey(mode), string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dequeueing %s from %s: %w", id, mode, err)
	}
	return nil
}

func (r *Redis) IsQueued(ctx context.Context, mode model.Mode, id model.PlayerID) (bool, error) {
	_, err := r.rdb.ZScore(ctx, queueKey(mode), string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking queue membership: %w", err)
	}
	return true, nil
}

func (r *Redis) QueuePosition(ctx context.Context, mode model.Mode, id model.PlayerID) (int, error) {
	rank, err := r.rdb.ZRank(ctx, queueKey(mode), string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotQueued
	}
	if err != nil {
		return 0, fmt.Errorf("querying queue position: %w", err)
	}
	return int(rank), nil
}

func (r *Redis) Entry(ctx context.Context, mode model.Mode, id model.PlayerID) (*model.QueueEntry, error) {
	raw, err := r.rdb.HGet(ctx, entryKey(mode), string(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotQueued
	}
	if err != nil {
		return nil, fmt.Errorf("fetching queue entry: %w", err)
	}

	var entry model.QueueEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("unmarshaling queue entry: %w", err)
	}
	return &entry, nil
}

func (r *Redis) OldestIDs(ctx context.Context, mode model.Mode, limit int, exclude model.PlayerID) ([]model.PlayerID, error) {
	// Fetch one extra so the exclusion never shrinks the scan window.
	members, err := r.rdb.ZRange(ctx, queueKey(mode), 0, int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("ranging queue: %w", err)
	}

	ids := make([]model.PlayerID, 0, len(members))
	for _, m := range members {
		if model.PlayerID(m) == exclude {
			continue
		}
		ids = append(ids, model.PlayerID(m))
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (r *Redis) MatchedMany(ctx context.Context, mode model.Mode, ids []model.PlayerID) ([]bool, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.BoolCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.SIsMember(ctx, matchedKey(mode), string(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("checking matched flags: %w", err)
	}

	out := make([]bool, len(ids))
	for i, cmd := range cmds {
		out[i] = cmd.Val()
	}
	return out, nil
}

func (r *Redis) IsMatched(ctx context.Context, mode model.Mode, id model.PlayerID) (bool, error) {
	ok, err := r.rdb.SIsMember(ctx, matchedKey(mode), string(id)).Result()
	if err != nil {
		return false, fmt.Errorf("checking matched flag: %w", err)
	}
	return ok, nil
}

func (r *Redis) MarkMatched(ctx context.Context, mode model.Mode, a, b model.PlayerID) error {
	members := make([]any, 0, 2)
	if a != "" {
		members = append(members, string(a))
	}
	if b != "" {
		members = append(members, string(b))
	}
	if len(members) == 0 {
		return nil
	}

	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, matchedKey(mode), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("marking matched: %w", err)
	}
	return nil
}

func (r *Redis) ClearMatched(ctx context.Context, mode model.Mode, ids ...model.PlayerID) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = string(id)
	}
	if err := r.rdb.SRem(ctx, matchedKey(mode), members...).Err(); err != nil {
		return fmt.Errorf("clearing matched: %w", err)
	}
	return nil
}

func (r *Redis) AcquireLock(ctx context.Context, id model.PlayerID, ttl time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, lockKey(id), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring pairing lock: %w", err)
	}
	return ok, nil
}

func (r *Redis) ReleaseLock(ctx context.Context, id model.PlayerID) error {
	if err := r.rdb.Del(ctx, lockKey(id)).Err(); err != nil {
		return fmt.Errorf("releasing pairing lock: %w", err)
	}
	return nil
}

var _ Store = (*Redis)(nil)
