package matchmaking

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
)

// tryPair attempts one FIFO pairing pass for player id. A pairing is
// valid only if both locks were held while both players were observed
// queued and unmatched. Returns true when a match was created.
func (c *Coordinator) tryPair(ctx context.Context, mode model.Mode, id model.PlayerID) bool {
	ok, err := c.store.AcquireLock(ctx, id, constants.PairLockTTL)
	if err != nil {
		slog.Error("pairing: self lock failed", "player", id, "error", err)
		return false
	}
	if !ok {
		// Someone else is pairing with us right now. The search loop
		// retries; never surfaced to the client.
		return false
	}
	selfLocked := true
	defer func() {
		if selfLocked {
			c.releaseLock(ctx, id)
		}
	}()

	candidates, err := c.store.OldestIDs(ctx, mode, constants.PairCandidateScan, id)
	if err != nil {
		slog.Error("pairing: candidate scan failed", "player", id, "error", err)
		return false
	}
	if len(candidates) == 0 {
		return false
	}

	matchedFlags, err := c.store.MatchedMany(ctx, mode, candidates)
	if err != nil {
		slog.Error("pairing: matched pipeline failed", "player", id, "error", err)
		return false
	}

	unmatched := candidates[:0]
	for i, cand := range candidates {
		if !matchedFlags[i] {
			unmatched = append(unmatched, cand)
		}
	}

	if mode == model.ModeFriends {
		unmatched = c.filterFriends(ctx, mode, id, unmatched)
	}

	var opponent model.PlayerID
	for _, cand := range unmatched {
		got, err := c.store.AcquireLock(ctx, cand, constants.PairLockTTL)
		if err != nil || !got {
			continue
		}
		// Re-verify under both locks: the candidate may have been
		// paired or dequeued between the scan and the lock.
		queued, qErr := c.store.IsQueued(ctx, mode, cand)
		matched, mErr := c.store.IsMatched(ctx, mode, cand)
		if qErr == nil && mErr == nil && queued && !matched {
			opponent = cand
			break
		}
		c.releaseLock(ctx, cand)
	}
	if opponent == "" {
		return false
	}

	if err := c.store.MarkMatched(ctx, mode, id, opponent); err != nil {
		slog.Error("pairing: marking matched failed", "player", id, "opponent", opponent, "error", err)
		c.releaseLock(ctx, opponent)
		return false
	}

	// Callbacks and session creation happen outside the lock region.
	c.releaseLock(ctx, id)
	selfLocked = false
	c.releaseLock(ctx, opponent)

	c.createMatch(ctx, mode, id, opponent)
	return true
}

// filterFriends keeps only candidates on the caller's stored friend
// list. The list is persisted in the shared store at enqueue time, so
// the check holds across replicas.
func (c *Coordinator) filterFriends(ctx context.Context, mode model.Mode, id model.PlayerID, candidates []model.PlayerID) []model.PlayerID {
	entry, err := c.store.Entry(ctx, mode, id)
	if err != nil {
		slog.Error("pairing: loading own entry for friend filter", "player", id, "error", err)
		return nil
	}

	out := candidates[:0]
	for _, cand := range candidates {
		if slices.Contains(entry.Friends, cand) {
			out = append(out, cand)
		}
	}
	return out
}

// tryCreateBotMatch converts a timed-out queue entry into a bot
// match. Returns true when the match was created.
func (c *Coordinator) tryCreateBotMatch(ctx context.Context, mode model.Mode, id model.PlayerID) bool {
	ok, err := c.store.AcquireLock(ctx, id, constants.PairLockTTL)
	if err != nil || !ok {
		return false
	}
	defer c.releaseLock(ctx, id)

	queued, qErr := c.store.IsQueued(ctx, mode, id)
	matched, mErr := c.store.IsMatched(ctx, mode, id)
	if qErr != nil || mErr != nil || !queued || matched {
		return false
	}

	entry, err := c.store.Entry(ctx, mode, id)
	if err != nil {
		slog.Error("bot fallback: loading entry failed", "player", id, "error", err)
		return false
	}

	if err := c.store.MarkMatched(ctx, mode, id, ""); err != nil {
		slog.Error("bot fallback: marking matched failed", "player", id, "error", err)
		return false
	}
	if err := c.store.Dequeue(ctx, mode, id); err != nil {
		slog.Error("bot fallback: dequeue failed", "player", id, "error", err)
	}

	pm := &model.PendingMatch{
		MatchID: uuid.NewString(),
		Player1: entry,
		Mode:    mode,
		IsBot:   true,
	}

	slog.Info("bot fallback match", "player", id, "mode", mode, "match", pm.MatchID)
	c.launch(ctx, pm)
	return true
}

// createMatch finalizes a confirmed pairing: builds the PendingMatch,
// removes both from the queue, delivers both MATCH_FOUND callbacks,
// and hands the match to the orchestrator.
func (c *Coordinator) createMatch(ctx context.Context, mode model.Mode, p1, p2 model.PlayerID) {
	e1, err1 := c.store.Entry(ctx, mode, p1)
	e2, err2 := c.store.Entry(ctx, mode, p2)
	if err1 != nil || err2 != nil {
		slog.Error("create match: loading entries failed",
			"p1", p1, "err1", err1, "p2", p2, "err2", err2)
		if err := c.store.ClearMatched(ctx, mode, p1, p2); err != nil {
			slog.Error("create match: rollback failed", "error", err)
		}
		return
	}

	for _, id := range []model.PlayerID{p1, p2} {
		if err := c.store.Dequeue(ctx, mode, id); err != nil {
			slog.Error("create match: dequeue failed", "player", id, "error", err)
		}
	}

	pm := &model.PendingMatch{
		MatchID: uuid.NewString(),
		Player1: e1,
		Player2: e2,
		Mode:    mode,
	}

	slog.Info("match paired", "match", pm.MatchID, "mode", mode, "p1", p1, "p2", p2)
	c.launch(ctx, pm)
}

// launch creates the session, notifies every human side, and
// schedules the synchronized start.
func (c *Coordinator) launch(ctx context.Context, pm *model.PendingMatch) {
	c.pending.put(pm)
	defer c.pending.remove(pm.MatchID)

	words, err := c.orch.CreateSession(ctx, pm)
	if err != nil {
		slog.Error("creating session", "match", pm.MatchID, "error", err)
		c.CleanupAfterMatch(ctx, pm.Player1.PlayerID, playerID(pm.Player2), pm.Mode)
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		return c.notifyFound(pm.Player1.PlayerID, pm, words, opponentOf(pm, pm.Player1))
	})
	if pm.Player2 != nil {
		g.Go(func() error {
			return c.notifyFound(pm.Player2.PlayerID, pm, words, opponentOf(pm, pm.Player2))
		})
	}
	// Individual failures are already logged; the start scheduler
	// forfeits any side that never registers.
	_ = g.Wait()

	c.orch.Start(pm.MatchID)
}

// notifyFound invokes one side's pairing callback.
func (c *Coordinator) notifyFound(id model.PlayerID, pm *model.PendingMatch, words []string, opp model.OpponentProfile) error {
	c.mu.Lock()
	reg := c.callbacks[id]
	delete(c.callbacks, id)
	c.mu.Unlock()

	if reg == nil {
		slog.Warn("no pairing callback registered", "player", id, "match", pm.MatchID)
		return nil
	}
	defer reg.markFired()

	err := reg.cb(model.MatchFound{
		MatchID:  pm.MatchID,
		Mode:     pm.Mode,
		Words:    words,
		Opponent: opp,
	})
	if err != nil {
		slog.Error("pairing callback failed", "player", id, "match", pm.MatchID, "error", err)
	}
	return err
}

// opponentOf builds the MATCH_FOUND opponent view for the given side.
func opponentOf(pm *model.PendingMatch, self *model.QueueEntry) model.OpponentProfile {
	var other *model.QueueEntry
	if self == pm.Player1 {
		other = pm.Player2
	} else {
		other = pm.Player1
	}

	if other == nil {
		// Synthetic opponent pitched at the player's own elo.
		return model.OpponentProfile{
			PlayerID:    model.PlayerID("bot:" + pm.MatchID),
			DisplayName: "Challenger",
			Elo:         self.Elo,
			Rank:        model.RankFromElo(self.Elo).String(),
			IsBot:       true,
		}
	}
	return model.OpponentProfile{
		PlayerID:    other.PlayerID,
		DisplayName: other.DisplayName,
		PhotoRef:    other.PhotoRef,
		Elo:         other.Elo,
		Rank:        model.RankFromElo(other.Elo).String(),
		Cursor:      other.Cursor,
		Effect:      other.Effect,
	}
}

func playerID(e *model.QueueEntry) model.PlayerID {
	if e == nil {
		return ""
	}
	return e.PlayerID
}

func (c *Coordinator) releaseLock(ctx context.Context, id model.PlayerID) {
	if err := c.store.ReleaseLock(context.WithoutCancel(ctx), id); err != nil {
		slog.Error("releasing pairing lock", "player", id, "error", err)
	}
}
