// Package matchmaking pairs enqueued players across three independent
// queues (ranked, training, friends) backed by the shared queue
// store, with distributed pairing locks and bot fallback on timeout.
package matchmaking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/queuestore"
)

// PairingCallback delivers MATCH_FOUND to one side. Invoked outside
// any lock region; failures are logged per side.
type PairingCallback func(model.MatchFound) error

// Orchestrator is the coordinator's view of the match orchestrator.
type Orchestrator interface {
	// CreateSession builds the session for a confirmed pairing and
	// returns the generated word list.
	CreateSession(ctx context.Context, pm *model.PendingMatch) ([]string, error)
	// Start schedules the synchronized start. Asynchronous.
	Start(matchID string)
}

// Coordinator owns the matchmaking phase: queue membership, search
// goroutines, pairing, and bot fallback. One instance per replica;
// cross-replica state lives in the queue store.
type Coordinator struct {
	store queuestore.Store
	orch  Orchestrator
	now   func() time.Time

	mu        sync.Mutex
	callbacks map[model.PlayerID]*registration
	searches  map[model.PlayerID]context.CancelFunc
	pending   *pendingMatches

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// registration is one player's pairing callback plus the signal that
// it has fired.
type registration struct {
	cb    PairingCallback
	fired chan struct{}
	once  sync.Once
}

func (r *registration) markFired() {
	r.once.Do(func() { close(r.fired) })
}

// New builds a Coordinator over the shared store. SetOrchestrator
// must be called before Enqueue.
func New(store queuestore.Store) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:     store,
		now:       time.Now,
		callbacks: make(map[model.PlayerID]*registration),
		searches:  make(map[model.PlayerID]context.CancelFunc),
		pending:   newPendingMatches(constants.PendingMatchCap),
		rootCtx:   ctx,
		cancel:    cancel,
	}
}

// SetOrchestrator wires the match orchestrator. Separate from New
// because the orchestrator needs the coordinator for cleanup.
func (c *Coordinator) SetOrchestrator(orch Orchestrator) {
	c.orch = orch
}

// Close cancels every search goroutine and waits for them to exit.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

var allModes = []model.Mode{model.ModeRanked, model.ModeTraining, model.ModeFriends}

// modeTimeout returns the bot-fallback timeout for a mode; ok is
// false when the mode never falls back to a bot.
func modeTimeout(mode model.Mode) (time.Duration, bool) {
	switch mode {
	case model.ModeRanked:
		return constants.RankedQueueTimeout, true
	case model.ModeTraining:
		return constants.TrainingQueueTimeout, true
	default:
		return 0, false
	}
}

// Enqueue enrols the player in one queue and spawns its search
// goroutine. Any previous search for the same player is cancelled
// first, so re-enqueue after LEAVE_QUEUE behaves like a fresh enqueue.
func (c *Coordinator) Enqueue(ctx context.Context, mode model.Mode, entry model.QueueEntry, cb PairingCallback) error {
	// A player is in at most one queue at a time: switching queues
	// removes the entry another replica could still pair against.
	for _, other := range allModes {
		if other == mode {
			continue
		}
		if err := c.store.Dequeue(ctx, other, entry.PlayerID); err != nil {
			return err
		}
	}

	// A stale matched flag from an aborted pairing must not block a
	// fresh enqueue.
	if err := c.store.ClearMatched(ctx, mode, entry.PlayerID); err != nil {
		return err
	}

	entry.JoinedAt = float64(c.now().UnixMilli()) / 1000.0
	if err := c.store.Enqueue(ctx, mode, entry); err != nil {
		return err
	}

	c.mu.Lock()
	if cancel, ok := c.searches[entry.PlayerID]; ok {
		cancel()
	}
	c.callbacks[entry.PlayerID] = &registration{cb: cb, fired: make(chan struct{})}
	searchCtx, cancel := context.WithCancel(c.rootCtx)
	c.searches[entry.PlayerID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.searchLoop(searchCtx, mode, entry.PlayerID)

	slog.Info("player enqueued", "player", entry.PlayerID, "mode", mode, "elo", entry.Elo)
	return nil
}

// Cancel removes the player from the given queue and tears down the
// local search state. Idempotent.
func (c *Coordinator) Cancel(ctx context.Context, mode model.Mode, id model.PlayerID) error {
	err := c.store.Dequeue(ctx, mode, id)

	c.mu.Lock()
	if cancel, ok := c.searches[id]; ok {
		cancel()
		delete(c.searches, id)
	}
	delete(c.callbacks, id)
	c.mu.Unlock()

	return err
}

// QueuePosition reports the player's FIFO slot for QUEUE_UPDATE ticks.
func (c *Coordinator) QueuePosition(ctx context.Context, mode model.Mode, id model.PlayerID) (int, error) {
	return c.store.QueuePosition(ctx, mode, id)
}

// CleanupAfterMatch clears both sides' matched flags. Called by the
// orchestrator at settlement; idempotent. The friends matched set is
// cleared as cross-mode safety.
func (c *Coordinator) CleanupAfterMatch(ctx context.Context, p1, p2 model.PlayerID, mode model.Mode) {
	ids := make([]model.PlayerID, 0, 2)
	if p1 != "" {
		ids = append(ids, p1)
	}
	if p2 != "" {
		ids = append(ids, p2)
	}
	if len(ids) == 0 {
		return
	}

	if err := c.store.ClearMatched(ctx, mode, ids...); err != nil {
		slog.Error("clearing matched set", "mode", mode, "error", err)
	}
	if mode != model.ModeFriends {
		if err := c.store.ClearMatched(ctx, model.ModeFriends, ids...); err != nil {
			slog.Error("clearing friends matched set", "error", err)
		}
	}
}

// searchLoop is the per-player pairing task: poll at 1s cadence,
// attempt FIFO pairing, fall back to a bot when the mode's timeout
// elapses, exit when the player is paired or gone.
func (c *Coordinator) searchLoop(ctx context.Context, mode model.Mode, id model.PlayerID) {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		delete(c.searches, id)
		c.mu.Unlock()
	}()

	timeout, botsAllowed := modeTimeout(mode)
	deadline := c.now().Add(timeout)

	ticker := time.NewTicker(constants.SearchTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		queued, err := c.store.IsQueued(ctx, mode, id)
		if err != nil {
			slog.Error("search: queue check failed", "player", id, "error", err)
			continue
		}

		matched, err := c.store.IsMatched(ctx, mode, id)
		if err != nil {
			slog.Error("search: matched check failed", "player", id, "error", err)
			continue
		}

		if matched {
			c.awaitCallback(ctx, mode, id)
			return
		}

		if !queued {
			return
		}

		if botsAllowed && c.now().After(deadline) {
			if c.tryCreateBotMatch(ctx, mode, id) {
				return
			}
			continue
		}

		if c.tryPair(ctx, mode, id) {
			return
		}
	}
}

// awaitCallback waits for the player's pairing callback to fire. If
// the pairing side crashed before delivering MATCH_FOUND, the matched
// flag is cleared so the player can re-enqueue.
func (c *Coordinator) awaitCallback(ctx context.Context, mode model.Mode, id model.PlayerID) {
	c.mu.Lock()
	reg := c.callbacks[id]
	c.mu.Unlock()
	if reg == nil {
		return
	}

	timer := time.NewTimer(constants.MatchedCallbackWait)
	defer timer.Stop()

	select {
	case <-reg.fired:
	case <-ctx.Done():
	case <-timer.C:
		slog.Warn("pairing callback never fired, releasing matched flag", "player", id, "mode", mode)
		if err := c.store.ClearMatched(context.WithoutCancel(ctx), mode, id); err != nil {
			slog.Error("clearing stale matched flag", "player", id, "error", err)
		}
	}
}
