package match

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keyduel/keyduel/internal/bot"
	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
)

// Start schedules the synchronized start for a match. Asynchronous;
// guarded so concurrent calls for the same match do work once.
func (o *Orchestrator) Start(matchID string) {
	s := o.session(matchID)
	if s == nil {
		slog.Warn("start requested for unknown match", "match", matchID)
		return
	}

	s.mu.Lock()
	if s.startInProgress || !s.startedAt.IsZero() || s.state == StateFinished {
		s.mu.Unlock()
		return
	}
	s.startInProgress = true
	s.mu.Unlock()

	o.spawn(func(ctx context.Context) {
		o.runStart(ctx, s)
	})
}

// runStart waits for callback registration, commits the schedule,
// announces GAME_START, and arms the active transition. Errors in
// this path never propagate: a side that cannot be started forfeits.
func (o *Orchestrator) runStart(ctx context.Context, s *Session) {
	ready1, ready2 := o.awaitRegistration(ctx, s)

	if !ready1 || !ready2 {
		switch {
		case ready1 && !ready2:
			o.forfeit(ctx, s, s.p2)
		case !ready1 && ready2:
			o.forfeit(ctx, s, s.p1)
		default:
			o.forfeitBoth(ctx, s)
		}
		return
	}

	now := o.now()
	scheduled := now.Add(constants.StartCountdown)

	s.mu.Lock()
	if s.state == StateFinished {
		s.mu.Unlock()
		return
	}
	s.startedAt = now
	s.scheduledStart = scheduled
	s.state = StateWaiting
	duration := s.Duration
	humans := o.registeredHumans(s)
	s.mu.Unlock()

	// Both sides receive the same absolute timestamp; their local
	// countdowns converge on it regardless of delivery order.
	var g errgroup.Group
	for _, h := range humans {
		sink := h.sink
		id := h.id
		g.Go(func() error {
			err := notifyWithRetry(ctx, constants.NotifyAttempts, constants.GameStartSendWait, func() error {
				return sink.GameStart(scheduled.UnixMilli(), duration)
			})
			if err != nil {
				slog.Error("game start delivery failed", "match", s.MatchID, "player", id, "error", err)
				o.audit.Log(ctx, auditEvent(s.MatchID, id, "game_start_delivery_failed", err.Error()))
			}
			return nil
		})
	}
	// The schedule is server truth: the match proceeds even if an
	// announcement was lost.
	_ = g.Wait()

	o.spawn(func(ctx context.Context) {
		o.activateAt(ctx, s, scheduled)
	})
}

// awaitRegistration polls until both sides registered their sinks or
// the window closes. Bot sides are always ready.
func (o *Orchestrator) awaitRegistration(ctx context.Context, s *Session) (bool, bool) {
	deadline := o.now().Add(constants.CallbackRegisterWait)
	ticker := time.NewTicker(constants.CallbackPollInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		r1 := s.registered(s.p1)
		r2 := s.players[s.p2].IsBot || s.registered(s.p2)
		finished := s.state == StateFinished
		s.mu.Unlock()

		if finished {
			return false, false
		}
		if r1 && r2 {
			return true, true
		}
		if o.now().After(deadline) {
			return r1, r2
		}

		select {
		case <-ctx.Done():
			return r1, r2
		case <-ticker.C:
		}
	}
}

// activateAt sleeps until the scheduled start, then flips the session
// to active, starts the bot and the duration timer, and publishes the
// lobby event.
func (o *Orchestrator) activateAt(ctx context.Context, s *Session, scheduled time.Time) {
	timer := time.NewTimer(time.Until(scheduled))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	if s.state != StateWaiting {
		s.mu.Unlock()
		return
	}
	s.state = StateActive
	s.activeAt = o.now()
	startBot := s.bot != nil && !s.botStarted
	if startBot {
		s.botStarted = true
	}
	startTimer := !s.timerStarted
	if startTimer {
		s.timerStarted = true
	}
	duration := s.Duration
	s.mu.Unlock()

	slog.Info("match active", "match", s.MatchID, "mode", s.Mode)

	if startBot {
		o.spawn(func(ctx context.Context) {
			o.runBot(ctx, s, duration)
		})
	}
	if startTimer {
		o.spawn(func(ctx context.Context) {
			o.runDurationTimer(ctx, s, duration)
		})
	}

	p1, p2 := o.publicProfiles(s)
	o.events.PublicMatchStarted(p1, p2, s.Mode)
}

// runDurationTimer ends the game when the race clock expires. The
// early-finish path wins races with it via endGame's idempotency.
func (o *Orchestrator) runDurationTimer(ctx context.Context, s *Session, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	if st := s.State(); st == StateActive || st == StateWaiting {
		o.endGame(ctx, s, "")
	}
}

// runBot drives the simulator and forwards its clean progress to the
// human side. A crashed or stopped bot simply stops producing
// progress; the duration timer still settles the match.
func (o *Orchestrator) runBot(ctx context.Context, s *Session, duration time.Duration) {
	s.bot.Run(ctx, duration, func(p bot.Progress) {
		s.mu.Lock()
		if s.state != StateActive {
			s.mu.Unlock()
			return
		}
		sink := s.callbacks[s.p1].Progress
		s.mu.Unlock()

		if sink != nil {
			if err := sink.OpponentProgress(p.CharIndex, p.WordIndex); err != nil {
				slog.Debug("bot progress delivery failed", "match", s.MatchID, "error", err)
			}
		}
	})

	// Bot finished its word list before the clock: settle early, same
	// as a human completing the final word.
	done := s.bot.Stats().WordsCompleted >= len(s.Words)
	if done && s.State() == StateActive {
		o.endGame(ctx, s, "")
	}
}

// registeredHuman is one human side with a complete callback set.
type registeredHuman struct {
	id   model.PlayerID
	sink GameStartSink
}

// registeredHumans snapshots the start sinks of registered human
// sides. Caller holds s.mu.
func (o *Orchestrator) registeredHumans(s *Session) []registeredHuman {
	out := make([]registeredHuman, 0, 2)
	for _, id := range []model.PlayerID{s.p1, s.p2} {
		ps := s.players[id]
		if ps == nil || ps.IsBot {
			continue
		}
		if cbs := s.callbacks[id]; cbs.complete() {
			out = append(out, registeredHuman{id: id, sink: cbs.Start})
		}
	}
	return out
}

// notifyWithRetry runs fn up to attempts times, bounding each try
// with timeout and backing off between tries.
func notifyWithRetry(ctx context.Context, attempts int, timeout time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		done := make(chan error, 1)
		go func() { done <- fn() }()

		attemptTimer := time.NewTimer(timeout)
		select {
		case err = <-done:
			attemptTimer.Stop()
			if err == nil {
				return nil
			}
		case <-attemptTimer.C:
			err = context.DeadlineExceeded
		case <-ctx.Done():
			attemptTimer.Stop()
			return ctx.Err()
		}

		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 250 * time.Millisecond)
		}
	}
	return err
}
