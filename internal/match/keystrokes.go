package match

import (
	"context"
	"log/slog"

	"github.com/keyduel/keyduel/internal/anticheat"
	"github.com/keyduel/keyduel/internal/model"
)

// HandleKeystroke routes one inbound keystroke to the sender's
// session. A nil return means the client sees success; duplicates
// return nil without mutating anything.
func (o *Orchestrator) HandleKeystroke(ctx context.Context, id model.PlayerID, k model.Keystroke) error {
	s := o.sessionFor(id)
	if s == nil {
		return ErrNoSession
	}

	s.mu.Lock()

	// Lazy preparing -> waiting transition: typing proves the client
	// is alive, but only once its own callbacks are in place.
	if s.state == StatePreparing {
		if !s.registered(id) {
			s.mu.Unlock()
			return nil // silently ignored
		}
		s.state = StateWaiting
	}

	if s.state == StateWaiting {
		// The synchronized start has not elapsed; nobody types early,
		// whatever their local clock says.
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrMatchFinished
	}

	ps := s.player(id)
	if ps == nil {
		s.mu.Unlock()
		return ErrUnknownPlayer
	}

	outcome := anticheat.ProcessKeystroke(ps, s.WordText, k)

	var progressSink ProgressSink
	var charIndex, wordIndex int
	if outcome.Verdict == anticheat.VerdictAccepted && outcome.Clean {
		opp := s.opponentID(id)
		if oppState := s.player(opp); oppState != nil && !oppState.IsBot {
			progressSink = s.callbacks[opp].Progress
		}
		charIndex = ps.CurrentCharIndex
		wordIndex = ps.CurrentWordIndex
	}
	s.mu.Unlock()

	if outcome.Verdict == anticheat.VerdictRejectedLatency {
		return ErrInvalidLatency
	}

	// Propagation happens outside the session lock; a slow opponent
	// socket must not stall the typist.
	if progressSink != nil {
		if err := progressSink.OpponentProgress(charIndex, wordIndex); err != nil {
			slog.Debug("opponent progress delivery failed",
				"match", s.MatchID, "from", id, "error", err)
		}
	}
	return nil
}

// HandleWordComplete advances the sender's word counter. Completing
// the final word settles the match immediately.
func (o *Orchestrator) HandleWordComplete(ctx context.Context, id model.PlayerID, wordIndex int) error {
	s := o.sessionFor(id)
	if s == nil {
		return ErrNoSession
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		if s.State() == StateFinished {
			return ErrMatchFinished
		}
		return ErrNotStarted
	}

	ps := s.player(id)
	if ps == nil {
		s.mu.Unlock()
		return ErrUnknownPlayer
	}

	// Monotonic, no skipping: a client may re-announce the current
	// word but can only ever advance one word at a time.
	if wordIndex < 0 || wordIndex >= len(s.Words) || wordIndex > ps.WordsCompleted {
		s.mu.Unlock()
		return ErrBadWordIndex
	}

	ps.WordsCompleted = wordIndex + 1
	ps.CurrentWordIndex = ps.WordsCompleted
	finishedAll := ps.WordsCompleted == len(s.Words)
	s.mu.Unlock()

	if finishedAll {
		slog.Info("player finished all words early", "match", s.MatchID, "player", id)
		o.endGame(ctx, s, "")
	}
	return nil
}
