package bot

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Progress is one clean-character advance reported to the opponent.
type Progress struct {
	CharIndex int
	WordIndex int
}

// Stats is the bot's race tally, scored with the same formula as a
// human at settlement.
type Stats struct {
	CharsTyped     int
	Errors         int
	WordsCompleted int
}

// Simulator executes a planned action sequence against the wall
// clock. Run is single-use; Stop is idempotent and safe from any
// goroutine.
type Simulator struct {
	plan []Action

	mu    sync.Mutex
	stats Stats

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New plans a full race over words with the given behavior profile.
func New(words []string, cfg Config, rng *rand.Rand) *Simulator {
	return &Simulator{
		plan:   Plan(words, cfg, rng),
		stopCh: make(chan struct{}),
	}
}

// Run drains the action plan, sleeping each action's delay, until the
// plan is exhausted, duration elapses, Stop is called, or ctx is
// cancelled. onProgress fires only for cleanly typed characters.
func (s *Simulator) Run(ctx context.Context, duration time.Duration, onProgress func(Progress)) {
	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for _, act := range s.plan {
		if act.Delay > 0 {
			timer.Reset(act.Delay)
			select {
			case <-timer.C:
			case <-deadline.C:
				return
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		switch act.Kind {
		case ActionPress:
			s.mu.Lock()
			s.stats.CharsTyped++
			if !act.Clean {
				s.stats.Errors++
			}
			if act.WordComplete {
				s.stats.WordsCompleted = act.WordIndex + 1
			}
			s.mu.Unlock()

			if act.Clean && onProgress != nil {
				onProgress(Progress{CharIndex: act.CharIndex + 1, WordIndex: act.WordIndex})
			}
		case ActionBackspace, ActionWait:
			// No externally visible effect.
		}
	}

	slog.Debug("bot finished word list early")
}

// Stop aborts the run loop. Safe to call more than once.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Stats returns a snapshot of the bot's tally.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
