// Package match owns every match session from creation to cleanup:
// the state machine, the synchronized start, keystroke routing,
// settlement, and forfeit handling.
package match

import (
	"sync"
	"time"

	"github.com/keyduel/keyduel/internal/bot"
	"github.com/keyduel/keyduel/internal/model"
)

// State is the session lifecycle phase. Transitions are monotonic;
// StateFinished is absorbing.
type State int

const (
	StatePreparing State = iota
	StateWaiting
	StateActive
	StateFinished
)

func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// GameStartSink receives the synchronized-start announcement.
type GameStartSink interface {
	GameStart(scheduledStartMs int64, duration time.Duration) error
}

// ProgressSink receives opponent-progress updates.
type ProgressSink interface {
	OpponentProgress(charIndex, wordIndex int) error
}

// EndSink receives the final match result.
type EndSink interface {
	GameEnd(result model.MatchResult) error
}

// Callbacks is one side's full set of session sinks. A side counts
// as registered only when all three are present.
type Callbacks struct {
	Start    GameStartSink
	Progress ProgressSink
	End      EndSink
}

func (c Callbacks) complete() bool {
	return c.Start != nil && c.Progress != nil && c.End != nil
}

// Session is one match from pairing acknowledgement to cleanup. All
// mutable state is guarded by mu; the orchestrator is the single
// writer.
type Session struct {
	MatchID   string
	Mode      model.Mode
	Words     []string
	WordText  string
	Duration  time.Duration
	CreatedAt time.Time

	mu             sync.Mutex
	state          State
	startedAt      time.Time // set when Start commits to a schedule
	scheduledStart time.Time // the instant both clients begin typing
	activeAt       time.Time // state became active; basis for WPM elapsed
	endedAt        time.Time
	forfeitBy      model.PlayerID

	p1, p2  model.PlayerID // p2 is the synthetic bot id for bot matches
	players map[model.PlayerID]*model.PlayerState

	bot   *bot.Simulator
	botID model.PlayerID

	callbacks map[model.PlayerID]Callbacks

	// One-shot guards.
	startInProgress bool
	timerStarted    bool
	botStarted      bool
}

// player returns the state for id, nil when id is not a participant.
func (s *Session) player(id model.PlayerID) *model.PlayerState {
	return s.players[id]
}

// opponentID returns the other participant.
func (s *Session) opponentID(id model.PlayerID) model.PlayerID {
	if id == s.p1 {
		return s.p2
	}
	return s.p1
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsBotMatch reports whether the opponent is synthetic.
func (s *Session) IsBotMatch() bool {
	return s.bot != nil
}

// RegisterCallbacks installs one side's sinks. Keystrokes arriving in
// the preparing phase count only after the sender has registered.
func (s *Session) RegisterCallbacks(id model.PlayerID, cbs Callbacks) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[id]; !ok {
		return false
	}
	s.callbacks[id] = cbs
	return true
}

// registered reports whether the side has a complete callback set.
// Caller holds s.mu.
func (s *Session) registered(id model.PlayerID) bool {
	return s.callbacks[id].complete()
}

// clearCallbacks drops every sink reference so nothing leaks after
// settlement. Caller holds s.mu.
func (s *Session) clearCallbacks() {
	s.callbacks = make(map[model.PlayerID]Callbacks)
}
