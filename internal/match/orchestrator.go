package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/keyduel/keyduel/internal/bot"
	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/store"
	"github.com/keyduel/keyduel/internal/words"
)

// Coordinator is the orchestrator's view back into matchmaking.
type Coordinator interface {
	CleanupAfterMatch(ctx context.Context, p1, p2 model.PlayerID, mode model.Mode)
}

// Broadcaster publishes lobby-wide match events. Implementations must
// not block for long; the hub fans out on its own goroutines.
type Broadcaster interface {
	PublicMatchStarted(p1, p2 model.OpponentProfile, mode model.Mode)
	PublicMatchEnded(p1, p2 model.OpponentProfile, mode model.Mode, winner model.PlayerID)
}

// NopBroadcaster discards lobby events. Used in tests.
type NopBroadcaster struct{}

func (NopBroadcaster) PublicMatchStarted(_, _ model.OpponentProfile, _ model.Mode) {}
func (NopBroadcaster) PublicMatchEnded(_, _ model.OpponentProfile, _ model.Mode, _ model.PlayerID) {
}

// Orchestrator owns every live session on this replica. It is the
// single authoritative writer for session state.
type Orchestrator struct {
	words   *words.Source
	users   store.UserStore
	matches store.MatchStore
	audit   store.AuditSink
	lb      store.LeaderboardQuery
	coord   Coordinator
	events  Broadcaster

	now func() time.Time

	mu       sync.Mutex // serializes session creation and index access
	byMatch  map[string]*Session
	byPlayer map[model.PlayerID]*Session

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Words       *words.Source
	Users       store.UserStore
	Matches     store.MatchStore
	Audit       store.AuditSink
	Leaderboard store.LeaderboardQuery
	Coordinator Coordinator
	Broadcaster Broadcaster
}

// NewOrchestrator builds an Orchestrator. A nil Broadcaster is
// replaced with a no-op.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Broadcaster == nil {
		deps.Broadcaster = NopBroadcaster{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		words:    deps.Words,
		users:    deps.Users,
		matches:  deps.Matches,
		audit:    deps.Audit,
		lb:       deps.Leaderboard,
		coord:    deps.Coordinator,
		events:   deps.Broadcaster,
		now:      time.Now,
		byMatch:  make(map[string]*Session),
		byPlayer: make(map[model.PlayerID]*Session),
		rootCtx:  ctx,
		cancel:   cancel,
	}
}

// Close cancels every background task (start schedulers, duration
// timers, bot runs) and waits for them.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// maxKeystrokes bounds the per-player keystroke log: match duration
// at the maximum sane typing rate.
func maxKeystrokes(duration time.Duration) int {
	return int(duration.Minutes()*constants.MaxSaneWPM*5) + 64
}

// CreateSession builds the session for a pending match. Idempotent on
// MatchID: a repeated call returns the existing session's words.
func (o *Orchestrator) CreateSession(ctx context.Context, pm *model.PendingMatch) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if existing, ok := o.byMatch[pm.MatchID]; ok {
		return existing.Words, nil
	}
	if _, busy := o.byPlayer[pm.Player1.PlayerID]; busy {
		return nil, fmt.Errorf("creating session %s: %w", pm.MatchID, ErrAlreadyInMatch)
	}
	if pm.Player2 != nil {
		if _, busy := o.byPlayer[pm.Player2.PlayerID]; busy {
			return nil, fmt.Errorf("creating session %s: %w", pm.MatchID, ErrAlreadyInMatch)
		}
	}

	wordList := o.words.Generate(constants.WordsPerMatch)
	text := words.Join(wordList)
	logCap := maxKeystrokes(constants.MatchDuration)

	s := &Session{
		MatchID:   pm.MatchID,
		Mode:      pm.Mode,
		Words:     wordList,
		WordText:  text,
		Duration:  constants.MatchDuration,
		CreatedAt: o.now(),
		state:     StatePreparing,
		players:   make(map[model.PlayerID]*model.PlayerState, 2),
		callbacks: make(map[model.PlayerID]Callbacks),
	}

	e1 := pm.Player1
	p1 := model.NewPlayerState(e1.PlayerID, e1.DisplayName, e1.Elo, false, logCap)
	p1.PhotoRef = e1.PhotoRef
	p1.Cursor = e1.Cursor
	p1.Effect = e1.Effect
	s.p1 = e1.PlayerID
	s.players[e1.PlayerID] = p1

	if pm.IsBot || pm.Player2 == nil {
		botID := model.PlayerID("bot:" + pm.MatchID)
		bp := model.NewPlayerState(botID, "Challenger", e1.Elo, true, 0)
		s.p2 = botID
		s.botID = botID
		s.players[botID] = bp

		avgWPM := o.lookupAvgWPM(ctx, e1.PlayerID)
		cfg := bot.DeriveConfig(e1.Elo, avgWPM, newRand())
		s.bot = bot.New(wordList, cfg, newRand())
	} else {
		e2 := pm.Player2
		p2 := model.NewPlayerState(e2.PlayerID, e2.DisplayName, e2.Elo, false, logCap)
		p2.PhotoRef = e2.PhotoRef
		p2.Cursor = e2.Cursor
		p2.Effect = e2.Effect
		s.p2 = e2.PlayerID
		s.players[e2.PlayerID] = p2
	}

	o.byMatch[pm.MatchID] = s
	for id, ps := range s.players {
		if !ps.IsBot {
			o.byPlayer[id] = s
		}
	}

	slog.Info("session created",
		"match", pm.MatchID, "mode", pm.Mode, "bot", s.IsBotMatch(),
		"p1", s.p1, "p2", s.p2)
	return wordList, nil
}

// lookupAvgWPM fetches the player's running average for bot scaling.
// Zero when the profile is missing or the store is down; the bot then
// falls back to tier defaults.
func (o *Orchestrator) lookupAvgWPM(ctx context.Context, id model.PlayerID) float64 {
	prof, err := o.users.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("avg wpm lookup failed", "player", id, "error", err)
		}
		return 0
	}
	return prof.AvgWPM
}

// RegisterCallbacks installs one side's sinks on its session.
func (o *Orchestrator) RegisterCallbacks(id model.PlayerID, cbs Callbacks) error {
	s := o.sessionFor(id)
	if s == nil {
		return ErrNoSession
	}
	if !s.RegisterCallbacks(id, cbs) {
		return ErrUnknownPlayer
	}
	return nil
}

// sessionFor returns the live session a player belongs to, nil if
// none.
func (o *Orchestrator) sessionFor(id model.PlayerID) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.byPlayer[id]
}

// session returns a session by match id.
func (o *Orchestrator) session(matchID string) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.byMatch[matchID]
}

// removeSession drops the session from every index.
func (o *Orchestrator) removeSession(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.byMatch, s.MatchID)
	for id, cur := range o.byPlayer {
		if cur == s {
			delete(o.byPlayer, id)
		}
	}
}

// spawn runs fn on a tracked goroutine tied to the orchestrator's
// lifetime.
func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(o.rootCtx)
	}()
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
