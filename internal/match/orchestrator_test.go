package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/testutil"
	"github.com/keyduel/keyduel/internal/words"
)

// recSink records every delivery for one side.
type recSink struct {
	mu       sync.Mutex
	starts   []int64
	progress [][2]int
	ends     []model.MatchResult
}

func (r *recSink) GameStart(scheduledStartMs int64, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, scheduledStartMs)
	return nil
}

func (r *recSink) OpponentProgress(charIndex, wordIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, [2]int{charIndex, wordIndex})
	return nil
}

func (r *recSink) GameEnd(result model.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, result)
	return nil
}

func (r *recSink) callbacks() Callbacks {
	return Callbacks{Start: r, Progress: r, End: r}
}

func (r *recSink) lastEnd(t *testing.T) model.MatchResult {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.ends, "no GAME_END delivered")
	return r.ends[len(r.ends)-1]
}

func (r *recSink) progressCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.progress)
}

// fakeCoord records cleanup calls.
type fakeCoord struct {
	mu    sync.Mutex
	calls [][2]model.PlayerID
}

func (f *fakeCoord) CleanupAfterMatch(_ context.Context, p1, p2 model.PlayerID, _ model.Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]model.PlayerID{p1, p2})
}

type fixture struct {
	orch  *Orchestrator
	users *testutil.UserStore
	arch  *testutil.MatchStore
	audit *testutil.AuditSink
	lb    *testutil.Leaderboard
	coord *fakeCoord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users: testutil.NewUserStore(),
		arch:  testutil.NewMatchStore(),
		audit: testutil.NewAuditSink(),
		lb:    testutil.NewLeaderboard(),
		coord: &fakeCoord{},
	}
	f.orch = NewOrchestrator(Deps{
		Words:       words.NewSource(),
		Users:       f.users,
		Matches:     f.arch,
		Audit:       f.audit,
		Leaderboard: f.lb,
		Coordinator: f.coord,
	})
	t.Cleanup(f.orch.Close)

	f.users.Put(&model.Profile{ID: "a", DisplayName: "Ann", Elo: 1500, TotalMatches: 40})
	f.users.Put(&model.Profile{ID: "b", DisplayName: "Bob", Elo: 1500, TotalMatches: 40})
	return f
}

func pvpMatch(id string, mode model.Mode) *model.PendingMatch {
	return &model.PendingMatch{
		MatchID: id,
		Mode:    mode,
		Player1: &model.QueueEntry{PlayerID: "a", Elo: 1500, DisplayName: "Ann"},
		Player2: &model.QueueEntry{PlayerID: "b", Elo: 1500, DisplayName: "Bob"},
	}
}

// activate flips a session straight to active, bypassing the timed
// start path, with the clock already elapsed seconds in.
func activate(s *Session, elapsed time.Duration) {
	s.mu.Lock()
	s.state = StateActive
	s.startedAt = time.Now().Add(-elapsed)
	s.activeAt = time.Now().Add(-elapsed)
	s.mu.Unlock()
}

func TestCreateSessionIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w1, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)
	require.Len(t, w1, 50)

	w2, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)
	require.Equal(t, w1, w2, "repeated create returns the existing words")
}

func TestCreateSessionPlayerBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)

	_, err = f.orch.CreateSession(ctx, &model.PendingMatch{
		MatchID: "m2",
		Mode:    model.ModeRanked,
		Player1: &model.QueueEntry{PlayerID: "a"},
		Player2: &model.QueueEntry{PlayerID: "c"},
	})
	require.ErrorIs(t, err, ErrAlreadyInMatch)
}

func TestCreateSessionBotMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, &model.PendingMatch{
		MatchID: "m1",
		Mode:    model.ModeTraining,
		Player1: &model.QueueEntry{PlayerID: "a", Elo: 1500},
		IsBot:   true,
	})
	require.NoError(t, err)

	s := f.orch.session("m1")
	require.NotNil(t, s)
	require.True(t, s.IsBotMatch())
	require.Equal(t, model.PlayerID("bot:m1"), s.p2)

	// The synthetic player is never indexed as a live player.
	require.Nil(t, f.orch.sessionFor("bot:m1"))
}

func TestKeystrokeBeforeRegistrationIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)

	// Preparing and unregistered: silently accepted, nothing recorded.
	err = f.orch.HandleKeystroke(ctx, "a", model.Keystroke{Char: "x", TimestampMs: 1, CharIndex: 0})
	require.NoError(t, err)

	s := f.orch.session("m1")
	require.Zero(t, s.players["a"].CharsTyped)
}

func TestKeystrokeBeforeStartRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)
	require.NoError(t, f.orch.RegisterCallbacks("a", (&recSink{}).callbacks()))

	err = f.orch.HandleKeystroke(ctx, "a", model.Keystroke{Char: "x", TimestampMs: 1, CharIndex: 0})
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestKeystrokeFlowAndOpponentProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)

	sinkA, sinkB := &recSink{}, &recSink{}
	require.NoError(t, f.orch.RegisterCallbacks("a", sinkA.callbacks()))
	require.NoError(t, f.orch.RegisterCallbacks("b", sinkB.callbacks()))

	s := f.orch.session("m1")
	activate(s, 0)
	first := string(s.WordText[0])

	require.NoError(t, f.orch.HandleKeystroke(ctx, "a", model.Keystroke{Char: first, TimestampMs: 1000, CharIndex: 0}))
	require.Equal(t, 1, sinkB.progressCount(), "clean keystroke mirrors to the opponent")
	require.Zero(t, sinkA.progressCount())

	// Duplicate: success to the sender, invisible to the opponent.
	require.NoError(t, f.orch.HandleKeystroke(ctx, "a", model.Keystroke{Char: first, TimestampMs: 2000, CharIndex: 0}))
	require.Equal(t, 1, sinkB.progressCount())

	// Sub-floor gap.
	err = f.orch.HandleKeystroke(ctx, "a", model.Keystroke{Char: "x", TimestampMs: 1004, CharIndex: 1})
	require.ErrorIs(t, err, ErrInvalidLatency)

	require.ErrorIs(t, f.orch.HandleKeystroke(ctx, "ghost", model.Keystroke{}), ErrNoSession)
}

func TestWordCompleteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)
	require.NoError(t, f.orch.RegisterCallbacks("a", (&recSink{}).callbacks()))
	require.NoError(t, f.orch.RegisterCallbacks("b", (&recSink{}).callbacks()))

	require.ErrorIs(t, f.orch.HandleWordComplete(ctx, "a", 0), ErrNotStarted)

	s := f.orch.session("m1")
	activate(s, 0)

	require.ErrorIs(t, f.orch.HandleWordComplete(ctx, "a", 2), ErrBadWordIndex, "cannot skip ahead")
	require.ErrorIs(t, f.orch.HandleWordComplete(ctx, "a", -1), ErrBadWordIndex)

	require.NoError(t, f.orch.HandleWordComplete(ctx, "a", 0))
	require.Equal(t, 1, s.players["a"].WordsCompleted)

	// Re-announcing the same word does not regress the counter.
	require.NoError(t, f.orch.HandleWordComplete(ctx, "a", 0))
	require.Equal(t, 1, s.players["a"].WordsCompleted)
}

func TestSettleRankedPvP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)

	sinkA, sinkB := &recSink{}, &recSink{}
	require.NoError(t, f.orch.RegisterCallbacks("a", sinkA.callbacks()))
	require.NoError(t, f.orch.RegisterCallbacks("b", sinkB.callbacks()))

	s := f.orch.session("m1")
	activate(s, 30*time.Second)
	s.mu.Lock()
	s.players["a"].CharsTyped = 200
	s.players["a"].WordsCompleted = 35
	s.players["b"].CharsTyped = 120
	s.players["b"].Errors = 15
	s.players["b"].WordsCompleted = 20
	s.mu.Unlock()

	f.orch.endGame(ctx, s, "")

	resA := sinkA.lastEnd(t)
	resB := sinkB.lastEnd(t)

	require.Equal(t, model.OutcomeWin, resA.Outcome)
	require.Equal(t, model.OutcomeLoss, resB.Outcome)
	require.Positive(t, resA.EloChange)
	require.Negative(t, resB.EloChange)
	require.Equal(t, resA.EloBefore+resA.EloChange, resA.EloAfter)
	require.Equal(t, model.PlayerID("b"), resA.Opponent.PlayerID)
	require.Equal(t, model.OutcomeLoss, resA.Opponent.Outcome)

	// Winner coins: 300 base + 20% bronze bonus.
	require.Equal(t, 360, resA.Coins.Total)
	require.Equal(t, 60, resB.Coins.Total)

	profA, err := f.users.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 360, profA.Coins)
	require.Equal(t, 41, profA.TotalMatches)
	require.Equal(t, 1, profA.Wins)
	require.Equal(t, 1500+resA.EloChange, profA.Elo)

	// Leaderboard tracks the post-match rating.
	require.Equal(t, profA.Elo, f.lb.Scores["a"])

	rec, ok := f.arch.Get("m1")
	require.True(t, ok, "match archived")
	require.Equal(t, model.PlayerID("a"), rec.Winner)
	require.Empty(t, rec.ForfeitBy)

	require.Equal(t, [][2]model.PlayerID{{"a", "b"}}, f.coord.calls)
	require.Nil(t, f.orch.sessionFor("a"), "session removed after settlement")

	// Settlement is one-shot.
	coinsBefore := profA.Coins
	f.orch.endGame(ctx, s, "")
	profA, _ = f.users.Get(ctx, "a")
	require.Equal(t, coinsBefore, profA.Coins, "second settlement must not double-pay")
}

func TestSettleTrainingSkipsRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeTraining))
	require.NoError(t, err)

	sinkA, sinkB := &recSink{}, &recSink{}
	require.NoError(t, f.orch.RegisterCallbacks("a", sinkA.callbacks()))
	require.NoError(t, f.orch.RegisterCallbacks("b", sinkB.callbacks()))

	s := f.orch.session("m1")
	activate(s, 30*time.Second)
	s.mu.Lock()
	s.players["a"].CharsTyped = 150
	s.players["a"].WordsCompleted = 25
	s.players["b"].CharsTyped = 90
	s.players["b"].WordsCompleted = 15
	s.mu.Unlock()

	f.orch.endGame(ctx, s, "")

	resA := sinkA.lastEnd(t)
	require.Equal(t, model.OutcomeWin, resA.Outcome)
	require.Zero(t, resA.EloChange, "training never moves rating")

	profA, err := f.users.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1500, profA.Elo)
	require.Equal(t, 40, profA.TotalMatches, "training matches stay out of ranked stats")
	require.Equal(t, 360, profA.Coins, "coins are paid in every mode")
}

func TestForfeitRankedPvP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, pvpMatch("m1", model.ModeRanked))
	require.NoError(t, err)

	sinkA, sinkB := &recSink{}, &recSink{}
	require.NoError(t, f.orch.RegisterCallbacks("a", sinkA.callbacks()))
	require.NoError(t, f.orch.RegisterCallbacks("b", sinkB.callbacks()))

	s := f.orch.session("m1")
	activate(s, 10*time.Second)

	f.orch.Forfeit(ctx, "a")

	resB := sinkB.lastEnd(t)
	require.Equal(t, model.OutcomeWin, resB.Outcome)
	require.Equal(t, 10, resB.EloChange)

	rec, ok := f.arch.Get("m1")
	require.True(t, ok)
	require.Equal(t, model.PlayerID("a"), rec.ForfeitBy)
	require.Equal(t, model.PlayerID("b"), rec.Winner)

	profA, err := f.users.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1490, profA.Elo)
}

func TestForfeitUnknownPlayerNoop(t *testing.T) {
	f := newFixture(t)
	f.orch.Forfeit(context.Background(), "nobody")
	require.Empty(t, f.coord.calls)
}

func TestSettleBotMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.CreateSession(ctx, &model.PendingMatch{
		MatchID: "m1",
		Mode:    model.ModeRanked,
		Player1: &model.QueueEntry{PlayerID: "a", Elo: 1500},
		IsBot:   true,
	})
	require.NoError(t, err)

	sinkA := &recSink{}
	require.NoError(t, f.orch.RegisterCallbacks("a", sinkA.callbacks()))

	s := f.orch.session("m1")
	activate(s, 30*time.Second)
	s.mu.Lock()
	s.players["a"].CharsTyped = 150
	s.players["a"].WordsCompleted = 25
	s.mu.Unlock()

	f.orch.endGame(ctx, s, "")

	resA := sinkA.lastEnd(t)
	require.Equal(t, model.OutcomeWin, resA.Outcome)
	require.True(t, resA.Opponent.IsBot)
	require.Positive(t, resA.EloChange)

	// Bot cleanup passes an empty second id.
	require.Equal(t, [][2]model.PlayerID{{"a", ""}}, f.coord.calls)

	rec, ok := f.arch.Get("m1")
	require.True(t, ok)
	require.True(t, rec.IsBot)
}
