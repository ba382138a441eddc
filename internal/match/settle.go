package match

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keyduel/keyduel/internal/anticheat"
	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
	"github.com/keyduel/keyduel/internal/rating"
	"github.com/keyduel/keyduel/internal/store"
)

// Forfeit terminates the session a player belongs to, attributing the
// loss to that player. Used for disconnects and explicit cancels.
// No-op when the player has no live session.
func (o *Orchestrator) Forfeit(ctx context.Context, id model.PlayerID) {
	s := o.sessionFor(id)
	if s == nil {
		return
	}
	o.forfeit(ctx, s, id)
}

// EndGame settles a match by id. Exposed for the duration timer path
// and tests; idempotent.
func (o *Orchestrator) EndGame(ctx context.Context, matchID string) {
	if s := o.session(matchID); s != nil {
		o.endGame(ctx, s, "")
	}
}

func (o *Orchestrator) endGame(ctx context.Context, s *Session, forfeitBy model.PlayerID) {
	o.settle(ctx, s, forfeitBy, false)
}

func (o *Orchestrator) forfeit(ctx context.Context, s *Session, loser model.PlayerID) {
	o.settle(ctx, s, loser, false)
}

func (o *Orchestrator) forfeitBoth(ctx context.Context, s *Session) {
	o.settle(ctx, s, "", true)
}

// sideView is the settlement-time snapshot of one participant.
type sideView struct {
	state   *model.PlayerState
	profile *model.Profile // nil for bots and on store failure
	outcome model.Outcome
	delta   int
	before  int
	coins   model.CoinBreakdown
	end     EndSink
}

// settle runs the full settlement sequence exactly once per session.
// Every external step is attempted individually: one failing store
// call never skips the rest, and every failure lands in the audit
// sink.
func (o *Orchestrator) settle(ctx context.Context, s *Session, forfeitBy model.PlayerID, bothForfeit bool) {
	// Settlement must finish even when triggered by a dying
	// connection's context.
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.state == StateFinished {
		s.mu.Unlock()
		return
	}
	s.state = StateFinished
	s.endedAt = o.now()
	s.forfeitBy = forfeitBy

	elapsed := 0.0
	if !s.activeAt.IsZero() {
		elapsed = s.endedAt.Sub(s.activeAt).Seconds()
	}

	// Freeze the bot and fold its tally into its player state so both
	// sides are scored by the same formula.
	if s.bot != nil {
		s.bot.Stop()
		bs := s.bot.Stats()
		bp := s.players[s.botID]
		bp.CharsTyped = bs.CharsTyped
		bp.Errors = bs.Errors
		bp.WordsCompleted = bs.WordsCompleted
	}

	for _, ps := range s.players {
		anticheat.ComputeStats(ps, elapsed)
	}

	p1 := s.players[s.p1]
	p2 := s.players[s.p2]
	ends := map[model.PlayerID]EndSink{
		s.p1: s.callbacks[s.p1].End,
		s.p2: s.callbacks[s.p2].End,
	}
	startedAt := s.startedAt
	if startedAt.IsZero() {
		startedAt = s.CreatedAt
	}
	endedAt := s.endedAt
	s.mu.Unlock()

	slog.Info("settling match",
		"match", s.MatchID, "mode", s.Mode,
		"forfeit_by", forfeitBy, "both_forfeit", bothForfeit,
		"p1_score", p1.Score, "p2_score", p2.Score)

	// Observational anti-cheat flags go to audit before anything can
	// fail; they never change the outcome.
	for _, ps := range []*model.PlayerState{p1, p2} {
		if ps.IsBot {
			continue
		}
		for _, f := range anticheat.InspectPlayer(ps, elapsed) {
			o.audit.Log(ctx, auditEvent(s.MatchID, f.PlayerID, f.Kind, f.Detail))
		}
	}

	sides := o.resolveOutcomes(ctx, s, p1, p2, forfeitBy, bothForfeit)
	o.resolveCoins(ctx, s, sides)

	// Steps 7-12 of the settlement sequence, each isolated.
	for _, sv := range sides {
		if sv.state.IsBot || sv.profile == nil {
			continue
		}
		o.runStep(ctx, s.MatchID, "credit_coins", func() error {
			return o.users.AddCoins(ctx, sv.state.PlayerID, sv.coins.Total)
		})
	}

	if s.Mode == model.ModeRanked {
		for _, sv := range sides {
			if sv.state.IsBot || sv.profile == nil {
				continue
			}
			o.runStep(ctx, s.MatchID, "update_stats", func() error {
				return o.users.UpdateStats(ctx, sv.state.PlayerID, statsPatch(sv))
			})
			o.runStep(ctx, s.MatchID, "leaderboard_update", func() error {
				return o.lb.SetScore(ctx, sv.state.PlayerID, sv.before+sv.delta)
			})
		}
	}

	o.deliverResults(ctx, s, sides, ends)

	o.runStep(ctx, s.MatchID, "archive", func() error {
		return o.matches.Insert(ctx, buildRecord(s, p1, p2, startedAt, endedAt, sides, forfeitBy))
	})

	o.coord.CleanupAfterMatch(ctx, p1.PlayerID, humanID(p2), s.Mode)

	pub1, pub2 := o.publicProfiles(s)
	o.events.PublicMatchEnded(pub1, pub2, s.Mode, winnerOf(sides))

	s.mu.Lock()
	s.clearCallbacks()
	s.mu.Unlock()
	o.removeSession(s)

	slog.Info("match settled", "match", s.MatchID)
}

// resolveOutcomes determines win/loss/tie and the rating deltas for
// both sides, honoring forfeit rules.
func (o *Orchestrator) resolveOutcomes(ctx context.Context, s *Session, p1, p2 *model.PlayerState, forfeitBy model.PlayerID, bothForfeit bool) []*sideView {
	sv1 := &sideView{state: p1, before: p1.Elo}
	sv2 := &sideView{state: p2, before: p2.Elo}

	// Fresh profiles give authoritative Elo and match counts for the
	// modifier pipeline.
	for _, sv := range []*sideView{sv1, sv2} {
		if sv.state.IsBot {
			continue
		}
		prof, err := o.users.Get(ctx, sv.state.PlayerID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				o.audit.Log(ctx, auditEvent(s.MatchID, sv.state.PlayerID, "profile_read_failed", err.Error()))
			}
			continue
		}
		sv.profile = prof
		sv.before = prof.Elo
	}

	switch {
	case bothForfeit:
		sv1.outcome, sv2.outcome = model.OutcomeTie, model.OutcomeTie

	case forfeitBy != "":
		winner, loser := sv2, sv1
		if forfeitBy == p2.PlayerID {
			winner, loser = sv1, sv2
		}
		loser.outcome = model.OutcomeLoss
		winner.outcome = model.OutcomeWin
		if s.Mode == model.ModeRanked && !s.IsBotMatch() {
			winner.delta = constants.ForfeitEloSwing
			loser.delta = -constants.ForfeitEloSwing
			if loser.before+loser.delta < 0 {
				loser.delta = -loser.before
			}
		}

	default:
		d := rating.ComputeDeltas(s.Mode, participant(sv1), participant(sv2))
		sv1.outcome, sv2.outcome = d.OutcomeA, d.OutcomeB
		sv1.delta, sv2.delta = d.A, d.B
	}

	return []*sideView{sv1, sv2}
}

func participant(sv *sideView) rating.Participant {
	p := rating.Participant{
		Elo:          sv.before,
		IsBot:        sv.state.IsBot,
		Score:        sv.state.Score,
		TotalMatches: constants.PlacementGames, // no placement bonus without a profile
	}
	if sv.profile != nil {
		p.TotalMatches = sv.profile.TotalMatches
	}
	return p
}

// resolveCoins computes the coin breakdown for each human side.
func (o *Orchestrator) resolveCoins(ctx context.Context, s *Session, sides []*sideView) {
	for _, sv := range sides {
		if sv.state.IsBot {
			continue
		}

		lbRate := 0.0
		bonus, err := o.lb.BonusFor(ctx, sv.state.PlayerID)
		if err != nil {
			o.audit.Log(ctx, auditEvent(s.MatchID, sv.state.PlayerID, "leaderboard_query_failed", err.Error()))
		} else {
			lbRate = bonus.Rate
		}

		sv.coins = rating.CoinReward(sv.outcome, model.RankFromElo(sv.before), lbRate)
	}
}

// deliverResults sends each human side its MatchResult with bounded
// retries, concurrently.
func (o *Orchestrator) deliverResults(ctx context.Context, s *Session, sides []*sideView, ends map[model.PlayerID]EndSink) {
	var g errgroup.Group
	for i, sv := range sides {
		if sv.state.IsBot {
			continue
		}
		sink := ends[sv.state.PlayerID]
		if sink == nil {
			continue
		}
		result := buildResult(s, sv, sides[1-i])
		id := sv.state.PlayerID
		g.Go(func() error {
			err := notifyWithRetry(ctx, constants.NotifyAttempts, constants.GameEndSendWait, func() error {
				return sink.GameEnd(result)
			})
			if err != nil {
				o.audit.Log(ctx, auditEvent(s.MatchID, id, "game_end_delivery_failed", err.Error()))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// buildResult composes the per-recipient settlement payload.
func buildResult(s *Session, self, opp *sideView) model.MatchResult {
	return model.MatchResult{
		MatchID:   s.MatchID,
		Mode:      s.Mode,
		Outcome:   self.outcome,
		WPM:       self.state.WPM,
		Accuracy:  self.state.Accuracy,
		Score:     self.state.Score,
		EloBefore: self.before,
		EloAfter:  self.before + self.delta,
		EloChange: self.delta,
		Coins:     self.coins,
		Opponent: model.OpponentSummary{
			PlayerID:    opp.state.PlayerID,
			DisplayName: opp.state.DisplayName,
			PhotoRef:    opp.state.PhotoRef,
			IsBot:       opp.state.IsBot,
			Rank:        model.RankFromElo(opp.before).String(),
			WPM:         opp.state.WPM,
			Accuracy:    opp.state.Accuracy,
			Score:       opp.state.Score,
			Outcome:     opp.outcome,
		},
	}
}

// statsPatch converts a settled side into the persistent update.
func statsPatch(sv *sideView) model.StatsPatch {
	after := sv.before + sv.delta
	patch := model.StatsPatch{
		EloDelta: sv.delta,
		Won:      sv.outcome == model.OutcomeWin,
		Lost:     sv.outcome == model.OutcomeLoss,
		WPM:      sv.state.WPM,
		Accuracy: sv.state.Accuracy,
		PeakElo:  after,
		BestWPM:  sv.state.WPM,
	}

	// Crossing a rank boundary swaps the equipped rank background in
	// the same atomic update.
	if model.RankFromElo(sv.before) != model.RankFromElo(after) {
		patch.RankBGSet = true
		patch.RankBG = "bg_" + strings.ToLower(model.RankFromElo(after).String())
	}
	return patch
}

func buildRecord(s *Session, p1, p2 *model.PlayerState, startedAt, endedAt time.Time, sides []*sideView, forfeitBy model.PlayerID) model.MatchRecord {
	return model.MatchRecord{
		MatchID:    s.MatchID,
		Mode:       s.Mode,
		Player1:    p1.PlayerID,
		Player2:    p2.PlayerID,
		IsBot:      s.IsBotMatch(),
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		P1WPM:      p1.WPM,
		P1Accuracy: p1.Accuracy,
		P1Score:    p1.Score,
		P2WPM:      p2.WPM,
		P2Accuracy: p2.Accuracy,
		P2Score:    p2.Score,
		Winner:     winnerOf(sides),
		ForfeitBy:  forfeitBy,
	}
}

func winnerOf(sides []*sideView) model.PlayerID {
	for _, sv := range sides {
		if sv.outcome == model.OutcomeWin {
			return sv.state.PlayerID
		}
	}
	return ""
}

// humanID returns the id for cleanup purposes; bots have no matched
// flag to clear.
func humanID(ps *model.PlayerState) model.PlayerID {
	if ps.IsBot {
		return ""
	}
	return ps.PlayerID
}

// runStep executes one settlement step, auditing (never propagating)
// its failure.
func (o *Orchestrator) runStep(ctx context.Context, matchID, name string, fn func() error) {
	if err := fn(); err != nil {
		slog.Error("settlement step failed", "match", matchID, "step", name, "error", err)
		o.audit.Log(ctx, auditEvent(matchID, "", "settlement_"+name+"_failed", err.Error()))
	}
}

// publicProfiles builds the lobby-broadcast views of both sides.
func (o *Orchestrator) publicProfiles(s *Session) (model.OpponentProfile, model.OpponentProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return profileOf(s.players[s.p1]), profileOf(s.players[s.p2])
}

func profileOf(ps *model.PlayerState) model.OpponentProfile {
	return model.OpponentProfile{
		PlayerID:    ps.PlayerID,
		DisplayName: ps.DisplayName,
		PhotoRef:    ps.PhotoRef,
		Elo:         ps.Elo,
		Rank:        ps.Rank.String(),
		IsBot:       ps.IsBot,
		Cursor:      ps.Cursor,
		Effect:      ps.Effect,
	}
}

func auditEvent(matchID string, player model.PlayerID, kind, detail string) store.AuditEvent {
	return store.AuditEvent{
		MatchID:  matchID,
		PlayerID: player,
		Kind:     kind,
		Detail:   detail,
		At:       time.Now(),
	}
}
