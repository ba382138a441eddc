package rating

import (
	"math"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
)

// Participant is the rating-relevant view of one match side.
type Participant struct {
	Elo          int
	Deviation    float64 // 0 means DefaultDeviation
	Volatility   float64 // 0 means DefaultVolatility
	TotalMatches int
	IsBot        bool
	Score        float64
}

// Deltas is the outcome of the rating pipeline for both sides.
type Deltas struct {
	A, B               int
	OutcomeA, OutcomeB model.Outcome
}

// Outcomes derives win/loss/tie for both sides from score comparison.
func Outcomes(scoreA, scoreB float64) (model.Outcome, model.Outcome) {
	switch {
	case scoreA > scoreB:
		return model.OutcomeWin, model.OutcomeLoss
	case scoreA < scoreB:
		return model.OutcomeLoss, model.OutcomeWin
	default:
		return model.OutcomeTie, model.OutcomeTie
	}
}

// ComputeDeltas runs one Glicko-2 update per side and applies the
// ladder modifier pipeline. Training and friends matches skip the
// whole pipeline: both deltas are zero.
func ComputeDeltas(mode model.Mode, a, b Participant) Deltas {
	outA, outB := Outcomes(a.Score, b.Score)
	d := Deltas{OutcomeA: outA, OutcomeB: outB}
	if mode != model.ModeRanked {
		return d
	}

	rawA := rawDelta(a, b, outcomeScore(outA))
	rawB := rawDelta(b, a, outcomeScore(outB))

	gap := math.Abs(a.Score - b.Score)
	d.A = applyModifiers(a, b, rawA, outA, gap)
	d.B = applyModifiers(b, a, rawB, outB, gap)
	return d
}

func outcomeScore(o model.Outcome) float64 {
	switch o {
	case model.OutcomeWin:
		return 1.0
	case model.OutcomeTie:
		return 0.5
	default:
		return 0.0
	}
}

// rawDelta is the unmodified Glicko-2 Elo change for p against opp.
func rawDelta(p, opp Participant, score float64) float64 {
	rd := p.Deviation
	if rd <= 0 {
		rd = DefaultDeviation
	}
	sigma := p.Volatility
	if sigma <= 0 {
		sigma = DefaultVolatility
	}
	oppRD := opp.Deviation
	if oppRD <= 0 {
		oppRD = DefaultDeviation
	}

	newElo, _, _ := glicko2Update(float64(p.Elo), rd, sigma, float64(opp.Elo), oppRD, score)
	return newElo - float64(p.Elo)
}

// applyModifiers runs the seven-step modifier pipeline, in order, on
// the raw delta of player p whose opponent was opp.
func applyModifiers(p, opp Participant, delta float64, outcome model.Outcome, scoreGap float64) int {
	// 1. Placement bonus: amplified swings for the first ten matches.
	if p.TotalMatches < constants.PlacementGames {
		delta *= 2.5
	}

	// 2. Stomp bonus: the dominant winner gains extra.
	if scoreGap > constants.StompScoreGap && delta > 0 {
		delta *= 1.5
	}

	// 3. Bot-match dampener.
	if p.IsBot {
		return 0
	}
	if opp.IsBot {
		winMult, lossMult := 0.7, 0.8
		if p.Elo > model.PlatinumMinElo {
			// High-rated players cannot farm bots, and losing to one
			// hurts double.
			lossMult *= 2
			winMult = 0.5
		}
		if outcome == model.OutcomeWin {
			delta *= winMult
		} else if outcome == model.OutcomeLoss {
			delta *= lossMult
		}
	}

	// 4. High-rank soft cap.
	if p.Elo > constants.SoftCapElo && delta > 0 {
		delta *= 0.75
	}

	// 5. Unranked protection: sub-1000 players never lose rating.
	if p.Elo < constants.UnrankedMaxElo && delta < 0 {
		delta = 0
	}

	// 6. Hard cap.
	if delta > constants.EloHardCap {
		delta = constants.EloHardCap
	} else if delta < -constants.EloHardCap {
		delta = -constants.EloHardCap
	}

	// 7. Elo floor.
	out := int(math.Round(delta))
	if p.Elo+out < 0 {
		out = -p.Elo
	}
	return out
}
