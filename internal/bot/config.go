// Package bot drives a synthetic typing opponent scaled to the human
// player's skill. A pure planner produces the action sequence; the
// simulator executes it in real time.
package bot

import (
	"math/rand/v2"

	"github.com/keyduel/keyduel/internal/model"
)

// Config is the derived behavior profile for one bot instance.
type Config struct {
	TargetWPM       float64
	Accuracy        float64 // probability a character is typed correctly
	Variance        float64 // timing jitter as a fraction of base delay
	BurstProb       float64 // chance to sprint through a short word
	CorrectionSpeed float64 // divides typo recovery delay
}

const (
	maxBurstProb       = 0.85
	maxCorrectionSpeed = 1.6
)

// tierWPM is the fallback target when the player has no recorded
// average.
func tierWPM(rank model.Rank) float64 {
	switch rank {
	case model.RankBronze:
		return 45
	case model.RankGold:
		return 65
	case model.RankPlatinum:
		return 85
	case model.RankRanker:
		return 110
	default:
		return 30
	}
}

// DeriveConfig builds a bot profile from the opponent's Elo and
// recorded average WPM (0 when unknown). High-Elo players get a bot
// pitched well above their average so bot matches cannot be farmed
// for rating.
func DeriveConfig(elo int, avgWPM float64, rng *rand.Rand) Config {
	rank := model.RankFromElo(elo)

	target := tierWPM(rank)
	if avgWPM > 0 {
		if elo > model.PlatinumMinElo {
			target = avgWPM + 20 + rng.Float64()*20 // [+20,+40]
		} else {
			target = avgWPM - 5 + rng.Float64()*15 // [-5,+10]
		}
	}
	if target < 15 {
		target = 15
	}

	// Accuracy by tier, sampled within a band of 0.88..0.99.
	accLo, accHi := accuracyBand(rank)
	accuracy := accLo + rng.Float64()*(accHi-accLo)

	variance := 0.10 + rng.Float64()*0.20

	// Burst probability and correction speed grow with both skill
	// signals, capped.
	burst := 0.15 + target/400 + float64(elo)/10000
	if burst > maxBurstProb {
		burst = maxBurstProb
	}
	correction := 0.9 + target/300 + float64(elo)/8000
	if correction > maxCorrectionSpeed {
		correction = maxCorrectionSpeed
	}

	return Config{
		TargetWPM:       target,
		Accuracy:        accuracy,
		Variance:        variance,
		BurstProb:       burst,
		CorrectionSpeed: correction,
	}
}

func accuracyBand(rank model.Rank) (float64, float64) {
	switch rank {
	case model.RankBronze:
		return 0.90, 0.95
	case model.RankGold:
		return 0.92, 0.97
	case model.RankPlatinum:
		return 0.94, 0.98
	case model.RankRanker:
		return 0.96, 0.99
	default:
		return 0.88, 0.93
	}
}
