package rating

import (
	"math"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
)

// CoinReward computes the settlement coin breakdown for one side.
// lbRate is the leaderboard bonus rate from LeaderboardQuery (0.50
// for top-3, 0.20 for top-10, else 0). Ties pay the loss base.
func CoinReward(outcome model.Outcome, rank model.Rank, lbRate float64) model.CoinBreakdown {
	base := constants.LossCoinBase
	if outcome == model.OutcomeWin {
		base = constants.WinCoinBase
	}

	rankBonus := int(math.Round(float64(base) * rank.CoinRate()))
	lbBonus := int(math.Round(float64(base) * lbRate))

	return model.CoinBreakdown{
		Base:             base,
		RankBonus:        rankBonus,
		LeaderboardBonus: lbBonus,
		Total:            base + rankBonus + lbBonus,
	}
}
