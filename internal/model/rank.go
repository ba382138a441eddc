package model

// Rank is the display band derived from a player's Elo rating.
type Rank int

const (
	RankUnranked Rank = iota
	RankBronze
	RankGold
	RankPlatinum
	RankRanker
)

// Elo thresholds for each rank band.
const (
	BronzeMinElo   = 1000
	GoldMinElo     = 2000
	PlatinumMinElo = 3000
	RankerMinElo   = 10000
)

// RankFromElo maps an integer Elo rating to its rank band.
func RankFromElo(elo int) Rank {
	switch {
	case elo >= RankerMinElo:
		return RankRanker
	case elo >= PlatinumMinElo:
		return RankPlatinum
	case elo >= GoldMinElo:
		return RankGold
	case elo >= BronzeMinElo:
		return RankBronze
	default:
		return RankUnranked
	}
}

// String returns the rank label shown to clients.
func (r Rank) String() string {
	switch r {
	case RankBronze:
		return "Bronze"
	case RankGold:
		return "Gold"
	case RankPlatinum:
		return "Platinum"
	case RankRanker:
		return "Ranker"
	default:
		return "Unranked"
	}
}

// CoinRate returns the rank-bonus multiplier applied to the base coin
// reward at settlement.
func (r Rank) CoinRate() float64 {
	switch r {
	case RankBronze:
		return 0.20
	case RankGold:
		return 0.40
	case RankPlatinum:
		return 0.80
	case RankRanker:
		return 1.60
	default:
		return 0
	}
}
