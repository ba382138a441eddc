package model

// PlayerID is the stable opaque identity of a player. Bot opponents
// use synthetic IDs that never correspond to a stored profile.
type PlayerID string

// Profile is the persistent user record as seen by the match core.
// Stats fields are maintained by the orchestrator at settlement.
type Profile struct {
	ID          PlayerID
	DisplayName string
	PhotoRef    string

	Elo          int
	Coins        int
	TotalMatches int
	Wins         int
	Losses       int
	AvgWPM       float64
	AvgAccuracy  float64
	PeakElo      int
	BestWPM      float64

	EquippedCursor string
	EquippedEffect string
	RankBackground string
}

// Rank returns the rank band for the profile's current Elo.
func (p *Profile) Rank() Rank {
	return RankFromElo(p.Elo)
}

// StatsPatch is the settlement-time update applied to a profile.
// Peak fields are monotonic: the store keeps the max of the stored and
// patched values.
type StatsPatch struct {
	EloDelta  int
	Won       bool
	Lost      bool
	WPM       float64
	Accuracy  float64
	PeakElo   int
	BestWPM   float64
	RankBG    string
	RankBGSet bool
}
