package model

import "time"

// Outcome of one side of a match.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeTie  Outcome = "tie"
)

// CoinBreakdown itemizes the settlement coin reward.
type CoinBreakdown struct {
	Base             int `json:"base"`
	RankBonus        int `json:"rank_bonus"`
	LeaderboardBonus int `json:"leaderboard_bonus"`
	Total            int `json:"total"`
}

// OpponentSummary is the other side's identity and final stats as
// shown in a MatchResult.
type OpponentSummary struct {
	PlayerID    PlayerID `json:"player_id"`
	DisplayName string   `json:"display_name"`
	PhotoRef    string   `json:"photo_ref,omitempty"`
	IsBot       bool     `json:"is_bot"`
	Rank        string   `json:"rank"`
	WPM         float64  `json:"wpm"`
	Accuracy    float64  `json:"accuracy"`
	Score       float64  `json:"score"`
	Outcome     Outcome  `json:"outcome"`
}

// MatchResult is delivered to each human side exactly once, from that
// side's perspective.
type MatchResult struct {
	MatchID   string          `json:"match_id"`
	Mode      Mode            `json:"mode"`
	Outcome   Outcome         `json:"outcome"`
	WPM       float64         `json:"wpm"`
	Accuracy  float64         `json:"accuracy"`
	Score     float64         `json:"score"`
	EloBefore int             `json:"elo_before"`
	EloAfter  int             `json:"elo_after"`
	EloChange int             `json:"elo_change"`
	Coins     CoinBreakdown   `json:"coins"`
	Opponent  OpponentSummary `json:"opponent"`
}

// MatchRecord is the archived form of a finished match. Insertion is
// idempotent on MatchID.
type MatchRecord struct {
	MatchID    string
	Mode       Mode
	Player1    PlayerID
	Player2    PlayerID // synthetic id for bot opponents
	IsBot      bool
	StartedAt  time.Time
	EndedAt    time.Time
	P1WPM      float64
	P1Accuracy float64
	P1Score    float64
	P2WPM      float64
	P2Accuracy float64
	P2Score    float64
	Winner     PlayerID // empty on tie
	ForfeitBy  PlayerID // empty unless forfeited
}
