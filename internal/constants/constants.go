// Package constants holds the normative tuning values of the match
// core. Values here are protocol-level: changing them changes game
// behavior for every connected client.
package constants

import "time"

// Match shape.
const (
	WordsPerMatch        = 50
	MatchDuration        = 30 * time.Second
	StartCountdown       = 5 * time.Second  // synchronized-start delay
	CallbackRegisterWait = 15 * time.Second // both sides must register before start
	CallbackPollInterval = 200 * time.Millisecond
)

// Matchmaking.
const (
	RankedQueueTimeout   = 60 * time.Second // bot fallback
	TrainingQueueTimeout = 5 * time.Second  // bot fallback
	SearchTickInterval   = 1 * time.Second
	MatchedCallbackWait  = 10 * time.Second // paired player waits for MATCH_FOUND delivery
	PairLockTTL          = 2 * time.Second
	PairCandidateScan    = 10 // oldest entries examined per tryPair
	PendingMatchCap      = 1024
)

// Anti-cheat.
const (
	MinKeystrokeIntervalMs = 10
	MaxSaneWPM             = 250 // flag threshold, never blocks
	MinIntervalCV          = 0.1 // coefficient-of-variation flag threshold
)

// Session protocol.
const (
	RateLimitWindow     = 1 * time.Second
	RateLimitMessages   = 50
	NotifyAttempts      = 3
	GameStartSendWait   = 3 * time.Second
	GameEndSendWait     = 5 * time.Second
	PresenceInterval    = 10 * time.Second
	QueueUpdateInterval = 1 * time.Second
)

// Economy and rating.
const (
	WinCoinBase     = 300
	LossCoinBase    = 50
	EloHardCap      = 100
	StompScoreGap   = 5000
	PlacementGames  = 10 // matches before placement bonus ends
	SoftCapElo      = 2500
	UnrankedMaxElo  = 1000
	ForfeitEloSwing = 10
)
