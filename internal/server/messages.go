package server

import (
	"encoding/json"

	"github.com/keyduel/keyduel/internal/model"
)

// Client to server message types.
const (
	MsgJoinQueue         = "JOIN_QUEUE"
	MsgJoinTrainingQueue = "JOIN_TRAINING_QUEUE"
	MsgJoinFriendsQueue  = "JOIN_FRIENDS_QUEUE"
	MsgLeaveQueue        = "LEAVE_QUEUE"
	MsgKeystroke         = "KEYSTROKE"
	MsgWordComplete      = "WORD_COMPLETE"
	MsgPing              = "PING"
)

// Server to client message types.
const (
	MsgQueueUpdate        = "QUEUE_UPDATE"
	MsgMatchFound         = "MATCH_FOUND"
	MsgGameStart          = "GAME_START"
	MsgOpponentProgress   = "OPPONENT_PROGRESS"
	MsgGameEnd            = "GAME_END"
	MsgError              = "ERROR"
	MsgPublicMatchStarted = "PUBLIC_MATCH_STARTED"
	MsgPublicMatchEnded   = "PUBLIC_MATCH_ENDED"
	MsgOnlineCount        = "ONLINE_COUNT"
	MsgOnlineUsers        = "ONLINE_USERS"
	MsgPong               = "PONG"
)

// Error codes carried in ERROR frames.
const (
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeNoFriends         = "NO_FRIENDS"
	CodeQueueUnavailable  = "QUEUE_UNAVAILABLE"
	CodeNotInMatch        = "NOT_IN_MATCH"
	CodeRaceNotStarted    = "RACE_NOT_STARTED"
	CodeMatchFinished     = "MATCH_FINISHED"
	CodeInvalidKeystroke  = "INVALID_KEYSTROKE"
	CodeBadWordIndex      = "BAD_WORD_INDEX"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// ClientMessage is the envelope for every inbound frame.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerMessage is the envelope for every outbound frame.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// KeystrokePayload mirrors model.Keystroke on the wire.
type KeystrokePayload struct {
	Char        string `json:"char"`
	TimestampMs int64  `json:"timestamp_ms"`
	CharIndex   int    `json:"char_index"`
}

// WordCompletePayload announces a finished word by index.
type WordCompletePayload struct {
	WordIndex int `json:"word_index"`
}

// QueueUpdatePayload is the 1Hz position tick while searching.
type QueueUpdatePayload struct {
	Mode     model.Mode `json:"mode"`
	Position int        `json:"position"`
	Elapsed  float64    `json:"elapsed"` // seconds in the queue
}

// GameStartPayload carries the absolute synchronized-start timestamp;
// both sides count down to the same instant.
type GameStartPayload struct {
	StartAtMs  int64 `json:"start_at_ms"`
	DurationMs int64 `json:"duration_ms"`
}

// OpponentProgressPayload mirrors the other side's caret.
type OpponentProgressPayload struct {
	CharIndex int `json:"char_index"`
	WordIndex int `json:"word_index"`
}

// ErrorPayload is the coarse client-facing failure frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PublicMatchPayload is the lobby broadcast for spectating clients.
type PublicMatchPayload struct {
	Player1 model.OpponentProfile `json:"player1"`
	Player2 model.OpponentProfile `json:"player2"`
	Mode    model.Mode            `json:"mode"`
	Winner  model.PlayerID        `json:"winner,omitempty"`
}

// OnlineCountPayload is the periodic presence tick.
type OnlineCountPayload struct {
	Online int `json:"online"`
}

// OnlineUsersPayload lists the connected players, sent on the same
// cadence as ONLINE_COUNT.
type OnlineUsersPayload struct {
	Players []model.PlayerID `json:"players"`
}

// PongPayload answers PING with the server clock for client-side
// countdown skew correction.
type PongPayload struct {
	ServerTimeMs int64 `json:"server_time_ms"`
}
