package model

// Mode is the matchmaking queue a player enrols in.
type Mode string

const (
	ModeRanked   Mode = "ranked"
	ModeTraining Mode = "training"
	ModeFriends  Mode = "friends"
)

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m == ModeRanked || m == ModeTraining || m == ModeFriends
}

// QueueEntry is one enqueued player. It lives in the shared queue
// store from enqueue until pairing or cancellation.
type QueueEntry struct {
	PlayerID    PlayerID   `json:"player_id"`
	Elo         int        `json:"elo"`
	DisplayName string     `json:"display_name"`
	PhotoRef    string     `json:"photo_ref,omitempty"`
	JoinedAt    float64    `json:"joined_at"` // monotonic seconds
	Cursor      string     `json:"cursor,omitempty"`
	Effect      string     `json:"effect,omitempty"`
	Friends     []PlayerID `json:"friends,omitempty"` // friends mode only
}

// PendingMatch is a pairing decided by the coordinator but not yet
// acknowledged by the orchestrator. Player2 is nil for bot matches.
type PendingMatch struct {
	MatchID string
	Player1 *QueueEntry
	Player2 *QueueEntry
	Mode    Mode
	IsBot   bool
}
