package model

// OpponentProfile is the pairing-time view of the other side, shown
// in MATCH_FOUND before the race starts.
type OpponentProfile struct {
	PlayerID    PlayerID `json:"player_id"`
	DisplayName string   `json:"display_name"`
	PhotoRef    string   `json:"photo_ref,omitempty"`
	Elo         int      `json:"elo"`
	Rank        string   `json:"rank"`
	IsBot       bool     `json:"is_bot"`
	Cursor      string   `json:"cursor,omitempty"`
	Effect      string   `json:"effect,omitempty"`
}

// MatchFound is the pairing confirmation delivered to one side via
// its registered pairing callback.
type MatchFound struct {
	MatchID  string          `json:"match_id"`
	Mode     Mode            `json:"mode"`
	Words    []string        `json:"words"`
	Opponent OpponentProfile `json:"opponent"`
}
