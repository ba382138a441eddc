package model

// PlayerState tracks one side of a match. It is owned by the match
// orchestrator: all mutation happens under the session's lock, so the
// struct itself carries no synchronization.
type PlayerState struct {
	PlayerID    PlayerID
	DisplayName string
	PhotoRef    string
	Elo         int
	Rank        Rank
	IsBot       bool
	Cursor      string
	Effect      string

	Keystrokes             []Keystroke
	CurrentCharIndex       int
	CurrentWordIndex       int
	CharsTyped             int
	WordsCompleted         int
	Errors                 int
	LastProcessedCharIndex int // dedupe key, monotonic except backspace rewind

	// Derived at settlement.
	WPM      float64
	Accuracy float64
	Score    float64

	maxKeystrokes int
}

// NewPlayerState builds the zero race state for one participant.
// maxKeystrokes bounds the recorded log (duration x max sane typing
// rate); admitted keystrokes beyond the cap still update counters but
// are not recorded.
func NewPlayerState(id PlayerID, name string, elo int, isBot bool, maxKeystrokes int) *PlayerState {
	return &PlayerState{
		PlayerID:               id,
		DisplayName:            name,
		Elo:                    elo,
		Rank:                   RankFromElo(elo),
		IsBot:                  isBot,
		Keystrokes:             make([]Keystroke, 0, 64),
		LastProcessedCharIndex: -1,
		maxKeystrokes:          maxKeystrokes,
	}
}

// RecordKeystroke appends k to the bounded keystroke log.
func (ps *PlayerState) RecordKeystroke(k Keystroke) {
	if ps.maxKeystrokes > 0 && len(ps.Keystrokes) >= ps.maxKeystrokes {
		return
	}
	ps.Keystrokes = append(ps.Keystrokes, k)
}

// LastKeystroke returns the most recently recorded keystroke, or
// false if none was recorded yet.
func (ps *PlayerState) LastKeystroke() (Keystroke, bool) {
	if len(ps.Keystrokes) == 0 {
		return Keystroke{}, false
	}
	return ps.Keystrokes[len(ps.Keystrokes)-1], true
}
