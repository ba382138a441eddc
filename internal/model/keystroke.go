package model

// Backspace is the distinguished keystroke token for a correction.
// Backspaces rewind position state and are never recorded in the
// keystroke log.
const Backspace = "BACKSPACE"

// Keystroke is one admitted typing event. TimestampMs is the
// client-supplied clock; the anti-cheat layer guarantees it is
// strictly increasing with gaps of at least MinKeystrokeIntervalMs
// within a player's accepted stream.
type Keystroke struct {
	Char        string `json:"char"`
	TimestampMs int64  `json:"timestamp"`
	CharIndex   int    `json:"char_index"`
}

// IsBackspace reports whether the keystroke is a correction token.
func (k Keystroke) IsBackspace() bool {
	return k.Char == Backspace
}
