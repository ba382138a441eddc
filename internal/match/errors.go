package match

import "errors"

// Routing and validation errors surfaced to the session layer. The
// client sees only the coarse ERROR frames derived from these.
var (
	ErrNoSession       = errors.New("no session for player")
	ErrNotStarted      = errors.New("race has not started")
	ErrMatchFinished   = errors.New("match already finished")
	ErrInvalidLatency  = errors.New("keystroke interval below floor")
	ErrBadWordIndex    = errors.New("word index out of range")
	ErrAlreadyInMatch  = errors.New("player already in a match")
	ErrUnknownPlayer   = errors.New("player is not a participant")
	ErrSessionNotFound = errors.New("session not found")
)
