// Package anticheat validates inbound keystrokes and computes the
// per-player race statistics used at settlement.
package anticheat

import (
	"math"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
)

// Verdict classifies one processed keystroke.
type Verdict int

const (
	// VerdictAccepted: keystroke admitted and state mutated.
	VerdictAccepted Verdict = iota
	// VerdictDuplicate: out-of-order or repeated CharIndex. A network
	// artifact, not cheating: reported as success to the client but
	// state is untouched and nothing is propagated.
	VerdictDuplicate
	// VerdictRejectedLatency: inter-keystroke gap under the floor.
	VerdictRejectedLatency
	// VerdictBackspace: correction admitted; position rewound, no
	// keystroke recorded.
	VerdictBackspace
)

// Outcome describes what ProcessKeystroke did.
type Outcome struct {
	Verdict Verdict
	// Clean is true for an accepted keystroke whose character matches
	// the challenge text. Only clean keystrokes drive opponent
	// progress updates.
	Clean bool
}

// ProcessKeystroke validates k against ps and the challenge text and
// applies it. All calls for one player must be serialized by the
// caller (the session lock).
func ProcessKeystroke(ps *model.PlayerState, wordText string, k model.Keystroke) Outcome {
	if k.IsBackspace() {
		ps.CurrentCharIndex = k.CharIndex
		ps.LastProcessedCharIndex = k.CharIndex - 1
		return Outcome{Verdict: VerdictBackspace}
	}

	if prev, ok := ps.LastKeystroke(); ok {
		if k.TimestampMs-prev.TimestampMs < constants.MinKeystrokeIntervalMs {
			return Outcome{Verdict: VerdictRejectedLatency}
		}
	}

	if k.CharIndex <= ps.LastProcessedCharIndex {
		return Outcome{Verdict: VerdictDuplicate}
	}

	ps.RecordKeystroke(k)
	ps.LastProcessedCharIndex = k.CharIndex
	ps.CurrentCharIndex = k.CharIndex + 1
	ps.CharsTyped++

	clean := false
	if k.CharIndex < len(wordText) && string(wordText[k.CharIndex]) == k.Char {
		clean = true
	} else {
		ps.Errors++
	}
	return Outcome{Verdict: VerdictAccepted, Clean: clean}
}

// WPM computes net words per minute: five correct characters count as
// one word. Elapsed is floored at 100ms to keep early finishes sane.
func WPM(charsTyped, errors int, elapsedSeconds float64) float64 {
	elapsed := math.Max(0.1, elapsedSeconds)
	netChars := charsTyped - errors
	if netChars < 0 {
		netChars = 0
	}
	netWords := float64(netChars) / 5.0
	return netWords * 60.0 / elapsed
}

// Accuracy computes percent of typed characters that were correct.
func Accuracy(charsTyped, errors int) float64 {
	denom := charsTyped
	if denom < 1 {
		denom = 1
	}
	correct := charsTyped - errors
	if correct < 0 {
		correct = 0
	}
	return 100.0 * float64(correct) / float64(denom)
}

// Score is the additive match score. The same formula is applied to
// bots so cross-comparison is faithful.
func Score(wpm, accuracy float64, wordsCompleted int) float64 {
	raw := wpm*100 + accuracy*10 + float64(wordsCompleted)*5
	return math.Round(raw*10) / 10
}

// ComputeStats fills the derived stat fields of ps from its counters.
func ComputeStats(ps *model.PlayerState, elapsedSeconds float64) {
	ps.WPM = WPM(ps.CharsTyped, ps.Errors, elapsedSeconds)
	ps.Accuracy = Accuracy(ps.CharsTyped, ps.Errors)
	ps.Score = Score(ps.WPM, ps.Accuracy, ps.WordsCompleted)
}
