package anticheat

import (
	"testing"

	"github.com/keyduel/keyduel/internal/model"
)

func hasFlag(flags []Flag, kind string) bool {
	for _, f := range flags {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

func TestInspectPlayerImpossibleWPM(t *testing.T) {
	ps := newState()
	// 300 wpm over 30 seconds: 750 correct chars.
	ps.CharsTyped = 750
	ps.Errors = 0

	flags := InspectPlayer(ps, 30)
	if !hasFlag(flags, FlagImpossibleWPM) {
		t.Fatalf("300 wpm should flag, got %v", flags)
	}

	ps.CharsTyped = 200 // 80 wpm
	if flags := InspectPlayer(ps, 30); hasFlag(flags, FlagImpossibleWPM) {
		t.Fatalf("80 wpm should not flag, got %v", flags)
	}
}

func TestInspectPlayerRoboticCadence(t *testing.T) {
	ps := newState()
	// Perfectly even 100ms intervals.
	for i := 0; i < 10; i++ {
		ps.RecordKeystroke(model.Keystroke{Char: "a", TimestampMs: int64(1000 + i*100), CharIndex: i})
	}
	ps.CharsTyped = 10

	flags := InspectPlayer(ps, 30)
	if !hasFlag(flags, FlagRoboticCadence) {
		t.Fatalf("zero-variance cadence should flag, got %v", flags)
	}
}

func TestInspectPlayerHumanCadence(t *testing.T) {
	ps := newState()
	gaps := []int64{80, 200, 110, 340, 95, 150, 60, 280}
	ts := int64(1000)
	for i, g := range gaps {
		ts += g
		ps.RecordKeystroke(model.Keystroke{Char: "a", TimestampMs: ts, CharIndex: i})
	}
	ps.CharsTyped = len(gaps)

	if flags := InspectPlayer(ps, 30); hasFlag(flags, FlagRoboticCadence) {
		t.Fatalf("irregular cadence should not flag, got %v", flags)
	}
}

func TestInspectPlayerTooFewKeystrokes(t *testing.T) {
	ps := newState()
	ps.RecordKeystroke(model.Keystroke{Char: "a", TimestampMs: 1000, CharIndex: 0})
	ps.RecordKeystroke(model.Keystroke{Char: "b", TimestampMs: 1100, CharIndex: 1})
	ps.CharsTyped = 2

	// Two keystrokes give one interval; no CV judgement possible.
	if flags := InspectPlayer(ps, 30); hasFlag(flags, FlagRoboticCadence) {
		t.Fatalf("cadence must not be judged on a single interval, got %v", flags)
	}
}
