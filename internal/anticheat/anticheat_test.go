package anticheat

import (
	"math"
	"testing"

	"github.com/keyduel/keyduel/internal/model"
)

func newState() *model.PlayerState {
	return model.NewPlayerState("p1", "Player One", 1500, false, 0)
}

func TestProcessKeystrokeClean(t *testing.T) {
	ps := newState()
	text := "cat dog"

	out := ProcessKeystroke(ps, text, model.Keystroke{Char: "c", TimestampMs: 1000, CharIndex: 0})
	if out.Verdict != VerdictAccepted || !out.Clean {
		t.Fatalf("expected clean accept, got %+v", out)
	}
	if ps.CurrentCharIndex != 1 {
		t.Errorf("CurrentCharIndex = %d, want 1", ps.CurrentCharIndex)
	}
	if ps.CharsTyped != 1 || ps.Errors != 0 {
		t.Errorf("counters = (%d typed, %d errors), want (1, 0)", ps.CharsTyped, ps.Errors)
	}
}

func TestProcessKeystrokeWrongChar(t *testing.T) {
	ps := newState()

	out := ProcessKeystroke(ps, "cat", model.Keystroke{Char: "x", TimestampMs: 1000, CharIndex: 0})
	if out.Verdict != VerdictAccepted || out.Clean {
		t.Fatalf("expected dirty accept, got %+v", out)
	}
	if ps.Errors != 1 {
		t.Errorf("Errors = %d, want 1", ps.Errors)
	}
	// Position still advances past the mistyped cell.
	if ps.CurrentCharIndex != 1 {
		t.Errorf("CurrentCharIndex = %d, want 1", ps.CurrentCharIndex)
	}
}

func TestProcessKeystrokeLatencyFloor(t *testing.T) {
	ps := newState()
	text := "cat"

	ProcessKeystroke(ps, text, model.Keystroke{Char: "c", TimestampMs: 1000, CharIndex: 0})
	out := ProcessKeystroke(ps, text, model.Keystroke{Char: "a", TimestampMs: 1005, CharIndex: 1})
	if out.Verdict != VerdictRejectedLatency {
		t.Fatalf("5ms gap should be rejected, got %+v", out)
	}
	// Rejected keystroke leaves state untouched.
	if ps.CharsTyped != 1 || ps.CurrentCharIndex != 1 {
		t.Errorf("state mutated by rejected keystroke: typed=%d idx=%d", ps.CharsTyped, ps.CurrentCharIndex)
	}

	out = ProcessKeystroke(ps, text, model.Keystroke{Char: "a", TimestampMs: 1010, CharIndex: 1})
	if out.Verdict != VerdictAccepted {
		t.Fatalf("10ms gap is exactly the floor and must pass, got %+v", out)
	}
}

func TestProcessKeystrokeDuplicate(t *testing.T) {
	ps := newState()
	text := "cat"

	ProcessKeystroke(ps, text, model.Keystroke{Char: "c", TimestampMs: 1000, CharIndex: 0})
	out := ProcessKeystroke(ps, text, model.Keystroke{Char: "c", TimestampMs: 1100, CharIndex: 0})
	if out.Verdict != VerdictDuplicate {
		t.Fatalf("replayed CharIndex should be a duplicate, got %+v", out)
	}
	if ps.CharsTyped != 1 || ps.Errors != 0 {
		t.Errorf("duplicate mutated counters: typed=%d errors=%d", ps.CharsTyped, ps.Errors)
	}
}

func TestProcessKeystrokeBackspace(t *testing.T) {
	ps := newState()
	text := "cat"

	ProcessKeystroke(ps, text, model.Keystroke{Char: "c", TimestampMs: 1000, CharIndex: 0})
	ProcessKeystroke(ps, text, model.Keystroke{Char: "x", TimestampMs: 1100, CharIndex: 1})

	out := ProcessKeystroke(ps, text, model.Keystroke{Char: model.Backspace, TimestampMs: 1200, CharIndex: 1})
	if out.Verdict != VerdictBackspace {
		t.Fatalf("expected backspace verdict, got %+v", out)
	}
	if ps.CurrentCharIndex != 1 {
		t.Errorf("CurrentCharIndex = %d, want rewind to 1", ps.CurrentCharIndex)
	}

	// The corrected cell is typable again, not a duplicate.
	out = ProcessKeystroke(ps, text, model.Keystroke{Char: "a", TimestampMs: 1300, CharIndex: 1})
	if out.Verdict != VerdictAccepted || !out.Clean {
		t.Fatalf("retype after backspace should be clean accept, got %+v", out)
	}
}

func TestWPM(t *testing.T) {
	tests := []struct {
		name    string
		typed   int
		errors  int
		elapsed float64
		want    float64
	}{
		{"clean minute", 250, 0, 60, 50},
		{"errors subtract", 250, 50, 60, 40},
		{"half minute", 100, 0, 30, 40},
		{"more errors than chars", 5, 10, 60, 0},
		{"zero elapsed floored", 10, 0, 0, 1200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WPM(tt.typed, tt.errors, tt.elapsed)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("WPM(%d, %d, %v) = %v, want %v", tt.typed, tt.errors, tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		typed  int
		errors int
		want   float64
	}{
		{100, 0, 100},
		{100, 5, 95},
		{0, 0, 0},
		{4, 1, 75},
	}
	for _, tt := range tests {
		got := Accuracy(tt.typed, tt.errors)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Accuracy(%d, %d) = %v, want %v", tt.typed, tt.errors, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	// 60 wpm, 95% accuracy, 12 words: 6000 + 950 + 60 = 7010.
	if got := Score(60, 95, 12); got != 7010 {
		t.Errorf("Score = %v, want 7010", got)
	}
	// Rounds to one decimal.
	if got := Score(33.333, 90, 0); got != 4233.3 {
		t.Errorf("Score = %v, want 4233.3", got)
	}
}

func TestComputeStats(t *testing.T) {
	ps := newState()
	ps.CharsTyped = 110
	ps.Errors = 10
	ps.WordsCompleted = 20

	ComputeStats(ps, 22)

	// (110-10)/5 words in 22s -> 54.5454... wpm
	wantWPM := float64(100) / 5 * 60 / 22
	if math.Abs(ps.WPM-wantWPM) > 1e-9 {
		t.Errorf("WPM = %v, want %v", ps.WPM, wantWPM)
	}
	wantAcc := 100.0 * 100 / 110
	if math.Abs(ps.Accuracy-wantAcc) > 1e-9 {
		t.Errorf("Accuracy = %v, want %v", ps.Accuracy, wantAcc)
	}
	if ps.Score == 0 {
		t.Error("Score not computed")
	}
}
