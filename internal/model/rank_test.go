package model

import "testing"

func TestRankFromElo(t *testing.T) {
	tests := []struct {
		elo  int
		want Rank
	}{
		{0, RankUnranked},
		{999, RankUnranked},
		{1000, RankBronze},
		{1999, RankBronze},
		{2000, RankGold},
		{2999, RankGold},
		{3000, RankPlatinum},
		{9999, RankPlatinum},
		{10000, RankRanker},
		{25000, RankRanker},
	}
	for _, tt := range tests {
		if got := RankFromElo(tt.elo); got != tt.want {
			t.Errorf("RankFromElo(%d) = %v, want %v", tt.elo, got, tt.want)
		}
	}
}

func TestModeValid(t *testing.T) {
	for _, m := range []Mode{ModeRanked, ModeTraining, ModeFriends} {
		if !m.Valid() {
			t.Errorf("mode %q should be valid", m)
		}
	}
	if Mode("speedrun").Valid() {
		t.Error("unknown mode should be invalid")
	}
}

func TestKeystrokeIsBackspace(t *testing.T) {
	if !(Keystroke{Char: Backspace}).IsBackspace() {
		t.Error("BACKSPACE char should be a backspace")
	}
	if (Keystroke{Char: "b"}).IsBackspace() {
		t.Error("regular char should not be a backspace")
	}
}
