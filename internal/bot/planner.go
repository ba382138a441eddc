package bot

import (
	"math/rand/v2"
	"time"
)

// ActionKind classifies one planned bot action.
type ActionKind int

const (
	ActionPress ActionKind = iota
	ActionBackspace
	ActionWait
)

// Action is one scheduled step of a bot's race. Delay is the pause
// before the action fires. Clean presses are the only ones that drive
// opponent-progress updates: typos and their corrections look like a
// pause from the other side, never a backwards jitter.
type Action struct {
	Kind         ActionKind
	Delay        time.Duration
	Char         string
	CharIndex    int
	WordIndex    int
	Clean        bool
	WordComplete bool
}

const (
	minKeyDelay    = 20 * time.Millisecond
	reactionMin    = 150 * time.Millisecond
	reactionSpread = 150 * time.Millisecond
)

// Plan produces the full action sequence for typing words under cfg.
// Deterministic for a seeded rng, so plans are testable without a
// clock.
func Plan(words []string, cfg Config, rng *rand.Rand) []Action {
	actions := make([]Action, 0, len(words)*8)
	charIndex := 0

	for wi, word := range words {
		mult := wordSpeedMult(word, cfg, rng)
		last := wi == len(words)-1

		for ci, c := range word {
			delay := keyDelay(cfg, mult, rng)
			finalChar := last && ci == len(word)-1

			if rng.Float64() < cfg.Accuracy {
				actions = append(actions, Action{
					Kind:         ActionPress,
					Delay:        delay,
					Char:         string(c),
					CharIndex:    charIndex,
					WordIndex:    wi,
					Clean:        true,
					WordComplete: finalChar,
				})
			} else {
				actions = append(actions, typoSequence(c, charIndex, wi, delay, cfg, rng, finalChar)...)
			}
			charIndex++
		}

		if !last {
			// Space between words completes the word, then a short
			// breath before the next one.
			actions = append(actions, Action{
				Kind:         ActionPress,
				Delay:        keyDelay(cfg, mult, rng),
				Char:         " ",
				CharIndex:    charIndex,
				WordIndex:    wi,
				Clean:        true,
				WordComplete: true,
			})
			charIndex++
			actions = append(actions, Action{
				Kind:  ActionWait,
				Delay: time.Duration(30+rng.IntN(90)) * time.Millisecond,
			})
		}
	}

	return actions
}

// typoSequence plans a mistake on c: wrong neighbor press, a human
// reaction pause, backspace, then the corrected press.
func typoSequence(c rune, charIndex, wordIndex int, delay time.Duration, cfg Config, rng *rand.Rand, finalChar bool) []Action {
	reaction := reactionMin + time.Duration(rng.Int64N(int64(reactionSpread)))
	if cfg.CorrectionSpeed > 0 {
		reaction = time.Duration(float64(reaction) / cfg.CorrectionSpeed)
	}

	return []Action{
		{
			Kind:      ActionPress,
			Delay:     delay,
			Char:      string(wrongNeighbor(c, rng)),
			CharIndex: charIndex,
			WordIndex: wordIndex,
		},
		{Kind: ActionWait, Delay: reaction},
		{Kind: ActionBackspace, Delay: 0, CharIndex: charIndex, WordIndex: wordIndex},
		{
			Kind:         ActionPress,
			Delay:        keyDelay(cfg, 1.0, rng),
			Char:         string(c),
			CharIndex:    charIndex,
			WordIndex:    wordIndex,
			Clean:        true,
			WordComplete: finalChar,
		},
	}
}

// wordSpeedMult picks the pace for one word: bursts sprint through
// short words, long words drag proportionally to skill.
func wordSpeedMult(word string, cfg Config, rng *rand.Rand) float64 {
	if len(word) <= 4 && rng.Float64() < cfg.BurstProb {
		return 1.25 + rng.Float64()*0.35
	}
	if len(word) >= 8 {
		return 0.75 + 0.15*(cfg.CorrectionSpeed/maxCorrectionSpeed)
	}
	return 0.95 + rng.Float64()*0.1
}

// keyDelay computes the inter-keystroke delay: 12/(wpm*mult) seconds
// with Gaussian jitter, floored at 20ms.
func keyDelay(cfg Config, mult float64, rng *rand.Rand) time.Duration {
	base := 12.0 / (cfg.TargetWPM * mult)
	jitter := rng.NormFloat64() * cfg.Variance * base
	d := time.Duration((base + jitter) * float64(time.Second))
	if d < minKeyDelay {
		d = minKeyDelay
	}
	return d
}
