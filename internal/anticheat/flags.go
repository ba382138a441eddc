package anticheat

import (
	"fmt"
	"math"

	"github.com/keyduel/keyduel/internal/constants"
	"github.com/keyduel/keyduel/internal/model"
)

// Flag is an observational anti-cheat finding. Flags are recorded for
// audit and never rewrite a score.
type Flag struct {
	PlayerID model.PlayerID
	Kind     string
	Detail   string
}

const (
	FlagImpossibleWPM  = "impossible_wpm"
	FlagRoboticCadence = "robotic_cadence"
)

// InspectPlayer returns audit flags for a finished player state.
func InspectPlayer(ps *model.PlayerState, elapsedSeconds float64) []Flag {
	var flags []Flag

	wpm := WPM(ps.CharsTyped, ps.Errors, elapsedSeconds)
	if wpm > constants.MaxSaneWPM {
		flags = append(flags, Flag{
			PlayerID: ps.PlayerID,
			Kind:     FlagImpossibleWPM,
			Detail:   fmt.Sprintf("wpm %.1f exceeds %d", wpm, constants.MaxSaneWPM),
		})
	}

	if cv, ok := intervalCV(ps.Keystrokes); ok && cv < constants.MinIntervalCV {
		flags = append(flags, Flag{
			PlayerID: ps.PlayerID,
			Kind:     FlagRoboticCadence,
			Detail:   fmt.Sprintf("interval cv %.3f below %.2f", cv, constants.MinIntervalCV),
		})
	}

	return flags
}

// intervalCV computes the coefficient of variation of inter-keystroke
// intervals. Human typing cadence is irregular; a near-zero CV means
// machine-generated timing.
func intervalCV(keystrokes []model.Keystroke) (float64, bool) {
	if len(keystrokes) < 3 {
		return 0, false
	}

	intervals := make([]float64, 0, len(keystrokes)-1)
	for i := 1; i < len(keystrokes); i++ {
		intervals = append(intervals, float64(keystrokes[i].TimestampMs-keystrokes[i-1].TimestampMs))
	}

	var sum float64
	for _, v := range intervals {
		sum += v
	}
	mean := sum / float64(len(intervals))
	if mean <= 0 {
		return 0, false
	}

	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))

	return math.Sqrt(variance) / mean, true
}
