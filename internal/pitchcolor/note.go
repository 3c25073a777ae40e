package pitchcolor

import (
	"fmt"
	"math"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MIDIKey is the nearest MIDI key number for hz (A4 = 440 Hz = 69).
func MIDIKey(hz float64) int {
	return int(math.Round(69 + 12*math.Log2(hz/440)))
}

// KeyHz is the equal-tempered frequency of a MIDI key.
func KeyHz(key int) float64 {
	return 440 * math.Pow(2, float64(key-69)/12)
}

// NoteName is the nearest note name for hz, e.g. "A4". Non-positive input
// yields "-".
func NoteName(hz float64) string {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return "-"
	}
	key := MIDIKey(hz)
	if key < 0 {
		return fmt.Sprintf("?%d", key)
	}
	return fmt.Sprintf("%s%d", noteNames[key%12], key/12-1)
}
