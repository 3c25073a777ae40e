package playlist

import "fmt"

// RandomPicker draws an independent track for every play. Tracks can repeat
// back to back; it exists for the "-order random" mode.
type RandomPicker struct {
	n       int
	rng     Source
	current int
}

// NewRandomPicker returns a picker over 1..n with its first track drawn.
func NewRandomPicker(n int, rng Source) (*RandomPicker, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}
	r := &RandomPicker{n: n, rng: rng}
	r.Advance()
	return r, nil
}

// Current returns the drawn track.
func (r *RandomPicker) Current() int {
	return r.current
}

// Advance draws a new track.
func (r *RandomPicker) Advance() {
	r.current = r.rng.IntN(r.n) + 1
}

// RandomFilename names a track for the random mode. The lower-case
// extension is what that mode has always requested; storage lookups on a
// case-sensitive filesystem will differ from Filename.
func RandomFilename(id int) string {
	return fmt.Sprintf("%d.wav", id)
}
