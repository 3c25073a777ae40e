// Package playlist holds the track rotation used by the player: a shuffled,
// cyclic sequence of track identifiers that plays every track once before
// any track repeats.
package playlist

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned when a playlist is built for zero or fewer tracks.
var ErrInvalidSize = errors.New("playlist: size must be positive")

// Source is the random number source used to shuffle.
// *math/rand/v2.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// TrackSource yields the next track id to play.
type TrackSource interface {
	Current() int
	Advance()
}

// Namer maps a track id to the filename on storage.
type Namer func(id int) string

// Playlist is a fixed permutation of 1..N walked in a circle. The order is
// chosen once at construction and kept for every lap.
type Playlist struct {
	ids []int
	pos int
}

// New shuffles 1..n with Fisher-Yates.
func New(n int, rng Source) (*Playlist, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	for i := n - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return &Playlist{ids: ids}, nil
}

// Current returns the id at the current position.
func (p *Playlist) Current() int {
	return p.ids[p.pos]
}

// Advance moves to the next id, wrapping after the last one.
func (p *Playlist) Advance() {
	p.pos = (p.pos + 1) % len(p.ids)
}

// Len is the number of tracks in the rotation.
func (p *Playlist) Len() int {
	return len(p.ids)
}

// Position is the zero-based index of the current id.
func (p *Playlist) Position() int {
	return p.pos
}

// Order returns a copy of the permutation.
func (p *Playlist) Order() []int {
	out := make([]int, len(p.ids))
	copy(out, p.ids)
	return out
}

// Filename names a track the way the shuffled rotation requests it: "<n>.WAV".
func Filename(id int) string {
	return fmt.Sprintf("%d.WAV", id)
}
