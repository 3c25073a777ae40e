// Package pitchcolor decides which palette colour the LED strip shows for a
// detected pitch.
package pitchcolor

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyPalette = errors.New("pitchcolor: palette is empty")
	ErrPitchRange   = errors.New("pitchcolor: max pitch must be above min pitch")
	ErrConfidence   = errors.New("pitchcolor: min confidence must be within [0,1]")
	ErrHysteresis   = errors.New("pitchcolor: hysteresis must not be negative")
)

// Config fixes the palette and gates for a Policy.
type Config struct {
	Palette       Palette
	MinHz         float64
	MaxHz         float64
	MinConfidence float64 // detections below this are ignored
	HysteresisHz  float64 // minimum distance from the last accepted pitch
}

func (c Config) validate() error {
	switch {
	case len(c.Palette) == 0:
		return ErrEmptyPalette
	case !(c.MaxHz > c.MinHz):
		return fmt.Errorf("%w: [%v, %v]", ErrPitchRange, c.MinHz, c.MaxHz)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("%w: %v", ErrConfidence, c.MinConfidence)
	case c.HysteresisHz < 0:
		return fmt.Errorf("%w: %v", ErrHysteresis, c.HysteresisHz)
	}
	return nil
}

// Policy maps pitch detections to palette colours. A colour change is only
// reported when the detection is confident enough and far enough from the
// last accepted pitch. Not safe for concurrent use.
type Policy struct {
	cfg  Config
	last float64
}

// New validates cfg and returns a Policy with no pitch accepted yet.
func New(cfg Config) (*Policy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pal := make(Palette, len(cfg.Palette))
	copy(pal, cfg.Palette)
	cfg.Palette = pal
	return &Policy{cfg: cfg}, nil
}

// OnDetection returns the colour for a new reading, or ok == false when the
// reading is suppressed by the confidence or hysteresis gate. NaN readings
// are always suppressed.
func (p *Policy) OnDetection(pitchHz, confidence float64) (c Color, ok bool) {
	if math.IsNaN(pitchHz) || math.IsNaN(confidence) {
		return Color{}, false
	}
	if confidence < p.cfg.MinConfidence {
		return Color{}, false
	}
	if math.Abs(pitchHz-p.last) < p.cfg.HysteresisHz {
		return Color{}, false
	}
	p.last = pitchHz
	return p.cfg.Palette[p.Index(pitchHz)], true
}

// Index is the palette slot for pitchHz after clamping to the pitch range.
// It has no effect on the policy state.
func (p *Policy) Index(pitchHz float64) int {
	clamped := math.Min(math.Max(pitchHz, p.cfg.MinHz), p.cfg.MaxHz)
	span := float64(len(p.cfg.Palette) - 1)
	return int(math.Round((clamped - p.cfg.MinHz) / (p.cfg.MaxHz - p.cfg.MinHz) * span))
}

// LastAccepted is the pitch of the last reading that changed colour, 0 if none.
func (p *Policy) LastAccepted() float64 {
	return p.last
}

// Palette returns the configured colours.
func (p *Policy) Palette() Palette {
	return p.cfg.Palette
}
