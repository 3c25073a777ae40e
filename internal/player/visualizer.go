package player

import "github.com/mooserlabs/mooser/internal/pitchcolor"

// Visualizer paints the whole strip one colour.
type Visualizer struct {
	strip LEDStrip
}

func NewVisualizer(strip LEDStrip) *Visualizer {
	return &Visualizer{strip: strip}
}

// Apply sets every LED to c and commits the frame.
func (v *Visualizer) Apply(c pitchcolor.Color) {
	v.strip.SetAll(c)
	v.strip.Commit()
}
