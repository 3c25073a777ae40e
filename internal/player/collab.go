// Package player runs the playback loop: it starts the next track whenever
// the decoder goes idle and, while a track plays, keeps the volume and the
// LED strip colour in step with the hardware.
//
// Every collaborator is polled; none of the calls below may block.
package player

import "github.com/mooserlabs/mooser/internal/pitchcolor"

// Decoder plays audio files from storage.
type Decoder interface {
	IsBusy() bool
	// Start is fire-and-forget. A failed start shows up only as the
	// decoder never reporting busy.
	Start(filename string)
	SetVolume(v float64)
}

// PitchAnalyzer reports the dominant pitch of the audio being played.
type PitchAnalyzer interface {
	HasReading() bool
	ReadPitchHz() float64
	ReadConfidence() float64
}

// LEDStrip is an addressable strip that shows a staged frame on Commit.
type LEDStrip interface {
	SetAll(c pitchcolor.Color)
	Commit()
}

// VolumeSensor reads the volume control, normalized to [0,1].
type VolumeSensor interface {
	ReadNormalized() float64
}
