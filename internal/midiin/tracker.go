// Package midiin turns a MIDI controller into a pitch and volume source:
// the most recent note-on becomes the detected pitch (velocity as
// confidence) and controller 7 becomes the volume knob.
package midiin

import (
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/mooserlabs/mooser/internal/pitchcolor"
)

// VolumeCC is the channel-volume controller number.
const VolumeCC = 7

// Tracker holds the latest reading. The MIDI listener goroutine writes it
// through Handle; the playback loop reads it through the player interfaces.
type Tracker struct {
	log *slog.Logger

	mu       sync.Mutex
	fresh    bool
	hz       float64
	conf     float64
	readHz   float64
	readConf float64
	volume   float64
}

// NewTracker starts with the volume at initialVolume.
func NewTracker(initialVolume float64, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{log: log, volume: initialVolume}
}

// Handle consumes one MIDI message.
func (t *Tracker) Handle(msg midi.Message) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		hz := pitchcolor.KeyHz(int(key))
		t.log.Debug("midi: note on", "ch", ch, "key", key, "vel", vel, "note", pitchcolor.NoteName(hz))
		t.mu.Lock()
		t.hz = hz
		t.conf = float64(vel) / 127
		t.fresh = true
		t.mu.Unlock()
	case msg.GetControlChange(&ch, &cc, &val):
		if cc != VolumeCC {
			t.log.Debug("midi: unhandled controller", "ch", ch, "cc", cc, "val", val)
			return
		}
		t.mu.Lock()
		t.volume = float64(val) / 127
		t.mu.Unlock()
	default:
		t.log.Debug("midi: unhandled message", "msg", msg.String())
	}
}

// HasReading reports whether a note arrived since the last call and
// latches it for ReadPitchHz and ReadConfidence.
func (t *Tracker) HasReading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.fresh {
		return false
	}
	t.fresh = false
	t.readHz, t.readConf = t.hz, t.conf
	return true
}

func (t *Tracker) ReadPitchHz() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readHz
}

func (t *Tracker) ReadConfidence() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readConf
}

// ReadNormalized is the last controller 7 value in [0,1].
func (t *Tracker) ReadNormalized() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}
