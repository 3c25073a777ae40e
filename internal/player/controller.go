package player

import (
	"errors"
	"log/slog"
	"time"

	"github.com/mooserlabs/mooser/internal/pitchcolor"
	"github.com/mooserlabs/mooser/internal/playlist"
)

var (
	ErrZeroStartDelay = errors.New("player: start delay must be positive")
	ErrNoTracks       = errors.New("player: track source is required")
	ErrNoDecoder      = errors.New("player: decoder is required")
	ErrNoPolicy       = errors.New("player: pitch analyzer needs a colour policy and a visualizer")
)

// State is what the controller believes the decoder is doing.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	}
	return "unknown"
}

// ControllerConfig wires a Controller to its collaborators. Analyzer and
// Volume are optional; an Analyzer requires Policy and Visualizer.
type ControllerConfig struct {
	Tracks  playlist.TrackSource
	Name    playlist.Namer // defaults to playlist.Filename
	Decoder Decoder

	Analyzer   PitchAnalyzer
	Policy     *pitchcolor.Policy
	Visualizer *Visualizer

	Volume VolumeSensor

	// StartDelay is the pause after a start request so the decoder can
	// report busy before the next poll. Must be positive.
	StartDelay time.Duration
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)

	Logger *slog.Logger
}

// Controller advances the track source against the decoder busy flag.
// There is no "started" acknowledgement: the state is inferred from the
// busy flag on every poll, so a start that fails is retried with the next
// track on the following poll.
type Controller struct {
	cfg     ControllerConfig
	log     *slog.Logger
	state   State
	started int
	current string
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Tracks == nil {
		return nil, ErrNoTracks
	}
	if cfg.Decoder == nil {
		return nil, ErrNoDecoder
	}
	if cfg.StartDelay <= 0 {
		return nil, ErrZeroStartDelay
	}
	if cfg.Analyzer != nil && (cfg.Policy == nil || cfg.Visualizer == nil) {
		return nil, ErrNoPolicy
	}
	if cfg.Name == nil {
		cfg.Name = playlist.Filename
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{cfg: cfg, log: log}, nil
}

// Poll runs one iteration: busy check, then either start the next track or
// refresh volume and colour.
func (c *Controller) Poll() {
	if !c.cfg.Decoder.IsBusy() {
		if c.state == Playing {
			c.log.Debug("player: track finished", "file", c.current)
			c.state = Idle
		}
		c.startNext()
		return
	}

	c.state = Playing
	c.RefreshVolume()
	c.refreshColor()
}

func (c *Controller) startNext() {
	id := c.cfg.Tracks.Current()
	name := c.cfg.Name(id)
	c.log.Info("player: playing file", "file", name, "track", id)

	c.cfg.Decoder.Start(name)
	c.cfg.Tracks.Advance()
	c.current = name
	c.started++
	c.state = Playing

	c.cfg.Sleep(c.cfg.StartDelay)
}

// RefreshVolume pushes the sensor reading to the decoder.
func (c *Controller) RefreshVolume() {
	if c.cfg.Volume == nil {
		return
	}
	c.cfg.Decoder.SetVolume(c.cfg.Volume.ReadNormalized())
}

func (c *Controller) refreshColor() {
	a := c.cfg.Analyzer
	if a == nil || !a.HasReading() {
		return
	}
	hz, conf := a.ReadPitchHz(), a.ReadConfidence()
	c.log.Debug("player: pitch reading",
		"hz", hz,
		"note", pitchcolor.NoteName(hz),
		"confidence", conf,
	)

	col, ok := c.cfg.Policy.OnDetection(hz, conf)
	if !ok {
		return
	}
	c.log.Debug("player: colour change", "color", col.Hex(), "note", pitchcolor.NoteName(hz))
	c.cfg.Visualizer.Apply(col)
}

// State is the state inferred on the last poll.
func (c *Controller) State() State {
	return c.state
}

// Started counts start requests issued so far.
func (c *Controller) Started() int {
	return c.started
}

// Current is the filename of the last start request.
func (c *Controller) Current() string {
	return c.current
}
