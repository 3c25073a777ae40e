package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backends for each collaborator.
const (
	BackendMCU    = "mcu"
	BackendMIDI   = "midi"
	BackendExec   = "exec"
	BackendTerm   = "term"
	BackendNone   = "none"
	OrderShuffle  = "shuffle"
	OrderRandom   = "random"
	defaultSerial = "/dev/ttyACM0"
)

// Config holds everything the player needs at startup. Defaults are
// compiled in; environment variables and then flags override them.
type Config struct {
	// Library
	Tracks   int    // track ids run 1..Tracks
	Order    string // shuffle or random
	TrackDir string // directory for the exec decoder

	// Visualizer
	PaletteSize   int
	PaletteFile   string // optional .gpl file, replaces the hue palette
	MinHz         float64
	MaxHz         float64
	MinConfidence float64
	HysteresisHz  float64
	LEDs          int

	// Loop
	StartDelay   time.Duration // pause after a start request
	PollInterval time.Duration

	// Hardware
	Serial      string
	Baud        int
	SerialRetry time.Duration

	Decoder string // mcu or exec
	Pitch   string // mcu, midi or none
	Volume  string // mcu, midi or none
	Strip   string // mcu or term

	Debug bool
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Tracks:   118,
		Order:    OrderShuffle,
		TrackDir: ".",

		PaletteSize:   6,
		MinHz:         30,
		MaxHz:         1000,
		MinConfidence: 0.75,
		HysteresisHz:  7,
		LEDs:          6,

		StartDelay:   5 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,

		Serial:      defaultSerial,
		Baud:        500000,
		SerialRetry: 500 * time.Millisecond,

		Decoder: BackendMCU,
		Pitch:   BackendMCU,
		Volume:  BackendMCU,
		Strip:   BackendMCU,
	}
}

// Load applies MOOSER_* environment overrides to Default.
func Load() Config {
	d := Default()
	return Config{
		Tracks:   envInt("MOOSER_TRACKS", d.Tracks),
		Order:    envStr("MOOSER_ORDER", d.Order),
		TrackDir: envStr("MOOSER_TRACK_DIR", d.TrackDir),

		PaletteSize:   envInt("MOOSER_PALETTE_SIZE", d.PaletteSize),
		PaletteFile:   envStr("MOOSER_PALETTE", d.PaletteFile),
		MinHz:         envFloat("MOOSER_MIN_HZ", d.MinHz),
		MaxHz:         envFloat("MOOSER_MAX_HZ", d.MaxHz),
		MinConfidence: envFloat("MOOSER_MIN_CONFIDENCE", d.MinConfidence),
		HysteresisHz:  envFloat("MOOSER_HYSTERESIS_HZ", d.HysteresisHz),
		LEDs:          envInt("MOOSER_LEDS", d.LEDs),

		StartDelay:   envDuration("MOOSER_START_DELAY", d.StartDelay),
		PollInterval: envDuration("MOOSER_POLL_INTERVAL", d.PollInterval),

		Serial:      envStr("MOOSER_SERIAL", d.Serial),
		Baud:        envInt("MOOSER_BAUD", d.Baud),
		SerialRetry: envDuration("MOOSER_SERIAL_RETRY", d.SerialRetry),

		Decoder: envStr("MOOSER_DECODER", d.Decoder),
		Pitch:   envStr("MOOSER_PITCH", d.Pitch),
		Volume:  envStr("MOOSER_VOLUME", d.Volume),
		Strip:   envStr("MOOSER_STRIP", d.Strip),

		Debug: envBool("MOOSER_DEBUG", d.Debug),
	}
}

// RegisterFlags binds c's fields to fs, using the current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Tracks, "tracks", c.Tracks, "number of tracks on storage (1..N)")
	fs.StringVar(&c.Order, "order", c.Order, "track order: shuffle or random")
	fs.StringVar(&c.TrackDir, "dir", c.TrackDir, "track directory for the exec decoder")

	fs.IntVar(&c.PaletteSize, "palette-size", c.PaletteSize, "number of hues in the generated palette")
	fs.StringVar(&c.PaletteFile, "palette", c.PaletteFile, "GIMP .gpl palette file (overrides -palette-size)")
	fs.Float64Var(&c.MinHz, "min-hz", c.MinHz, "pitch mapped to the first palette colour")
	fs.Float64Var(&c.MaxHz, "max-hz", c.MaxHz, "pitch mapped to the last palette colour")
	fs.Float64Var(&c.MinConfidence, "min-confidence", c.MinConfidence, "ignore pitch readings below this confidence")
	fs.Float64Var(&c.HysteresisHz, "hysteresis", c.HysteresisHz, "minimum pitch change in Hz before the colour changes")
	fs.IntVar(&c.LEDs, "leds", c.LEDs, "LEDs on the terminal strip")

	fs.DurationVar(&c.StartDelay, "start-delay", c.StartDelay, "pause after starting a track")
	fs.DurationVar(&c.PollInterval, "poll", c.PollInterval, "main loop poll interval")

	fs.StringVar(&c.Serial, "serial", c.Serial, "serial port device")
	fs.IntVar(&c.Baud, "baud", c.Baud, "serial baud rate")
	fs.DurationVar(&c.SerialRetry, "serial-retry", c.SerialRetry, "delay between attempts to open the serial port")

	fs.StringVar(&c.Decoder, "decoder", c.Decoder, "decoder backend: mcu or exec")
	fs.StringVar(&c.Pitch, "pitch", c.Pitch, "pitch source: mcu, midi or none")
	fs.StringVar(&c.Volume, "volume", c.Volume, "volume source: mcu, midi or none")
	fs.StringVar(&c.Strip, "strip", c.Strip, "LED strip backend: mcu or term")

	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging (adds source location)")
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Tracks <= 0 {
		errs = append(errs, fmt.Errorf("tracks must be positive, got %d", c.Tracks))
	}
	if c.PaletteFile == "" && c.PaletteSize <= 0 {
		errs = append(errs, fmt.Errorf("palette-size must be positive, got %d", c.PaletteSize))
	}
	if c.LEDs <= 0 {
		errs = append(errs, fmt.Errorf("leds must be positive, got %d", c.LEDs))
	}
	if c.StartDelay <= 0 {
		errs = append(errs, fmt.Errorf("start-delay must be positive, got %v", c.StartDelay))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive, got %v", c.PollInterval))
	}
	errs = append(errs,
		oneOf("order", c.Order, OrderShuffle, OrderRandom),
		oneOf("decoder", c.Decoder, BackendMCU, BackendExec),
		oneOf("pitch", c.Pitch, BackendMCU, BackendMIDI, BackendNone),
		oneOf("volume", c.Volume, BackendMCU, BackendMIDI, BackendNone),
		oneOf("strip", c.Strip, BackendMCU, BackendTerm),
	)
	return errors.Join(errs...)
}

// NeedsSerial reports whether any backend talks to the MCU.
func (c Config) NeedsSerial() bool {
	return c.Decoder == BackendMCU || c.Pitch == BackendMCU || c.Volume == BackendMCU || c.Strip == BackendMCU
}

// NeedsMIDI reports whether any backend reads the MIDI input.
func (c Config) NeedsMIDI() bool {
	return c.Pitch == BackendMIDI || c.Volume == BackendMIDI
}

func oneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %v, got %q", name, allowed, v)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
