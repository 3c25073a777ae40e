package player

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/mooserlabs/mooser/internal/pitchcolor"
	"github.com/mooserlabs/mooser/internal/playlist"
)

// --- fakes ---

type fakeDecoder struct {
	busy    []bool // consumed one per IsBusy call; last value repeats
	starts  []string
	volumes []float64
}

func (d *fakeDecoder) IsBusy() bool {
	if len(d.busy) == 0 {
		return false
	}
	b := d.busy[0]
	if len(d.busy) > 1 {
		d.busy = d.busy[1:]
	}
	return b
}

func (d *fakeDecoder) Start(name string)   { d.starts = append(d.starts, name) }
func (d *fakeDecoder) SetVolume(v float64) { d.volumes = append(d.volumes, v) }

type reading struct{ hz, conf float64 }

type fakeAnalyzer struct {
	queue []reading
	cur   reading
}

func (a *fakeAnalyzer) HasReading() bool {
	if len(a.queue) == 0 {
		return false
	}
	a.cur, a.queue = a.queue[0], a.queue[1:]
	return true
}

func (a *fakeAnalyzer) ReadPitchHz() float64    { return a.cur.hz }
func (a *fakeAnalyzer) ReadConfidence() float64 { return a.cur.conf }

type fakeStrip struct {
	staged  pitchcolor.Color
	leds    []pitchcolor.Color
	commits int
}

func newFakeStrip(n int) *fakeStrip { return &fakeStrip{leds: make([]pitchcolor.Color, n)} }

func (s *fakeStrip) SetAll(c pitchcolor.Color) { s.staged = c }
func (s *fakeStrip) Commit() {
	for i := range s.leds {
		s.leds[i] = s.staged
	}
	s.commits++
}

type fixedVolume float64

func (v fixedVolume) ReadNormalized() float64 { return float64(v) }

// --- helpers ---

var palette = pitchcolor.Palette{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 0}, {255, 0, 255}}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, n int, dec *fakeDecoder, an PitchAnalyzer, strip LEDStrip) (*Controller, *playlist.Playlist, *[]time.Duration) {
	t.Helper()
	pl, err := playlist.New(n, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatal(err)
	}
	pol, err := pitchcolor.New(pitchcolor.Config{
		Palette: palette, MinHz: 30, MaxHz: 1000, MinConfidence: 0.75, HysteresisHz: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	var sleeps []time.Duration
	cfg := ControllerConfig{
		Tracks:     pl,
		Decoder:    dec,
		Policy:     pol,
		Visualizer: NewVisualizer(strip),
		Volume:     fixedVolume(0.5),
		StartDelay: 5 * time.Millisecond,
		Sleep:      func(d time.Duration) { sleeps = append(sleeps, d) },
		Logger:     quietLogger(),
	}
	if an != nil {
		cfg.Analyzer = an
	}
	c, err := NewController(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return c, pl, &sleeps
}

// --- tests ---

func TestAlwaysIdleDecoderMakesProgress(t *testing.T) {
	const n = 118
	dec := &fakeDecoder{}
	c, pl, sleeps := newTestController(t, n, dec, nil, newFakeStrip(6))
	want := pl.Order()

	for i := 0; i < n; i++ {
		c.Poll()
	}

	if len(dec.starts) != n {
		t.Fatalf("issued %d starts, want %d", len(dec.starts), n)
	}
	seen := map[string]bool{}
	for i, name := range dec.starts {
		if name != playlist.Filename(want[i]) {
			t.Errorf("start %d = %q, want %q", i, name, playlist.Filename(want[i]))
		}
		if seen[name] {
			t.Errorf("track %q started twice within one lap", name)
		}
		seen[name] = true
	}
	if c.Started() != n {
		t.Errorf("Started() = %d, want %d", c.Started(), n)
	}
	if len(*sleeps) != n {
		t.Errorf("slept %d times, want one pause per start", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != 5*time.Millisecond {
			t.Errorf("start delay = %v, want 5ms", d)
		}
	}
	if len(dec.volumes) != 0 {
		t.Errorf("volume set %d times while idle, want 0", len(dec.volumes))
	}
}

func TestBusyDecoderRefreshesVolumeAndColour(t *testing.T) {
	dec := &fakeDecoder{busy: []bool{false, true}}
	an := &fakeAnalyzer{queue: []reading{{30, 0.9}}}
	strip := newFakeStrip(6)
	c, _, _ := newTestController(t, 5, dec, an, strip)

	c.Poll() // idle -> start
	if len(dec.starts) != 1 || c.State() != Playing {
		t.Fatalf("after first poll: starts=%d state=%v", len(dec.starts), c.State())
	}

	c.Poll() // busy
	if len(dec.starts) != 1 {
		t.Errorf("busy poll started another track")
	}
	if len(dec.volumes) != 1 || dec.volumes[0] != 0.5 {
		t.Errorf("volumes = %v, want [0.5]", dec.volumes)
	}
	if strip.commits != 1 {
		t.Fatalf("commits = %d, want 1", strip.commits)
	}
	for i, led := range strip.leds {
		if led != palette[0] {
			t.Errorf("led %d = %v, want %v", i, led, palette[0])
		}
	}
}

func TestSuppressedReadingLeavesStripAlone(t *testing.T) {
	dec := &fakeDecoder{busy: []bool{true}}
	an := &fakeAnalyzer{queue: []reading{
		{440, 0.5},  // low confidence
		{440, 0.9},  // accepted
		{444, 0.95}, // within hysteresis
		{1000, 0.9}, // accepted
	}}
	strip := newFakeStrip(3)
	c, _, _ := newTestController(t, 5, dec, an, strip)

	wantCommits := []int{0, 1, 1, 2}
	for i, want := range wantCommits {
		c.Poll()
		if strip.commits != want {
			t.Errorf("poll %d: commits = %d, want %d", i, strip.commits, want)
		}
	}
	if strip.leds[0] != palette[4] {
		t.Errorf("final colour = %v, want %v", strip.leds[0], palette[4])
	}
}

func TestPlayingToIdleStartsNextTrack(t *testing.T) {
	dec := &fakeDecoder{busy: []bool{false, true, true, false, true}}
	c, pl, _ := newTestController(t, 4, dec, nil, newFakeStrip(1))
	order := pl.Order()

	for i := 0; i < 5; i++ {
		c.Poll()
	}
	if len(dec.starts) != 2 {
		t.Fatalf("starts = %v, want 2", dec.starts)
	}
	if dec.starts[1] != playlist.Filename(order[1]) {
		t.Errorf("second start = %q, want %q", dec.starts[1], playlist.Filename(order[1]))
	}
	if c.Current() != dec.starts[1] {
		t.Errorf("Current() = %q", c.Current())
	}
}

func TestFailedStartsSelfHeal(t *testing.T) {
	// A decoder that never goes busy models missing files: each poll moves
	// to the next track and wraps around the playlist.
	dec := &fakeDecoder{}
	c, pl, _ := newTestController(t, 3, dec, nil, newFakeStrip(1))
	order := pl.Order()

	for i := 0; i < 7; i++ {
		c.Poll()
	}
	for i, name := range dec.starts {
		if want := playlist.Filename(order[i%3]); name != want {
			t.Errorf("start %d = %q, want %q", i, name, want)
		}
	}
}

func TestRandomOrderUsesItsNamer(t *testing.T) {
	rp, err := playlist.NewRandomPicker(3, rand.New(rand.NewPCG(5, 6)))
	if err != nil {
		t.Fatal(err)
	}
	dec := &fakeDecoder{}
	c, err := NewController(ControllerConfig{
		Tracks:     rp,
		Name:       playlist.RandomFilename,
		Decoder:    dec,
		StartDelay: time.Millisecond,
		Sleep:      func(time.Duration) {},
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	c.Poll()
	if len(dec.starts) != 1 || dec.starts[0][len(dec.starts[0])-4:] != ".wav" {
		t.Errorf("starts = %v, want a .wav name", dec.starts)
	}
}

func TestNewControllerValidation(t *testing.T) {
	pl, _ := playlist.New(2, rand.New(rand.NewPCG(1, 1)))
	dec := &fakeDecoder{}

	tests := []struct {
		name string
		cfg  ControllerConfig
		want error
	}{
		{"no tracks", ControllerConfig{Decoder: dec, StartDelay: time.Millisecond}, ErrNoTracks},
		{"no decoder", ControllerConfig{Tracks: pl, StartDelay: time.Millisecond}, ErrNoDecoder},
		{"zero delay", ControllerConfig{Tracks: pl, Decoder: dec}, ErrZeroStartDelay},
		{"analyzer without policy", ControllerConfig{Tracks: pl, Decoder: dec, StartDelay: time.Millisecond, Analyzer: &fakeAnalyzer{}}, ErrNoPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewController(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVisualizerApplyIsIdempotent(t *testing.T) {
	strip := newFakeStrip(6)
	v := NewVisualizer(strip)
	c := pitchcolor.Color{R: 10, G: 20, B: 30}

	v.Apply(c)
	v.Apply(c)
	for i, led := range strip.leds {
		if led != c {
			t.Errorf("led %d = %v, want %v", i, led, c)
		}
	}
	if strip.commits != 2 {
		t.Errorf("commits = %d, want 2", strip.commits)
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Playing.String() != "playing" || State(9).String() != "unknown" {
		t.Error("unexpected State strings")
	}
}

func TestLoopRunsUntilCancelled(t *testing.T) {
	dec := &fakeDecoder{busy: []bool{true}}
	c, _, _ := newTestController(t, 3, dec, nil, newFakeStrip(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- (&Loop{Controller: c, Interval: time.Millisecond, Logger: quietLogger()}).Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	// boot volume plus at least one busy poll
	if len(dec.volumes) < 2 {
		t.Errorf("volumes set %d times, want boot + polls", len(dec.volumes))
	}
}
