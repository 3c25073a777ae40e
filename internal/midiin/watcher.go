package midiin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// PreferredPatterns name the inputs tried first, in order.
var PreferredPatterns = []string{"Launchkey", "Novation", "Teensy"}

// ExcludedPatterns name loopback and placeholder ports, which are skipped.
var ExcludedPatterns = []string{"Midi Through", "Through Port", "Dummy"}

// RescanInterval is the minimum time between two input scans.
const RescanInterval = time.Second

// Watcher keeps one MIDI input open and hands its messages to a Tracker.
// Devices may come and go while the player runs.
type Watcher struct {
	mu       sync.Mutex
	drv      drivers.Driver
	port     drivers.In
	stopFn   func()
	device   string // "" while disconnected
	nextScan time.Time
	now      func() time.Time

	tracker *Tracker
	log     *slog.Logger
}

// NewWatcher watches the inputs of drv. The watcher owns drv from here on;
// Close shuts it down.
func NewWatcher(drv drivers.Driver, tracker *Tracker, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{drv: drv, tracker: tracker, log: log, now: time.Now}
}

// Close drops the connection and closes the driver.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnect()
	_ = w.drv.Close()
}

// Device is the name of the connected input, or "" when none is.
func (w *Watcher) Device() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.device
}

// Run calls Tick until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(RescanInterval / 4)
	defer ticker.Stop()

	w.Tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick lists the inputs at most once per RescanInterval. A connected
// device that is no longer listed is dropped and the next Tick scans
// again right away; otherwise the preferred input is opened.
func (w *Watcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Before(w.nextScan) {
		return
	}
	w.nextScan = now.Add(RescanInterval)

	inputs := w.listInputs()

	if w.device != "" {
		if slices.Contains(inputs, w.device) {
			return
		}
		w.log.Warn("midi: device gone", "device", w.device)
		w.disconnect()
		w.nextScan = time.Time{}
		return
	}

	name, ok := PickPreferred(inputs)
	if !ok {
		return
	}
	if err := w.connect(name); err != nil {
		w.log.Error("midi: connect failed", "device", name, "err", err)
	}
}

func (w *Watcher) listInputs() []string {
	ins, err := w.drv.Ins()
	if err != nil {
		w.log.Error("midi: list inputs failed", "err", err)
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	names = FilterExcluded(names)
	w.log.Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

// FilterExcluded drops names matching ExcludedPatterns.
func FilterExcluded(names []string) []string {
	var out []string
	for _, name := range names {
		if !matchesAny(name, ExcludedPatterns) {
			out = append(out, name)
		}
	}
	return out
}

// PickPreferred returns the first input matching PreferredPatterns, or the
// only input when there is exactly one.
func PickPreferred(inputs []string) (string, bool) {
	for _, pat := range PreferredPatterns {
		for _, name := range inputs {
			if matchesAny(name, []string{pat}) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

// disconnect requires w.mu.
func (w *Watcher) disconnect() {
	if w.device == "" {
		return
	}
	if w.stopFn != nil {
		w.stopFn()
	}
	if w.port != nil {
		_ = w.port.Close()
	}
	w.log.Info("midi: disconnected", "device", w.device)
	w.port, w.stopFn, w.device = nil, nil, ""
}

// connect requires w.mu.
func (w *Watcher) connect(name string) error {
	ins, err := w.drv.Ins()
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(ins, func(in drivers.In) bool { return in.String() == name })
	if idx < 0 {
		return fmt.Errorf("input %q not found", name)
	}
	port := ins[idx]
	if err := port.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := midi.ListenTo(port, func(msg midi.Message, _ int32) {
		w.tracker.Handle(msg)
	}, midi.HandleError(func(lerr error) {
		w.log.Warn("midi: listener error", "device", name, "err", lerr)
		go w.dropAfterError(name)
	}))
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	w.port, w.stopFn, w.device = port, stop, name
	w.log.Info("midi: connected", "device", name)
	return nil
}

// dropAfterError runs off the listener goroutine, since disconnect stops
// that listener.
func (w *Watcher) dropAfterError(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.device != name {
		return
	}
	w.disconnect()
	w.nextScan = time.Time{}
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pat := range patterns {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
