package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"github.com/mooserlabs/mooser/internal/config"
	"github.com/mooserlabs/mooser/internal/mcu"
	"github.com/mooserlabs/mooser/internal/midiin"
	"github.com/mooserlabs/mooser/internal/pitchcolor"
	"github.com/mooserlabs/mooser/internal/player"
	"github.com/mooserlabs/mooser/internal/playlist"
	"github.com/mooserlabs/mooser/internal/termstrip"
	"github.com/mooserlabs/mooser/internal/wavplay"
)

// logger is the process-wide structured logger. Safe to use before
// initLogger is called.
var logger = slog.Default()

// initLogger configures the shared slog logger and makes it the default so
// every package logging through slog.Default shares the handler.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	cfg := config.Load()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	initLogger(cfg.Debug)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger.Info("mooser starting",
		"tracks", cfg.Tracks,
		"order", cfg.Order,
		"decoder", cfg.Decoder,
		"pitch", cfg.Pitch,
		"volume", cfg.Volume,
		"strip", cfg.Strip,
		"serial", cfg.Serial,
		"baud", cfg.Baud,
		"debug", cfg.Debug,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mooser stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("mooser stopped")
}

// run builds every component before starting any goroutine, so a setup
// error returns with nothing left running.
func run(ctx context.Context, cfg config.Config) error {
	tracks, name, err := trackSource(cfg)
	if err != nil {
		return err
	}
	palette, err := loadPalette(cfg)
	if err != nil {
		return err
	}
	policy, err := pitchcolor.New(pitchcolor.Config{
		Palette:       palette,
		MinHz:         cfg.MinHz,
		MaxHz:         cfg.MaxHz,
		MinConfidence: cfg.MinConfidence,
		HysteresisHz:  cfg.HysteresisHz,
	})
	if err != nil {
		return err
	}

	var link *mcu.Link
	if cfg.NeedsSerial() {
		link, err = mcu.OpenRetry(ctx, cfg.Serial, cfg.Baud, cfg.SerialRetry, logger)
		if err != nil {
			return err
		}
		defer link.Close()
	}

	var (
		tracker *midiin.Tracker
		watcher *midiin.Watcher
	)
	if cfg.NeedsMIDI() {
		drv, err := rtmididrv.New()
		if err != nil {
			return err
		}
		tracker = midiin.NewTracker(1, logger)
		watcher = midiin.NewWatcher(drv, tracker, logger)
		defer watcher.Close()
	}

	pc := player.ControllerConfig{
		Tracks:     tracks,
		Name:       name,
		Policy:     policy,
		StartDelay: cfg.StartDelay,
		Logger:     logger,
	}

	switch cfg.Decoder {
	case config.BackendMCU:
		pc.Decoder = link
	case config.BackendExec:
		wp := wavplay.New(cfg.TrackDir, nil, logger)
		defer wp.Stop()
		pc.Decoder = wp
	}

	switch cfg.Pitch {
	case config.BackendMCU:
		pc.Analyzer = link
	case config.BackendMIDI:
		pc.Analyzer = tracker
	}

	switch cfg.Volume {
	case config.BackendMCU:
		pc.Volume = link
	case config.BackendMIDI:
		pc.Volume = tracker
	}

	switch cfg.Strip {
	case config.BackendMCU:
		pc.Visualizer = player.NewVisualizer(link)
	case config.BackendTerm:
		pc.Visualizer = player.NewVisualizer(termstrip.New(cfg.LEDs, os.Stdout))
	}

	ctrl, err := player.NewController(pc)
	if err != nil {
		return err
	}
	loop := &player.Loop{Controller: ctrl, Interval: cfg.PollInterval, Logger: logger}

	g, ctx := errgroup.WithContext(ctx)
	if link != nil {
		g.Go(func() error { return link.Run(ctx) })
	}
	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}
	g.Go(func() error { return loop.Run(ctx) })

	return g.Wait()
}

func trackSource(cfg config.Config) (playlist.TrackSource, playlist.Namer, error) {
	now := uint64(time.Now().UnixNano())
	rng := rand.New(rand.NewPCG(now, now>>1|1))

	if cfg.Order == config.OrderRandom {
		r, err := playlist.NewRandomPicker(cfg.Tracks, rng)
		if err != nil {
			return nil, nil, err
		}
		return r, playlist.RandomFilename, nil
	}
	p, err := playlist.New(cfg.Tracks, rng)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("playlist shuffled", "order", p.Order())
	return p, playlist.Filename, nil
}

func loadPalette(cfg config.Config) (pitchcolor.Palette, error) {
	if cfg.PaletteFile != "" {
		pal, err := pitchcolor.LoadGPL(cfg.PaletteFile)
		if err != nil {
			return nil, err
		}
		logger.Info("palette loaded", "file", cfg.PaletteFile, "colours", len(pal))
		return pal, nil
	}
	return pitchcolor.HuePalette(cfg.PaletteSize), nil
}
