package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mooserlabs/mooser/internal/config"
)

// benchConfig needs neither a serial port nor a MIDI device.
func benchConfig(t *testing.T) config.Config {
	t.Helper()
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Cleanup(func() { logger = slog.Default() })

	cfg := config.Default()
	cfg.Decoder = config.BackendExec
	cfg.Strip = config.BackendTerm
	cfg.Pitch = config.BackendNone
	cfg.Volume = config.BackendNone
	cfg.TrackDir = t.TempDir()
	return cfg
}

func runWithTimeout(t *testing.T, ctx context.Context, cfg config.Config) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
		return nil
	}
}

func TestRunSetupErrorLeavesNothingRunning(t *testing.T) {
	cfg := benchConfig(t)
	cfg.PaletteFile = filepath.Join(t.TempDir(), "missing.gpl")

	before := runtime.NumGoroutine()
	if err := run(context.Background(), cfg); err == nil {
		t.Fatal("run() = nil with a missing palette file")
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Errorf("goroutines grew from %d to %d after a setup error", before, after)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := benchConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if err := runWithTimeout(t, ctx, cfg); err != nil {
		t.Errorf("run() = %v, want nil after cancel", err)
	}
}
