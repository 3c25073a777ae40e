package player

import (
	"context"
	"log/slog"
	"time"
)

const defaultInterval = time.Millisecond

// Loop polls a Controller until its context ends.
type Loop struct {
	Controller *Controller
	Interval   time.Duration
	Logger     *slog.Logger
}

// Run pushes the boot volume to the decoder, then polls every Interval.
// It returns nil when ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	interval := l.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	l.Controller.RefreshVolume()
	log.Info("player: loop running", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		l.Controller.Poll()

		select {
		case <-ctx.Done():
			log.Info("player: loop stopped",
				"started", l.Controller.Started(),
				"state", l.Controller.State().String(),
			)
			return nil
		case <-ticker.C:
		}
	}
}
