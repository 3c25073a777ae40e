package mcu

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/mooserlabs/mooser/internal/pitchcolor"
)

const readTimeout = 100 * time.Millisecond

// Link is the host end of the serial bridge. Run caches the reports the MCU
// streams; the accessor methods only read that cache, so the playback loop
// never waits on the wire.
//
// Link satisfies player.Decoder, player.PitchAnalyzer, player.LEDStrip and
// player.VolumeSensor.
type Link struct {
	rw        io.ReadWriteCloser
	log       *slog.Logger
	closeOnce sync.Once

	wmu        sync.Mutex
	lastVolume int // -1 until the first volume is sent

	mu        sync.Mutex
	busy      bool
	pending   bool // a Play was sent and no status has answered it yet
	fresh     bool
	noteHz    float64
	noteProb  float64
	readHz    float64
	readProb  float64
	pot       float64
	badFrames int
}

// NewLink wraps an already open port. log may be nil.
func NewLink(rw io.ReadWriteCloser, log *slog.Logger) *Link {
	if log == nil {
		log = slog.Default()
	}
	return &Link{rw: rw, log: log, lastVolume: -1}
}

// Open opens the named serial device at the given baud rate.
func Open(name string, baud int, log *slog.Logger) (*Link, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("mcu: open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("mcu: read timeout on %s: %w", name, err)
	}
	l := NewLink(p, log)
	l.log.Info("mcu: port opened", "device", name, "baud", baud)
	return l, nil
}

// OpenRetry keeps trying Open every interval until it succeeds or ctx ends.
// The bridge cannot play anything until the port is up, so startup blocks here.
func OpenRetry(ctx context.Context, name string, baud int, every time.Duration, log *slog.Logger) (*Link, error) {
	if log == nil {
		log = slog.Default()
	}
	for {
		l, err := Open(name, baud, log)
		if err == nil {
			return l, nil
		}
		log.Error("mcu: unable to access the bridge", "device", name, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(every):
		}
	}
}

// Run reads reports until ctx is cancelled or the port fails.
func (l *Link) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	var p Parser
	buf := make([]byte, 256)
	for {
		n, err := l.rw.Read(buf)
		for _, b := range buf[:n] {
			f, ok, perr := p.Push(b)
			if perr != nil {
				l.mu.Lock()
				l.badFrames++
				l.mu.Unlock()
				l.log.Warn("mcu: dropped frame", "err", perr)
				continue
			}
			if ok {
				l.handle(f)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mcu: read: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Link) handle(f Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch f.Cmd {
	case RptStatus:
		if len(f.Payload) < 1 {
			l.badFrames++
			return
		}
		l.busy = f.Payload[0]&0x01 != 0
		if l.pending {
			l.pending = false
			l.log.Debug("mcu: start answered", "busy", l.busy)
		}
	case RptNote:
		if len(f.Payload) < 8 {
			l.badFrames++
			return
		}
		l.noteHz = float64(math.Float32frombits(binary.LittleEndian.Uint32(f.Payload[0:])))
		l.noteProb = float64(math.Float32frombits(binary.LittleEndian.Uint32(f.Payload[4:])))
		l.fresh = true
	case RptPot:
		if len(f.Payload) < 2 {
			l.badFrames++
			return
		}
		raw := binary.LittleEndian.Uint16(f.Payload)
		l.pot = math.Min(float64(raw)/1024.0, 1)
	default:
		l.log.Debug("mcu: unhandled report", "cmd", f.Cmd, "len", len(f.Payload))
	}
}

func (l *Link) send(f Frame) {
	data := f.Encode()
	if _, err := l.rw.Write(data); err != nil {
		l.log.Error("mcu: write error", "cmd", f.Cmd, "err", err)
	}
}

// Close closes the port. Safe to call more than once.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.log.Info("mcu: closing port")
		err = l.rw.Close()
	})
	return err
}

// BadFrames counts reports dropped for framing or payload errors.
func (l *Link) BadFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.badFrames
}

// --- player.Decoder ---

// IsBusy is the busy bit from the latest status report. After Start it
// reads true until the next status report replaces it.
func (l *Link) IsBusy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy
}

// Start asks the MCU to play filename from its SD card.
func (l *Link) Start(filename string) {
	l.mu.Lock()
	l.busy = true
	l.pending = true
	l.mu.Unlock()

	l.wmu.Lock()
	defer l.wmu.Unlock()
	l.send(playFrame(filename))
}

// SetVolume forwards v in [0,1] as one byte. The loop calls this on every
// poll, so unchanged values are not resent.
func (l *Link) SetVolume(v float64) {
	level := int(math.Round(math.Min(math.Max(v, 0), 1) * 255))

	l.wmu.Lock()
	defer l.wmu.Unlock()
	if level == l.lastVolume {
		return
	}
	l.lastVolume = level
	l.send(Frame{Cmd: CmdVolume, Payload: []byte{byte(level)}})
}

// --- player.PitchAnalyzer ---

// HasReading reports whether a note arrived since the last call, and
// latches it for ReadPitchHz and ReadConfidence.
func (l *Link) HasReading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.fresh {
		return false
	}
	l.fresh = false
	l.readHz, l.readProb = l.noteHz, l.noteProb
	return true
}

func (l *Link) ReadPitchHz() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readHz
}

func (l *Link) ReadConfidence() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readProb
}

// --- player.LEDStrip ---

// SetAll fills the MCU's LED buffer with c.
func (l *Link) SetAll(c pitchcolor.Color) {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	l.send(Frame{Cmd: CmdFill, Payload: []byte{c.R, c.G, c.B}})
}

// Commit shows the LED buffer.
func (l *Link) Commit() {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	l.send(Frame{Cmd: CmdShow})
}

// --- player.VolumeSensor ---

// ReadNormalized is the last potentiometer report in [0,1].
func (l *Link) ReadNormalized() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pot
}
