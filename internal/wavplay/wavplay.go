// Package wavplay plays tracks from a local directory by running an
// external player process, for bench testing without the microcontroller.
package wavplay

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	fileArg   = "{file}"
	volumeArg = "{volume}" // 0-100
)

// DefaultCommand plays one file with ffplay and exits when it ends.
var DefaultCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", "-volume", volumeArg, fileArg}

// Player runs one player process at a time. It satisfies player.Decoder.
type Player struct {
	dir     string
	command []string
	log     *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
	volume  float64
}

// New plays files from dir with command, whose arguments may contain the
// {file} and {volume} placeholders. A nil command uses DefaultCommand.
func New(dir string, command []string, log *slog.Logger) *Player {
	if len(command) == 0 {
		command = DefaultCommand
	}
	if log == nil {
		log = slog.Default()
	}
	return &Player{dir: dir, command: command, log: log, volume: 1}
}

// IsBusy reports whether the player process is still running.
func (p *Player) IsBusy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetVolume sets the volume for the next Start. Most command line players
// cannot change volume mid-track.
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = math.Min(math.Max(v, 0), 1)
	p.mu.Unlock()
}

// Start launches the player on dir/filename. A missing file or a failed
// launch is logged and leaves the player idle.
func (p *Player) Start(filename string) {
	path := filepath.Join(p.dir, filename)
	if _, err := os.Stat(path); err != nil {
		p.log.Warn("wavplay: track unavailable", "file", path, "err", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	args := p.expand(path)
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		p.log.Error("wavplay: start failed", "cmd", args[0], "file", path, "err", err)
		return
	}
	p.cmd = cmd
	p.running = true
	p.log.Debug("wavplay: started", "pid", cmd.Process.Pid, "file", path)

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.cmd == cmd {
			p.running = false
			p.cmd = nil
		}
		if err != nil {
			p.log.Debug("wavplay: player exited", "file", path, "err", err)
		}
	}()
}

// Stop kills the running player, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.cmd == nil {
		return
	}
	_ = p.cmd.Process.Kill()
	p.cmd = nil
	p.running = false
}

func (p *Player) expand(path string) []string {
	vol := strconv.Itoa(int(math.Round(p.volume * 100)))
	out := make([]string, len(p.command))
	for i, a := range p.command {
		a = strings.ReplaceAll(a, fileArg, path)
		out[i] = strings.ReplaceAll(a, volumeArg, vol)
	}
	return out
}

// String describes the command for logs.
func (p *Player) String() string {
	return fmt.Sprintf("%s (dir %s)", p.command[0], p.dir)
}
