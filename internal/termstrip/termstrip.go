// Package termstrip draws the LED strip in the terminal so the visualizer
// can be watched without hardware.
package termstrip

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/mooserlabs/mooser/internal/pitchcolor"
)

const cell = "  "

// Strip is a terminal stand-in for an addressable LED strip. SetAll only
// stages a colour; Commit writes one line showing every LED.
type Strip struct {
	w io.Writer

	mu     sync.Mutex
	staged pitchcolor.Color
	leds   []pitchcolor.Color
}

// New returns a strip of n LEDs drawing to w.
func New(n int, w io.Writer) *Strip {
	return &Strip{w: w, leds: make([]pitchcolor.Color, n)}
}

func (s *Strip) SetAll(c pitchcolor.Color) {
	s.mu.Lock()
	s.staged = c
	s.mu.Unlock()
}

func (s *Strip) Commit() {
	s.mu.Lock()
	for i := range s.leds {
		s.leds[i] = s.staged
	}
	line := s.render()
	s.mu.Unlock()

	fmt.Fprintln(s.w, line)
}

// Frame returns the committed LED colours.
func (s *Strip) Frame() []pitchcolor.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pitchcolor.Color, len(s.leds))
	copy(out, s.leds)
	return out
}

func (s *Strip) render() string {
	var b strings.Builder
	for _, c := range s.leds {
		b.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render(cell))
	}
	label := lipgloss.NewStyle().Faint(true).Render(" " + s.staged.Hex())
	return b.String() + label
}
