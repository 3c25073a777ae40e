package pitchcolor

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is one LED colour.
type Color struct {
	R, G, B uint8
}

// Hex formats c as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Palette is an ordered list of colours, lowest pitch first.
type Palette []Color

// HuePalette spreads n fully saturated hues from red towards violet.
// The wheel stops short of 360 degrees so the last colour is not red again.
func HuePalette(n int) Palette {
	if n <= 0 {
		return nil
	}
	out := make(Palette, n)
	for i := range out {
		hue := 300 * float64(i) / float64(max(n-1, 1))
		r, g, b := colorful.Hsv(hue, 1, 1).RGB255()
		out[i] = Color{r, g, b}
	}
	return out
}

// LoadGPL reads a GIMP palette file. Header, Name and comment lines are
// skipped; every other line contributes its first three integer fields.
func LoadGPL(path string) (Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p Palette
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") ||
			strings.HasPrefix(line, "Name:") || strings.HasPrefix(line, "Columns") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var rgb [3]uint8
		valid := true
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(fields[i], 10, 8)
			if err != nil {
				valid = false
				break
			}
			rgb[i] = uint8(v)
		}
		if valid {
			p = append(p, Color{rgb[0], rgb[1], rgb[2]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p) == 0 {
		return nil, fmt.Errorf("no colors found in palette %s", path)
	}
	return p, nil
}
