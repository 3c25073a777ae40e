// Package mcu talks to the microcontroller that owns the SD card, the audio
// codec, the note detector and the LED strip. Both directions use the same
// framing:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload, CKS is LEN ^ CMD ^ every payload byte.
package mcu

import "errors"

const (
	SOF0       = 0xAA
	SOF1       = 0x55
	MaxPayload = 64
)

// Host to MCU.
const (
	CmdPlay   byte = 0x20 // payload: filename
	CmdVolume byte = 0x21 // payload: 0-255
	CmdFill   byte = 0x30 // payload: R G B
	CmdShow   byte = 0x31
)

// MCU to host.
const (
	RptStatus byte = 0x40 // payload: bit0 = decoder busy
	RptNote   byte = 0x41 // payload: float32 LE hz, float32 LE probability
	RptPot    byte = 0x42 // payload: uint16 LE raw 10-bit reading
)

var (
	ErrChecksum = errors.New("mcu: frame checksum mismatch")
	ErrLength   = errors.New("mcu: frame length out of range")
)

// Frame is one command or report.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation.
func (f Frame) Encode() []byte {
	length := byte(len(f.Payload) + 1) // +1 for CMD byte
	cks := length ^ f.Cmd
	for _, b := range f.Payload {
		cks ^= b
	}

	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, SOF0, SOF1, length, f.Cmd)
	out = append(out, f.Payload...)
	return append(out, cks)
}

func playFrame(filename string) Frame {
	name := []byte(filename)
	if len(name) > MaxPayload {
		name = name[:MaxPayload]
	}
	return Frame{Cmd: CmdPlay, Payload: name}
}

type parseState int

const (
	waitSOF0 parseState = iota
	waitSOF1
	waitLen
	waitCmd
	inPayload
	waitCks
)

// Parser reassembles frames from a byte stream. After a bad length or
// checksum it drops the frame and hunts for the next SOF0.
type Parser struct {
	state   parseState
	length  int
	cmd     byte
	payload []byte
	cks     byte
}

// Push consumes one byte. It returns a frame once one is complete, or an
// error when a frame was dropped.
func (p *Parser) Push(b byte) (Frame, bool, error) {
	switch p.state {
	case waitSOF0:
		if b == SOF0 {
			p.state = waitSOF1
		}
	case waitSOF1:
		switch b {
		case SOF1:
			p.state = waitLen
		case SOF0:
			// stay: a repeated SOF0 may start the real frame
		default:
			p.state = waitSOF0
		}
	case waitLen:
		if b == 0 || int(b) > MaxPayload+1 {
			p.state = waitSOF0
			return Frame{}, false, ErrLength
		}
		p.length = int(b)
		p.cks = b
		p.state = waitCmd
	case waitCmd:
		p.cmd = b
		p.cks ^= b
		p.payload = make([]byte, 0, p.length-1)
		if p.length == 1 {
			p.state = waitCks
		} else {
			p.state = inPayload
		}
	case inPayload:
		p.payload = append(p.payload, b)
		p.cks ^= b
		if len(p.payload) == p.length-1 {
			p.state = waitCks
		}
	case waitCks:
		p.state = waitSOF0
		if b != p.cks {
			return Frame{}, false, ErrChecksum
		}
		return Frame{Cmd: p.cmd, Payload: p.payload}, true, nil
	}
	return Frame{}, false, nil
}
