// Package transform implements the bidirectional, order-sensitive byte
// transformation pipeline: newline normalisation, DEL<->BS, upper-casing,
// bit-reversal, NUL-as-break, and hex parse/render.
package transform

import (
	"fmt"

	"github.com/comterm/comterm/internal/config"
)

// reverseTable is the bit-reversal lookup MSB2LSB uses on the render
// (device->local) path; applying it twice is the identity for every byte.
var reverseTable = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		b := byte(i)
		var r byte
		for bit := 0; bit < 8; bit++ {
			r <<= 1
			r |= b & 1
			b >>= 1
		}
		t[i] = r
	}
	return t
}()

func reverseByte(b byte) byte { return reverseTable[b] }

// Sink receives rendered bytes: the terminal, the log writer, the socket
// tap. Implementations must not block indefinitely.
type Sink interface {
	Write(p []byte) (int, error)
}

// Render applies the device->local filter chain to a single
// device-originated byte, emitting output through emit. MSB2LSB takes
// precedence over the newline and form-feed mappings. hexMode selects the
// hex renderer for pass-through bytes.
func Render(b byte, flags config.MapFlag, hexMode bool, emit func(byte)) {
	if flags.Has(config.MapMSB2LSB) {
		b = reverseByte(b)
		if hexMode {
			RenderHex(b, emit)
			return
		}
		emit(b)
		return
	}
	if flags.Has(config.MapINLCRNL) && b == '\n' {
		emit('\r')
		emit('\n')
		return
	}
	if flags.Has(config.MapIFFESCC) && b == 0x0c {
		emit(0x1b)
		emit('c')
		return
	}
	if hexMode {
		RenderHex(b, emit)
		return
	}
	emit(b)
}

// RenderHex emits b as two uppercase hex digits followed by a space.
func RenderHex(b byte, emit func(byte)) {
	const digits = "0123456789ABCDEF"
	emit(digits[b>>4])
	emit(digits[b&0xf])
	emit(' ')
}

// ForwardResult tells the caller what a forwarded local byte turned into.
type ForwardResult int

const (
	// ForwardByte means the (possibly transformed) byte should be written
	// to the device via the normal write path.
	ForwardByte ForwardResult = iota
	// ForwardBreak means tcsendbreak should be issued instead of a write
	// (NUL byte with ONULBRK).
	ForwardBreak
	// ForwardSuppressed means the byte produced no device-side effect.
	ForwardSuppressed
)

// Forward applies the local->device filter chain to a single
// locally-originated byte. out receives the byte(s) to write when the
// result is ForwardByte (a CRLF expansion yields two bytes, emitted
// atomically). echoTwice is set when an ONLCRNL expansion requires the
// caller to echo the input locally twice.
func Forward(b byte, flags config.MapFlag, out func(byte)) (result ForwardResult, echoTwice bool) {
	if b == 127 && flags.Has(config.MapODELBS) {
		out('\b')
		return ForwardByte, false
	}
	if b == '\r' && flags.Has(config.MapOCRNL) {
		out('\n')
		return ForwardByte, false
	}
	if (b == '\n' || b == '\r') && flags.Has(config.MapONLCRNL) {
		out('\r')
		out('\n')
		return ForwardByte, true
	}
	if b == 0 && flags.Has(config.MapONULBRK) {
		return ForwardBreak, false
	}
	out(b)
	return ForwardByte, false
}

// UpperCase applies OLTU across an entire outbound buffer; the write path
// runs it over whatever it is about to put on the wire.
func UpperCase(buf []byte) {
	for i, b := range buf {
		if b >= 'a' && b <= 'z' {
			buf[i] = b - ('a' - 'A')
		}
	}
}

// HexAccumulator is the two-nibble hex-input combiner: each user byte must
// be a hex digit; two consecutive digits combine MSB-nibble,LSB-nibble
// into one output byte.
type HexAccumulator struct {
	nibbles [2]byte
	n       int
}

// Push feeds one input byte. If b is not a valid hex digit, ok is false and
// the accumulator is unchanged (caller should bell). If two digits have now
// been accumulated, complete is true and value holds the combined byte; the
// accumulator resets for the next pair.
func (h *HexAccumulator) Push(b byte) (value byte, complete, ok bool) {
	nib, valid := hexNibble(b)
	if !valid {
		return 0, false, false
	}
	h.nibbles[h.n] = nib
	h.n++
	if h.n == 2 {
		v := h.nibbles[0]<<4 | h.nibbles[1]
		h.n = 0
		return v, true, true
	}
	return 0, false, true
}

// Reset clears any partially-accumulated nibble.
func (h *HexAccumulator) Reset() { h.n = 0 }

// Pending reports whether a first nibble is currently buffered.
func (h *HexAccumulator) Pending() bool { return h.n == 1 }

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// ParseHexByte parses a two-character hex string (e.g. "41") into a byte.
// It is not part of the interactive path.
func ParseHexByte(s string) (byte, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid hex byte %q", s)
	}
	hi, ok1 := hexNibble(s[0])
	lo, ok2 := hexNibble(s[1])
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("invalid hex byte %q", s)
	}
	return hi<<4 | lo, nil
}
