package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comterm/comterm/internal/config"
)

func render(b byte, flags config.MapFlag, hex bool) []byte {
	var out []byte
	Render(b, flags, hex, func(o byte) { out = append(out, o) })
	return out
}

func forward(b byte, flags config.MapFlag) ([]byte, ForwardResult, bool) {
	var out []byte
	res, twice := Forward(b, flags, func(o byte) { out = append(out, o) })
	return out, res, twice
}

func TestMSB2LSBTwiceIsIdentity(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		once := reverseByte(b)
		require.Equal(t, b, reverseByte(once), "byte %#x", b)
	}
}

func TestRenderMSB2LSBWinsOverNewline(t *testing.T) {
	// With MSB2LSB set, INLCRNL and IFFESCC must not fire.
	out := render('\n', config.MapMSB2LSB|config.MapINLCRNL, false)
	require.Equal(t, []byte{reverseByte('\n')}, out)

	out = render(0x0c, config.MapMSB2LSB|config.MapIFFESCC, false)
	require.Equal(t, []byte{reverseByte(0x0c)}, out)
}

func TestRenderNewlineNormalisation(t *testing.T) {
	var out []byte
	for _, b := range []byte("A\nB") {
		out = append(out, render(b, config.MapINLCRNL, false)...)
	}
	require.Equal(t, "A\r\nB", string(out))
}

func TestRenderFormFeedClearsScreen(t *testing.T) {
	out := render(0x0c, config.MapIFFESCC, false)
	require.Equal(t, []byte{0x1b, 'c'}, out)
}

func TestRenderHexMode(t *testing.T) {
	out := render(0x41, 0, true)
	require.Equal(t, "41 ", string(out))
	out = render(0x0f, 0, true)
	require.Equal(t, "0F ", string(out))
}

func TestForwardDELToBackspace(t *testing.T) {
	out, res, _ := forward(127, config.MapODELBS)
	require.Equal(t, ForwardByte, res)
	require.Equal(t, []byte{'\b'}, out)

	// Without the flag, DEL passes through.
	out, _, _ = forward(127, 0)
	require.Equal(t, []byte{127}, out)
}

func TestForwardCRToNL(t *testing.T) {
	out, _, _ := forward('\r', config.MapOCRNL)
	require.Equal(t, []byte{'\n'}, out)
}

func TestForwardNLToCRLF(t *testing.T) {
	out, res, twice := forward('\n', config.MapONLCRNL)
	require.Equal(t, ForwardByte, res)
	require.True(t, twice)
	require.Equal(t, []byte{'\r', '\n'}, out)

	out, _, _ = forward('\r', config.MapONLCRNL)
	require.Equal(t, []byte{'\r', '\n'}, out)
}

func TestForwardNULAsBreak(t *testing.T) {
	out, res, _ := forward(0, config.MapONULBRK)
	require.Equal(t, ForwardBreak, res)
	require.Empty(t, out)

	out, res, _ = forward(0, 0)
	require.Equal(t, ForwardByte, res)
	require.Equal(t, []byte{0}, out)
}

func TestForwardPlainBytesUntouched(t *testing.T) {
	// Without any flags, every byte value passes through unchanged.
	for i := 0; i < 256; i++ {
		out, res, twice := forward(byte(i), 0)
		require.Equal(t, ForwardByte, res)
		require.False(t, twice)
		require.Equal(t, []byte{byte(i)}, out, "byte %#x", i)
	}
}

func TestUpperCase(t *testing.T) {
	buf := []byte("Hello, World! 123 {}")
	UpperCase(buf)
	require.Equal(t, "HELLO, WORLD! 123 {}", string(buf))
}

func TestHexAccumulator(t *testing.T) {
	var h HexAccumulator

	_, complete, ok := h.Push('4')
	require.True(t, ok)
	require.False(t, complete)
	require.True(t, h.Pending())

	v, complete, ok := h.Push('1')
	require.True(t, ok)
	require.True(t, complete)
	require.Equal(t, byte(0x41), v)
	require.False(t, h.Pending())

	// Lower-case digits and a reset mid-pair.
	_, _, ok = h.Push('f')
	require.True(t, ok)
	h.Reset()
	require.False(t, h.Pending())

	_, _, ok = h.Push('g')
	require.False(t, ok)
}

func TestParseHexByte(t *testing.T) {
	v, err := ParseHexByte("7f")
	require.NoError(t, err)
	require.Equal(t, byte(0x7f), v)

	_, err = ParseHexByte("xyz")
	require.Error(t, err)
	_, err = ParseHexByte("g0")
	require.Error(t, err)
}
