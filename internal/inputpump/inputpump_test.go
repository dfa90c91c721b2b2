package inputpump

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/session"
)

func discardDiag() *diag.Diag { return diag.New(&bytes.Buffer{}, false) }

func TestPumpForwardsBytesAndClosesOnEOF(t *testing.T) {
	hot := session.NewHotKey()
	p, err := Start(bytes.NewReader([]byte("abc")), hot, discardDiag(),
		false, false, 0x14, Hooks{})
	require.NoError(t, err)
	p.WaitReady()

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestPumpPrefixQuitExitsImmediately(t *testing.T) {
	exited := make(chan int, 1)
	hot := session.NewHotKey()
	_, err := Start(bytes.NewReader([]byte{0x14, 'q'}), hot, discardDiag(),
		true, true, 0x14, Hooks{Exit: func(code int) { exited <- code }})
	require.NoError(t, err)

	select {
	case code := <-exited:
		require.Zero(t, code)
	case <-time.After(2 * time.Second):
		t.Fatal("prefix+q did not exit")
	}
}

func TestPumpPrefixFlushSwallowsPair(t *testing.T) {
	flushed := make(chan struct{}, 1)
	hot := session.NewHotKey()
	p, err := Start(bytes.NewReader([]byte{0x14, 'F', 'z'}), hot, discardDiag(),
		true, true, 0x14, Hooks{Flush: func() { flushed <- struct{}{} }})
	require.NoError(t, err)

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	require.Equal(t, []byte{'z'}, got, "prefix+F is handled in the pump, not forwarded")

	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("flush hook not called")
	}
}

func TestPumpPrefixOtherCommandForwardedForInterpreter(t *testing.T) {
	hot := session.NewHotKey()
	p, err := Start(bytes.NewReader([]byte{0x14, 's'}), hot, discardDiag(),
		true, true, 0x14, Hooks{})
	require.NoError(t, err)

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	require.Equal(t, []byte{0x14, 's'}, got)
}

func TestPumpPrefixLiteralPairForwarded(t *testing.T) {
	hot := session.NewHotKey()
	p, err := Start(bytes.NewReader([]byte{0x14, 0x14, 'X'}), hot, discardDiag(),
		true, true, 0x14, Hooks{})
	require.NoError(t, err)

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	require.Equal(t, []byte{0x14, 0x14, 'X'}, got,
		"the literal pair reaches the interpreter untouched")
}

func TestPumpCapturesHotKeyWhileArmed(t *testing.T) {
	hot := session.NewHotKey()
	hot.Arm()
	p, err := Start(bytes.NewReader([]byte("ab")), hot, discardDiag(),
		false, false, 0x14, Hooks{})
	require.NoError(t, err)

	got, err := io.ReadAll(p.Reader())
	require.NoError(t, err)
	require.Equal(t, "b", string(got), "first byte is captured, not forwarded")

	b, ok := hot.Take()
	require.True(t, ok)
	require.Equal(t, byte('a'), b)
}
