package command

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/lines"
	"github.com/comterm/comterm/internal/session"
	"github.com/comterm/comterm/internal/transfer"
	"github.com/comterm/comterm/serial"
)

type rig struct {
	disp    *Dispatcher
	opts    *config.Options
	slave   *serial.Port
	staging *serial.Staging
	echo    *bytes.Buffer
	sess    *session.State
}

func newRig(t *testing.T) *rig {
	t.Helper()
	raw := &serial.Termios{}
	raw.MakeRaw()
	raw.Cflag |= serial.CREAD | serial.CLOCAL
	raw.Cc[serial.VMIN] = 1
	master, slave, err := serial.OpenPTY(raw, nil)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})

	opts := config.Default()
	sess := session.New()
	echo := &bytes.Buffer{}
	staging := serial.NewStaging(master)
	lc := lines.New(master)
	disp := New(opts, master, staging, lc, lines.NewDeferred(lc), sess,
		diag.New(&bytes.Buffer{}, false),
		func(b byte) { echo.WriteByte(b) },
		Collaborators{
			Exit: func(int) {},
		})
	return &rig{disp: disp, opts: opts, slave: slave, staging: staging, echo: echo, sess: sess}
}

func (r *rig) readDevice(t *testing.T, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		rn, err := r.slave.ReadTimeout(buf, time.Second)
		require.NoError(t, err)
		out = append(out, buf[:rn]...)
	}
	return out
}

func TestPrefixLiteralForwardsPrefixByte(t *testing.T) {
	r := newRig(t)
	p := r.opts.PrefixCode

	require.NoError(t, r.disp.Process(p))
	require.NoError(t, r.disp.Process(p))
	require.NoError(t, r.disp.Process('X'))
	require.NoError(t, r.staging.Sync())

	got := r.readDevice(t, 2)
	require.Equal(t, []byte{p, 'X'}, got)
	require.Equal(t, uint64(2), r.sess.Counters.Tx())
}

func TestPrefixCommandDispatch(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.disp.Process(r.opts.PrefixCode))
	require.NoError(t, r.disp.Process('s'))
	require.Contains(t, r.echo.String(), "rx=0")

	// The prefix pair was consumed, nothing reached the device.
	require.Zero(t, r.staging.Count())
}

func TestPrefixToggleEcho(t *testing.T) {
	r := newRig(t)
	require.False(t, r.opts.Snapshot().LocalEcho)

	require.NoError(t, r.disp.Process(r.opts.PrefixCode))
	require.NoError(t, r.disp.Process('e'))
	require.True(t, r.opts.Snapshot().LocalEcho)
}

func TestHexInputCombinesNibbles(t *testing.T) {
	r := newRig(t)
	r.opts.InputMode = config.InputHex

	require.NoError(t, r.disp.Process('4'))
	require.NoError(t, r.disp.Process('1'))
	require.NoError(t, r.staging.Sync())

	got := r.readDevice(t, 1)
	require.Equal(t, []byte{0x41}, got)
	// Echoed digits followed by the erase sequence.
	require.True(t, bytes.HasPrefix(r.echo.Bytes(), []byte("41")))
	require.Contains(t, r.echo.String(), "\b\b")
}

func TestHexInputInvalidDigitBells(t *testing.T) {
	r := newRig(t)
	r.opts.InputMode = config.InputHex

	require.NoError(t, r.disp.Process('g'))
	require.Equal(t, []byte{7}, r.echo.Bytes())
	require.Zero(t, r.staging.Count())
}

func TestLineModeTransmitsOnCR(t *testing.T) {
	r := newRig(t)
	r.opts.InputMode = config.InputLine

	require.NoError(t, r.disp.Process('h'))
	require.NoError(t, r.disp.Process('i'))
	require.NoError(t, r.disp.Process('\r'))

	got := r.readDevice(t, 3)
	require.Equal(t, []byte("hi\r"), got)
	require.Equal(t, "hi\r\n", r.echo.String())
	require.Zero(t, r.staging.Count(), "line mode flushes staging on CR")
}

func TestLineModeBackspaceAndArrows(t *testing.T) {
	r := newRig(t)
	r.opts.InputMode = config.InputLine

	require.NoError(t, r.disp.Process('a'))
	require.NoError(t, r.disp.Process('b'))
	// Up-arrow: ESC [ A, swallowed whole.
	require.NoError(t, r.disp.Process(0x1b))
	require.NoError(t, r.disp.Process('['))
	require.NoError(t, r.disp.Process('A'))
	// Rub out the 'b'.
	require.NoError(t, r.disp.Process(127))
	require.NoError(t, r.disp.Process('\r'))

	got := r.readDevice(t, 2)
	require.Equal(t, []byte("a\r"), got)
}

func TestForwardCRLFExpansionEchoesTwice(t *testing.T) {
	r := newRig(t)
	r.opts.Map = config.MapONLCRNL
	r.opts.LocalEcho = true

	require.NoError(t, r.disp.Process('\n'))
	require.Equal(t, 2, r.staging.Count(), "CRLF staged atomically")
	require.NoError(t, r.staging.Sync())

	got := r.readDevice(t, 2)
	require.Equal(t, []byte("\r\n"), got)
	require.Equal(t, []byte("\n\n"), r.echo.Bytes())
}

func TestOLTUAppliedOnWritePath(t *testing.T) {
	r := newRig(t)
	r.opts.Map = config.MapOLTU

	require.NoError(t, r.disp.Process('a'))
	require.NoError(t, r.staging.Sync())

	got := r.readDevice(t, 1)
	require.Equal(t, []byte("A"), got)
}

func TestInvalidLineDigitWarnsAndDiscards(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.disp.Process(r.opts.PrefixCode))
	require.NoError(t, r.disp.Process('g'))
	require.True(t, r.disp.InSub())
	require.NoError(t, r.disp.Process('9'))
	require.False(t, r.disp.InSub(), "sub-command consumes exactly one byte")
	require.Zero(t, r.staging.Count())
}

func TestXmodemChooseRoutesProtocol(t *testing.T) {
	r := newRig(t)
	var gotPath string
	var gotProto transfer.Protocol
	r.disp.Collab.SendFile = func(path string, proto transfer.Protocol) error {
		gotPath = path
		gotProto = proto
		return nil
	}

	require.NoError(t, r.disp.Process(r.opts.PrefixCode))
	require.NoError(t, r.disp.Process('x'))
	require.NoError(t, r.disp.Process('1')) // XMODEM-CRC
	for _, b := range []byte("fw.bin") {
		require.NoError(t, r.disp.Process(b))
	}
	require.NoError(t, r.disp.Process('\r'))

	require.Equal(t, "fw.bin", gotPath)
	require.Equal(t, transfer.XMODEMCRC, gotProto)
	require.Contains(t, r.echo.String(), "Done")
}

func TestYmodemFilenameEditor(t *testing.T) {
	r := newRig(t)
	var gotPath string
	var gotProto transfer.Protocol
	r.disp.Collab.SendFile = func(path string, proto transfer.Protocol) error {
		gotPath = path
		gotProto = proto
		return nil
	}

	require.NoError(t, r.disp.Process(r.opts.PrefixCode))
	require.NoError(t, r.disp.Process('y'))
	// Type "ab", rub out the 'b', type 'c', then CR.
	require.NoError(t, r.disp.Process('a'))
	require.NoError(t, r.disp.Process('b'))
	require.NoError(t, r.disp.Process(127))
	require.NoError(t, r.disp.Process('c'))
	require.NoError(t, r.disp.Process('\r'))

	require.Equal(t, "ac", gotPath)
	require.Equal(t, transfer.YMODEM, gotProto)
}
