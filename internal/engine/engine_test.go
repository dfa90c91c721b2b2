package engine

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/session"
	"github.com/comterm/comterm/internal/transform"
	"github.com/comterm/comterm/serial"
)

type engineRig struct {
	eng   *Engine
	opts  *config.Options
	slave *serial.Port
	out   *bytes.Buffer
	inW   *os.File
}

func newEngineRig(t *testing.T) *engineRig {
	t.Helper()
	raw := &serial.Termios{}
	raw.MakeRaw()
	raw.Cflag |= serial.CREAD | serial.CLOCAL
	raw.Cc[serial.VMIN] = 1
	master, slave, err := serial.OpenPTY(raw, nil)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	inR, inW, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		master.Close()
		slave.Close()
		inR.Close()
		inW.Close()
	})

	opts := config.Default()
	out := &bytes.Buffer{}
	staging := serial.NewStaging(master)
	sess := session.New()
	renderer := &Renderer{Opts: opts, Out: out}
	eng := &Engine{
		Port:    master,
		Staging: staging,
		Sess:    sess,
		Diag:    diag.New(&bytes.Buffer{}, false),
		Render:  renderer,
		Process: func(b byte) error { return staging.Write([]byte{b}) },
		Input:   inR,
	}
	return &engineRig{eng: eng, opts: opts, slave: slave, out: out, inW: inW}
}

func TestResponseWaitHappyPath(t *testing.T) {
	r := newEngineRig(t)
	r.eng.ResponseWait = true
	r.eng.ResponseMs = 2000

	go func() {
		r.inW.Write([]byte("*IDN?\n"))
		r.inW.Close()
		// Device answers once the query arrives.
		buf := make([]byte, 6)
		got := 0
		for got < 6 {
			n, err := r.slave.ReadTimeout(buf[got:], 2*time.Second)
			if err != nil {
				return
			}
			got += n
		}
		r.slave.Write([]byte("MODEL X\r\n"))
	}()

	err := r.eng.Run()
	require.NoError(t, err, "CR/LF from the device is a successful exit")
	require.Contains(t, r.out.String(), "MODEL X")
}

func TestResponseWaitTimeout(t *testing.T) {
	r := newEngineRig(t)
	r.eng.ResponseWait = true
	r.eng.ResponseMs = 200
	r.inW.Close() // piped input already exhausted

	start := time.Now()
	err := r.eng.Run()
	require.ErrorIs(t, err, ErrResponseTimeout)
	require.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestInputEOFExitsAfterFlush(t *testing.T) {
	r := newEngineRig(t)
	r.inW.Write([]byte("hi"))
	r.inW.Close()

	err := r.eng.Run()
	require.ErrorIs(t, err, ErrInputEOF)

	buf := make([]byte, 2)
	n, rerr := r.slave.ReadTimeout(buf, time.Second)
	require.NoError(t, rerr)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestDeviceGone(t *testing.T) {
	r := newEngineRig(t)
	r.slave.Close()

	err := r.eng.Run()
	require.ErrorIs(t, err, ErrDeviceGone)
}

func TestRxCounterAdvances(t *testing.T) {
	r := newEngineRig(t)
	r.eng.ResponseWait = true
	r.eng.ResponseMs = 2000
	r.inW.Close()

	go r.slave.Write([]byte("abc\r\n"))
	require.NoError(t, r.eng.Run())
	require.GreaterOrEqual(t, r.eng.Sess.Counters.Rx(), uint64(4))
}

func TestRendererNewlineNormalisation(t *testing.T) {
	opts := config.Default()
	opts.Map = config.MapINLCRNL
	out := &bytes.Buffer{}
	r := &Renderer{Opts: opts, Out: out}

	for _, b := range []byte("A\nB") {
		r.Device(b)
	}
	require.Equal(t, "A\r\nB", out.String())
}

func TestRendererHexOutput(t *testing.T) {
	opts := config.Default()
	opts.OutputMode = config.OutputHex
	out := &bytes.Buffer{}
	r := &Renderer{Opts: opts, Out: out}

	r.Device(0x41)
	require.Equal(t, "41 ", out.String())
}

func TestRendererTimestampInjection(t *testing.T) {
	opts := config.Default()
	opts.Timestamp = config.Timestamp24Hour
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	out := &bytes.Buffer{}
	r := &Renderer{
		Opts: opts,
		Out:  out,
		TS:   transform.NewTimestamper(opts.Timestamp, base),
		Now:  func() time.Time { return base },
	}

	for _, b := range []byte("x\ny") {
		r.Device(b)
	}
	require.Equal(t, "[10:00:00.000] x\n[10:00:00.000] y", out.String())
}

func TestRendererLogTap(t *testing.T) {
	opts := config.Default()
	out := &bytes.Buffer{}
	logBuf := &bytes.Buffer{}
	r := &Renderer{Opts: opts, Out: out}
	r.SetLog(logBuf)

	for _, b := range []byte("data") {
		r.Device(b)
	}
	require.Equal(t, "data", out.String())
	require.Equal(t, "data", logBuf.String(), "log receives the post-render bytes")

	r.SetLog(nil)
	r.Device('!')
	require.Equal(t, "data", logBuf.String())
}
