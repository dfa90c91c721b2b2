package script

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/lines"
	"github.com/comterm/comterm/internal/session"
	"github.com/comterm/comterm/serial"
)

func newBridge(t *testing.T) (*Bridge, *serial.Port) {
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

	lc := lines.New(master)
	b := &Bridge{
		Port:     master,
		Lines:    lc,
		Deferred: lines.NewDeferred(lc),
		Sess:     session.New(),
		Diag:     diag.New(&bytes.Buffer{}, false),
		Out:      &bytes.Buffer{},
	}
	return b, slave
}

func readAll(t *testing.T, p *serial.Port, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		rn, err := p.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		out = append(out, buf[:rn]...)
	}
	return out
}

func TestSendWritesToDevice(t *testing.T) {
	b, slave := newBridge(t)
	require.NoError(t, b.RunInline(`n = send("hello")`))
	require.Equal(t, "hello", string(readAll(t, slave, 5)))
	require.Equal(t, uint64(5), b.Sess.Counters.Tx())
}

func TestExpectMatches(t *testing.T) {
	b, slave := newBridge(t)
	go func() {
		time.Sleep(50 * time.Millisecond)
		slave.Write([]byte("boot... ok done"))
	}()
	require.NoError(t, b.RunInline(`
if expect("ok", 2000) == 1 then
  send("YES")
else
  send("NO")
end`))
	require.Equal(t, "YES", string(readAll(t, slave, 3)))
}

func TestExpectTimeoutReturnsZero(t *testing.T) {
	b, slave := newBridge(t)
	start := time.Now()
	require.NoError(t, b.RunInline(`
r = expect("ready", 200)
send("R" .. tostring(r))`))
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
	require.Equal(t, "R0", string(readAll(t, slave, 2)))
	require.Empty(t, b.Sess.RecvWindow.Bytes(), "window empty after silent expect")
}

func TestExpectBadPatternReturnsMinusOne(t *testing.T) {
	b, slave := newBridge(t)
	require.NoError(t, b.RunInline(`
r = expect("ok[", 100)
send("R" .. tostring(r))`))
	require.Equal(t, "R-1", string(readAll(t, slave, 3)))
}

func TestExpectNonStringPatternReturnsMinusOne(t *testing.T) {
	b, slave := newBridge(t)
	require.NoError(t, b.RunInline(`
r = expect(42, 100)
send("R" .. tostring(r))`))
	require.Equal(t, "R-1", string(readAll(t, slave, 3)))
}

func TestExpectClearsWindowAtStart(t *testing.T) {
	b, slave := newBridge(t)
	b.Sess.RecvWindow.Append('x')
	go func() {
		time.Sleep(50 * time.Millisecond)
		slave.Write([]byte("ab"))
	}()
	require.NoError(t, b.RunInline(`expect("ab", 2000)`))
	require.Equal(t, "ab", string(b.Sess.RecvWindow.Bytes()))
}

func TestSleepNegativeIsNoOp(t *testing.T) {
	b, _ := newBridge(t)
	start := time.Now()
	require.NoError(t, b.RunInline(`sleep(-5) msleep(-100)`))
	require.Less(t, time.Since(start), time.Second)
}

func TestMsleepBlocks(t *testing.T) {
	b, _ := newBridge(t)
	start := time.Now()
	require.NoError(t, b.RunInline(`msleep(100)`))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLineMaskGlobalsInjected(t *testing.T) {
	b, slave := newBridge(t)
	require.NoError(t, b.RunInline(`send(tostring(DTR) .. "," .. tostring(YMODEM))`))
	want := []byte("2,3")
	require.Equal(t, string(want), string(readAll(t, slave, len(want))))
}

func TestExitCallsHook(t *testing.T) {
	b, _ := newBridge(t)
	var code = -1
	b.ExitFn = func(c int) { code = c }
	require.NoError(t, b.RunInline(`exit(3)`))
	require.Equal(t, 3, code)
}
