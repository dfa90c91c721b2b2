// Package script is the embedded scripting bridge: a gopher-lua VM bound
// to the open device, exposing an expect-style automation surface (sleep,
// send, expect, line ops, transfer, exit) with a rolling receive-window
// regex matcher.
package script

import (
	"io"
	"os"
	"regexp"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/lines"
	"github.com/comterm/comterm/internal/session"
	"github.com/comterm/comterm/internal/transfer"
	"github.com/comterm/comterm/serial"
)

// Bridge binds the device and its controllers into a Lua state.
type Bridge struct {
	Port     *serial.Port
	Lines    *lines.Controller
	Deferred *lines.Deferred
	Sess     *session.State
	Diag     *diag.Diag
	Transfer *transfer.Adapter
	Out      io.Writer
	ExitFn   func(code int)
}

// RunFile loads and executes the script at path.
func (b *Bridge) RunFile(path string) error {
	L := b.newState()
	defer L.Close()
	return L.DoFile(path)
}

// RunInline executes an inline script source.
func (b *Bridge) RunInline(source string) error {
	L := b.newState()
	defer L.Close()
	return L.DoString(source)
}

func (b *Bridge) newState() *lua.LState {
	L := lua.NewState()

	reg := func(name string, fn lua.LGFunction) {
		L.SetGlobal(name, L.NewFunction(fn))
	}
	reg("sleep", b.luaSleep)
	reg("msleep", b.luaMsleep)
	reg("high", b.luaHigh)
	reg("low", b.luaLow)
	reg("toggle", b.luaToggle)
	reg("config_high", b.luaConfigHigh)
	reg("config_low", b.luaConfigLow)
	reg("config_apply", b.luaConfigApply)
	reg("modem_send", b.luaModemSend)
	reg("send", b.luaSend)
	reg("expect", b.luaExpect)
	reg("exit", b.luaExit)

	// Symbolic line masks and protocol constants, injected as globals.
	L.SetGlobal("DTR", lua.LNumber(serial.TIOCM_DTR))
	L.SetGlobal("RTS", lua.LNumber(serial.TIOCM_RTS))
	L.SetGlobal("CTS", lua.LNumber(serial.TIOCM_CTS))
	L.SetGlobal("DSR", lua.LNumber(serial.TIOCM_DSR))
	L.SetGlobal("DCD", lua.LNumber(serial.TIOCM_CD))
	L.SetGlobal("RI", lua.LNumber(serial.TIOCM_RI))
	L.SetGlobal("XMODEM_1K", lua.LNumber(transfer.XMODEM1K))
	L.SetGlobal("XMODEM_CRC", lua.LNumber(transfer.XMODEMCRC))
	L.SetGlobal("YMODEM", lua.LNumber(transfer.YMODEM))
	return L
}

func (b *Bridge) luaSleep(L *lua.LState) int {
	s := float64(L.ToNumber(1))
	if s > 0 {
		time.Sleep(time.Duration(s * float64(time.Second)))
	}
	return 0
}

func (b *Bridge) luaMsleep(L *lua.LState) int {
	ms := float64(L.ToNumber(1))
	if ms > 0 {
		time.Sleep(time.Duration(ms * float64(time.Millisecond)))
	}
	return 0
}

func (b *Bridge) lineArg(L *lua.LState) (serial.ModemLine, bool) {
	mask := serial.ModemLine(L.ToInt(1))
	if mask == 0 {
		b.Diag.Warn("script: invalid line mask")
		return 0, false
	}
	return mask, true
}

func (b *Bridge) luaHigh(L *lua.LState) int {
	if mask, ok := b.lineArg(L); ok {
		if err := b.Lines.Set(mask, true); err != nil {
			b.Diag.Warn("script: line set: %v", err)
		}
	}
	return 0
}

func (b *Bridge) luaLow(L *lua.LState) int {
	if mask, ok := b.lineArg(L); ok {
		if err := b.Lines.Set(mask, false); err != nil {
			b.Diag.Warn("script: line set: %v", err)
		}
	}
	return 0
}

func (b *Bridge) luaToggle(L *lua.LState) int {
	if mask, ok := b.lineArg(L); ok {
		if err := b.Lines.Toggle(mask); err != nil {
			b.Diag.Warn("script: line toggle: %v", err)
		}
	}
	return 0
}

func (b *Bridge) luaConfigHigh(L *lua.LState) int {
	if mask, ok := b.lineArg(L); ok {
		b.Deferred.Stage(mask, true)
	}
	return 0
}

func (b *Bridge) luaConfigLow(L *lua.LState) int {
	if mask, ok := b.lineArg(L); ok {
		b.Deferred.Stage(mask, false)
	}
	return 0
}

func (b *Bridge) luaConfigApply(L *lua.LState) int {
	if err := b.Deferred.Apply(); err != nil {
		b.Diag.Warn("script: config apply: %v", err)
	}
	return 0
}

func (b *Bridge) luaModemSend(L *lua.LState) int {
	path := L.ToString(1)
	proto := transfer.Protocol(L.ToInt(2))
	err := b.Transfer.Send(path, proto)
	if err != nil {
		b.Diag.Warn("script: transfer: %v", err)
	}
	L.Push(lua.LBool(err == nil))
	return 1
}

// luaSend writes the string straight to the device, returning the write
// count or a negative value on error.
func (b *Bridge) luaSend(L *lua.LState) int {
	s := L.ToString(1)
	n, err := b.Port.Write([]byte(s))
	if err != nil {
		L.Push(lua.LNumber(-1))
		return 1
	}
	b.Sess.Counters.AddTx(n)
	L.Push(lua.LNumber(n))
	return 1
}

// expectPollStep bounds one ReadTimeout when the caller asked to wait
// forever (timeout 0); the loop simply re-arms.
const expectPollStep = time.Hour

// luaExpect implements expect(pattern, timeout_ms): compile the pattern as
// a POSIX extended regex, clear the rolling receive window, then read one
// device byte at a time with the given timeout, printing and appending each
// and matching the window after every byte. Returns 1 on match, 0 on
// timeout or read error, -1 on bad arguments or compile failure.
func (b *Bridge) luaExpect(L *lua.LState) int {
	if L.Get(1).Type() != lua.LTString {
		L.Push(lua.LNumber(-1))
		return 1
	}
	pattern := L.ToString(1)
	timeoutMs := L.ToInt(2)
	if timeoutMs < 0 {
		L.Push(lua.LNumber(-1))
		return 1
	}
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		b.Diag.Warn("script: bad expect pattern: %v", err)
		L.Push(lua.LNumber(-1))
		return 1
	}

	win := b.Sess.RecvWindow
	win.Reset()

	step := time.Duration(timeoutMs) * time.Millisecond
	forever := timeoutMs == 0
	if forever {
		step = expectPollStep
	}
	buf := make([]byte, 1)
	for {
		n, err := b.Port.ReadTimeout(buf, step)
		if err != nil || n <= 0 {
			if forever {
				continue
			}
			L.Push(lua.LNumber(0))
			return 1
		}
		b.Sess.Counters.AddRx(1)
		if b.Out != nil {
			b.Out.Write(buf[:1])
		}
		win.Append(buf[0])
		if re.Match(win.Bytes()) {
			L.Push(lua.LNumber(1))
			return 1
		}
	}
}

func (b *Bridge) luaExit(L *lua.LState) int {
	code := L.ToInt(1)
	if b.ExitFn != nil {
		b.ExitFn(code)
	} else {
		os.Exit(code)
	}
	return 0
}
