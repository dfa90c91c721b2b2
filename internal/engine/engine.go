// Package engine is the session's multiplexed event loop: a poll(2)
// readiness wait over the device fd, the input-pipe read end, and any
// control-socket descriptors, dispatching to the transform pipeline, the
// command interpreter, the log writer and the socket tap.
package engine

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/session"
	"github.com/comterm/comterm/internal/socketmux"
	"github.com/comterm/comterm/serial"
)

const bufSize = 8192

// Sentinel results of a Run; the caller maps them onto reconnects and exit
// codes.
var (
	// ErrDeviceGone is returned on device read error or EOF; with
	// auto-connect enabled the caller re-enters wait-for-device.
	ErrDeviceGone = errors.New("device read error")
	// ErrInputEOF is returned when the local input stream ends; the caller
	// exits with status 0.
	ErrInputEOF = errors.New("end of input")
	// ErrResponseTimeout is returned when response-wait mode sees no CR/LF
	// within the configured timeout; the caller exits non-zero.
	ErrResponseTimeout = errors.New("response timeout")
)

// Engine wires the loop's collaborators together. Process is the command
// interpreter's per-byte entry point; Render the device-side render sink.
type Engine struct {
	Port         *serial.Port
	Staging      *serial.Staging
	Sess         *session.State
	Diag         *diag.Diag
	Render       *Renderer
	Process      func(b byte) error
	Input        *os.File
	Mux          *socketmux.Mux
	ResponseWait bool
	ResponseMs   int
}

// Run blocks until the session ends: device gone, input EOF,
// response-wait completion or timeout. A nil return is a successful
// response-wait exit.
func (e *Engine) Run() error {
	inputOpen := e.Input != nil
	devBuf := make([]byte, bufSize)
	inBuf := make([]byte, bufSize)

	for {
		fds := make([]unix.PollFd, 0, 8)
		fds = append(fds, unix.PollFd{Fd: int32(e.Port.Fd()), Events: unix.POLLIN})
		inputIdx := -1
		if inputOpen {
			inputIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(e.Input.Fd()), Events: unix.POLLIN})
		}
		sockStart := len(fds)
		if e.Mux != nil {
			for _, fd := range e.Mux.Fds() {
				fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
			}
		}

		timeout := -1
		if e.ResponseWait {
			timeout = e.ResponseMs
		}
		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			if e.ResponseWait {
				return ErrResponseTimeout
			}
			continue
		}

		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			rn, rerr := e.Port.Read(devBuf)
			if rn <= 0 || rerr != nil {
				return ErrDeviceGone
			}
			e.Sess.Counters.AddRx(rn)
			for _, b := range devBuf[:rn] {
				e.Render.Device(b)
				if e.ResponseWait && (b == '\r' || b == '\n') {
					e.Staging.Sync()
					return nil
				}
			}
		}

		if inputIdx >= 0 && fds[inputIdx].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			rn, rerr := e.Input.Read(inBuf)
			if rn <= 0 || rerr != nil {
				// Pump closed its write end: end of local input.
				if err := e.Staging.Sync(); err != nil {
					return err
				}
				if e.ResponseWait {
					// Keep waiting for the device's reply.
					inputOpen = false
					continue
				}
				return ErrInputEOF
			}
			for _, b := range inBuf[:rn] {
				if err := e.Process(b); err != nil {
					return err
				}
			}
			if err := e.Staging.Sync(); err != nil {
				return err
			}
		}

		if e.Mux != nil {
			for i := sockStart; i < len(fds); i++ {
				if fds[i].Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
					continue
				}
				data := e.Mux.HandleReadable(int(fds[i].Fd))
				for _, b := range data {
					if err := e.Process(b); err != nil {
						return err
					}
				}
				if len(data) > 0 {
					if err := e.Staging.Sync(); err != nil {
						return err
					}
				}
			}
		}
	}
}
