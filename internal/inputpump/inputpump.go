// Package inputpump runs the dedicated input-reading task: it pumps the
// local input stream into a pipe whose read end becomes the event loop's
// canonical input source, stores the abort hot-key while a transfer is
// blocking the main task, and recognises the two pump-level prefix
// commands (prefix+q immediate exit, prefix+F flush) that must keep
// working even when the main task is suspended.
package inputpump

import (
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/session"
)

const bufSize = 8192

// Hooks are the pump's outward edges: Exit terminates the process through
// the registered restore hooks, Flush tcflushes both device directions.
type Hooks struct {
	Exit  func(code int)
	Flush func()
}

// Pump owns the write end of the pipe; the read end belongs to the event
// loop.
type Pump struct {
	r     *os.File
	w     *os.File
	ready chan struct{}
}

// Start creates the pipe and launches the pump goroutine over in. The
// prefix recognizer is active only when interactive and prefixEnabled; the
// ready channel closes once the pipe exists, so the caller can only enter
// wait/connect after the input path is wired.
func Start(in io.Reader, hot *session.HotKey, d *diag.Diag,
	interactive, prefixEnabled bool, prefixCode byte, hooks Hooks) (*Pump, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	p := &Pump{r: r, w: w, ready: make(chan struct{})}
	go p.run(in, hot, d, interactive && prefixEnabled, prefixCode, hooks)
	return p, nil
}

// ReadFd returns the pipe's read end for the event loop's poll set.
func (p *Pump) ReadFd() int { return int(p.r.Fd()) }

// Reader returns the pipe's read end.
func (p *Pump) Reader() *os.File { return p.r }

// WaitReady blocks until the pipe is created and the pump is reading.
func (p *Pump) WaitReady() { <-p.ready }

func (p *Pump) run(in io.Reader, hot *session.HotKey, d *diag.Diag,
	prefixActive bool, prefixCode byte, hooks Hooks) {
	close(p.ready)
	defer p.w.Close()

	buf := make([]byte, bufSize)
	prefixHeld := false
	for {
		n, err := in.Read(buf)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			if err != io.EOF {
				d.Warn("input stream error: %v", err)
			}
			// EOF: closing the write end makes the event loop observe
			// readable+zero-bytes and treat it as end-of-input.
			return
		}
		for _, b := range buf[:n] {
			// A keystroke during a blocking transfer is consumed here so
			// the transfer adapter can observe it and abort.
			if hot.Set(b) {
				continue
			}
			if prefixActive {
				if prefixHeld {
					prefixHeld = false
					switch b {
					case 'q':
						hooks.Exit(0)
						return
					case 'F':
						hooks.Flush()
						continue
					default:
						p.w.Write([]byte{prefixCode})
					}
				} else if b == prefixCode {
					prefixHeld = true
					continue
				}
			}
			p.w.Write([]byte{b})
		}
	}
}
