// Package console places the controlling terminal into raw mode on entry
// and restores it on exit under every exit path. It reuses the serial
// package's fd-scoped termios helpers rather than introducing a second
// termios binding.
package console

import (
	"os"

	"github.com/comterm/comterm/serial"
)

// Console holds the saved stdin/stdout termios for restoration.
type Console struct {
	savedIn     *serial.Termios
	savedOut    *serial.Termios
	interactive bool
}

// Setup saves the termios of stdin and stdout once and switches both to
// raw. When stdin is piped (non-interactive), ISIG stays enabled on stdout
// so ^C still terminates the process. A piped stdin or stdout is simply
// skipped; Setup only fails on a genuine termios set failure.
func Setup() (*Console, error) {
	c := &Console{}
	inFd := int(os.Stdin.Fd())
	outFd := int(os.Stdout.Fd())

	if t, err := serial.GetAttrFd(inFd); err == nil {
		c.interactive = true
		c.savedIn = t
		raw := *t
		raw.MakeRaw()
		if err := serial.SetAttrFd(inFd, serial.TCSANOW, &raw); err != nil {
			return nil, err
		}
	}
	if t, err := serial.GetAttrFd(outFd); err == nil {
		c.savedOut = t
		raw := *t
		raw.MakeRaw()
		if !c.interactive {
			raw.Lflag |= serial.ISIG
		}
		if err := serial.SetAttrFd(outFd, serial.TCSANOW, &raw); err != nil {
			c.Restore()
			return nil, err
		}
	}
	return c, nil
}

// Interactive reports whether stdin is a terminal.
func (c *Console) Interactive() bool { return c.interactive }

// Restore replays the saved termios on stdin and stdout. Safe to call more
// than once and from any exit path.
func (c *Console) Restore() {
	if c.savedIn != nil {
		serial.SetAttrFd(int(os.Stdin.Fd()), serial.TCSANOW, c.savedIn)
	}
	if c.savedOut != nil {
		serial.SetAttrFd(int(os.Stdout.Fd()), serial.TCSANOW, c.savedOut)
	}
}
