// Package alert fires the configured bell or visual blink on device
// connect and disconnect.
package alert

import (
	"io"
	"time"

	"github.com/comterm/comterm/internal/config"
)

// Alerter writes the configured alert sequence to the terminal.
type Alerter struct {
	mode config.AlertMode
	out  io.Writer
}

// New builds an Alerter in the given mode writing to out.
func New(mode config.AlertMode, out io.Writer) *Alerter {
	return &Alerter{mode: mode, out: out}
}

// Connect fires the connect alert.
func (a *Alerter) Connect() { a.fire() }

// Disconnect fires the disconnect alert.
func (a *Alerter) Disconnect() { a.fire() }

func (a *Alerter) fire() {
	switch a.mode {
	case config.AlertBell:
		a.out.Write([]byte{7})
	case config.AlertBlink:
		a.out.Write([]byte("\x1b[?5h"))
		time.Sleep(100 * time.Millisecond)
		a.out.Write([]byte("\x1b[?5l"))
	}
}
