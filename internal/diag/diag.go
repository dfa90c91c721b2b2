// Package diag routes diagnostics: severity-prefixed messages, coloured
// status/help text, and the --mute suppression switch.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Diag is a small façade over a logrus.Logger plus a mute flag; every
// component that needs to print a diagnostic takes a *Diag rather than
// reaching for a package-level logger.
type Diag struct {
	log  *logrus.Logger
	mute bool
}

// New builds a Diag writing to out (os.Stderr in production, a buffer in
// tests) with the given initial mute state.
func New(out io.Writer, mute bool) *Diag {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return &Diag{log: l, mute: mute}
}

// SetMute changes the --mute state at runtime.
func (d *Diag) SetMute(m bool) { d.mute = m }

// Muted reports the current --mute state.
func (d *Diag) Muted() bool { return d.mute }

// Warn prints a warning diagnostic; suppressed entirely under --mute.
func (d *Diag) Warn(format string, args ...any) {
	if d.mute {
		return
	}
	d.log.Warnf(format, args...)
}

// Error prints an error diagnostic; never suppressed, since fatal/runtime
// errors must surface regardless of --mute.
func (d *Diag) Error(format string, args ...any) {
	d.log.Errorf(format, args...)
}

// Fatal prints an error diagnostic and exits the process with status 1,
// for configuration and device-setup failures.
func (d *Diag) Fatal(format string, args ...any) {
	d.log.Errorf(format, args...)
	os.Exit(1)
}

// Status prints an uncoloured-by-default status line (config dump, stats,
// version, help) styled per the --color option; suppressed under --mute.
func (d *Diag) Status(c *color.Color, format string, args ...any) {
	if d.mute {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if c != nil {
		c.Fprintln(d.log.Out, msg)
		return
	}
	fmt.Fprintln(d.log.Out, msg)
}

// ColorForIndex resolves the -c/--color option (0..255, "bold", or "none")
// to a *color.Color, or nil for "none"/unset.
func ColorForIndex(spec string) *color.Color {
	switch spec {
	case "", "none":
		return nil
	case "bold":
		return color.New(color.Bold)
	}
	var idx int
	if _, err := fmt.Sscanf(spec, "%d", &idx); err != nil || idx < 0 || idx > 255 {
		return nil
	}
	return color.New(color.Attribute(38), color.Attribute(5), color.Attribute(idx))
}
