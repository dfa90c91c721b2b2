// Package command is the in-band command interpreter: a prefix-keyed state
// machine for interactive commands and their single-byte sub-commands,
// dispatched through a flat table keyed by command byte.
package command

import (
	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/lines"
	"github.com/comterm/comterm/internal/session"
	"github.com/comterm/comterm/internal/transfer"
	"github.com/comterm/comterm/internal/transform"
	"github.com/comterm/comterm/serial"
)

// SubState tracks which sub-command, if any, is waiting for its follow-up
// byte.
type SubState int

const (
	SubNone SubState = iota
	SubLineToggle
	SubLinePulse
	SubXmodemChoose
	SubFilenameLog
	SubFilenameTransfer
)

// Collaborators bundles the external pieces the interpreter drives: log
// file open/close, script launch, transfer send, and process exit. Each is
// a thin function so internal/command never imports internal/engine or
// cmd/comterm.
type Collaborators struct {
	OpenLog   func(path string) error
	CloseLog  func() error
	RunScript func(path string) error
	SendFile  func(path string, proto transfer.Protocol) error
	Exit      func(code int)
}

// Dispatcher holds everything the flat command table needs to act, plus
// the sub-command/prefix state tracked between bytes.
type Dispatcher struct {
	Opts     *config.Options
	Port     *serial.Port
	Staging  *serial.Staging
	Lines    *lines.Controller
	Deferred *lines.Deferred
	Session  *session.State
	Diag     *diag.Diag
	Render   func(b byte) // local terminal sink for echo and status text
	Collab   Collaborators

	sub          SubState
	prev         byte
	filename     []byte
	pendingProto transfer.Protocol
	hexA         transform.HexAccumulator
	le           LineEditor
}

// New builds a Dispatcher for the given collaborators.
func New(opts *config.Options, port *serial.Port, staging *serial.Staging,
	lc *lines.Controller, def *lines.Deferred, sess *session.State,
	d *diag.Diag, render func(byte), collab Collaborators) *Dispatcher {
	return &Dispatcher{
		Opts: opts, Port: port, Staging: staging, Lines: lc, Deferred: def,
		Session: sess, Diag: d, Render: render, Collab: collab,
	}
}

// InSub reports whether a sub-command is in progress; the caller routes the
// next byte to HandleSub unconditionally when this is true.
func (d *Dispatcher) InSub() bool { return d.sub != SubNone }
