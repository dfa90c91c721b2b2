package command

import (
	"time"

	"github.com/comterm/comterm/internal/transfer"
	"github.com/comterm/comterm/serial"
)

// defaultPulseMs is used when no --line-pulse-duration was configured for
// the selected line.
const defaultPulseMs = 100

// HandleSub consumes one follow-up byte while a sub-command is pending.
// The line branches consume exactly one byte and return to SubNone; a valid
// xmodem choice moves on to the filename prompt, and the filename prompts
// keep consuming until CR.
func (d *Dispatcher) HandleSub(b byte) error {
	switch d.sub {
	case SubLineToggle:
		d.sub = SubNone
		return d.lineDigit(b, d.Lines.Toggle)
	case SubLinePulse:
		d.sub = SubNone
		return d.lineDigit(b, func(mask serial.ModemLine) error {
			ms := d.Opts.LinePulse[mask]
			if ms <= 0 {
				ms = defaultPulseMs
			}
			return d.Lines.Pulse(mask, time.Duration(ms)*time.Millisecond)
		})
	case SubXmodemChoose:
		d.sub = SubFilenameTransfer
		d.filename = nil
		switch b {
		case '0':
			d.pendingProto = transfer.XMODEM1K
		case '1':
			d.pendingProto = transfer.XMODEMCRC
		default:
			d.Diag.Warn("invalid xmodem choice %q", b)
			d.sub = SubNone
		}
		return nil
	case SubFilenameLog, SubFilenameTransfer:
		return d.editFilename(b)
	}
	return nil
}

// lineDigit maps a digit 0..5 onto DTR/RTS/CTS/DSR/DCD/RI and invokes fn.
func (d *Dispatcher) lineDigit(b byte, fn func(serial.ModemLine) error) error {
	mask, ok := digitToMask(b)
	if !ok {
		d.Diag.Warn("invalid line digit %q", b)
		return nil
	}
	return fn(mask)
}

func digitToMask(b byte) (serial.ModemLine, bool) {
	switch b {
	case '0':
		return serial.TIOCM_DTR, true
	case '1':
		return serial.TIOCM_RTS, true
	case '2':
		return serial.TIOCM_CTS, true
	case '3':
		return serial.TIOCM_DSR, true
	case '4':
		return serial.TIOCM_CD, true
	case '5':
		return serial.TIOCM_RI, true
	}
	return 0, false
}

// editFilename is the minimal line editor behind the 'f' (log) and 'y'/'x'
// (transfer) filename prompts: \b/DEL rub-out, echoed, ending on CR.
func (d *Dispatcher) editFilename(b byte) error {
	switch b {
	case '\r', '\n':
		name := string(d.filename)
		d.filename = nil
		wasLog := d.sub == SubFilenameLog
		d.sub = SubNone
		d.writeString("\r\n")
		if wasLog {
			return d.completeLogToggle(name)
		}
		return d.completeTransfer(name)
	case '\b', 127:
		if len(d.filename) > 0 {
			d.filename = d.filename[:len(d.filename)-1]
			d.Render('\b')
			d.Render(' ')
			d.Render('\b')
		}
	default:
		d.filename = append(d.filename, b)
		d.Render(b)
	}
	return nil
}

func (d *Dispatcher) completeLogToggle(name string) error {
	enabled := d.Opts.ToggleLog()
	if !enabled {
		return d.Collab.CloseLog()
	}
	if name != "" {
		d.Opts.LogFile = name
	}
	return d.Collab.OpenLog(d.Opts.LogFile)
}

func (d *Dispatcher) completeTransfer(name string) error {
	proto := d.pendingProto
	if proto == 0 {
		proto = transfer.YMODEM
	}
	d.pendingProto = 0
	if err := d.Collab.SendFile(name, proto); err != nil {
		d.Diag.Warn("transfer aborted: %v", err)
		d.writeString("Aborted\r\n")
	} else {
		d.writeString("Done\r\n")
	}
	return nil
}

// writeString writes each byte of s through the local terminal sink, used
// for the interpreter's own status text ("Done", config dump, help index).
func (d *Dispatcher) writeString(s string) {
	for i := 0; i < len(s); i++ {
		d.Render(s[i])
	}
}
