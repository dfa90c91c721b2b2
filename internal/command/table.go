package command

import (
	"fmt"

	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/serial"
)

// handlerTable is the flat dispatch table keyed by command byte.
var handlerTable = map[byte]func(*Dispatcher) error{
	'?': (*Dispatcher).cmdHelp,
	'b': (*Dispatcher).cmdBreak,
	'c': (*Dispatcher).cmdConfig,
	'e': (*Dispatcher).cmdToggleEcho,
	'f': (*Dispatcher).cmdToggleLog,
	'F': (*Dispatcher).cmdFlush,
	'g': (*Dispatcher).cmdEnterLineToggle,
	'h': (*Dispatcher).cmdToggleHex,
	'i': (*Dispatcher).cmdCycleInput,
	'o': (*Dispatcher).cmdCycleOutput,
	'l': (*Dispatcher).cmdClearScreen,
	'L': (*Dispatcher).cmdLineStates,
	'm': (*Dispatcher).cmdToggleMSB2LSB,
	'p': (*Dispatcher).cmdEnterLinePulse,
	'q': (*Dispatcher).cmdQuit,
	'r': (*Dispatcher).cmdRunScript,
	's': (*Dispatcher).cmdStats,
	't': (*Dispatcher).cmdCycleTimestamp,
	'U': (*Dispatcher).cmdToggleOLTU,
	'v': (*Dispatcher).cmdVersion,
	'x': (*Dispatcher).cmdEnterXmodemChoose,
	'y': (*Dispatcher).cmdYmodem,
	'z': (*Dispatcher).cmdEasterEgg,
}

// Dispatch runs the command bound to key, or warns if key is unrecognised.
func (d *Dispatcher) Dispatch(key byte) error {
	fn, ok := handlerTable[key]
	if !ok {
		d.Diag.Warn("unknown command %q", key)
		return nil
	}
	return fn(d)
}

func (d *Dispatcher) cmdHelp() error {
	d.writeString("\r\ncomterm command index:\r\n" +
		"  ?  help        b  break        c  show config\r\n" +
		"  e  local echo  f  log toggle   F  flush queues\r\n" +
		"  g  line toggle h  hex output   i  cycle input\r\n" +
		"  o  cycle output l clear screen L  line states\r\n" +
		"  m  msb2lsb     p  line pulse   q  quit\r\n" +
		"  r  run script  s  show stats   t  cycle timestamp\r\n" +
		"  U  oltu        v  version      x  xmodem send\r\n" +
		"  y  ymodem send z  easter egg\r\n")
	return nil
}

func (d *Dispatcher) cmdBreak() error {
	return d.Port.SendBreak(0)
}

func (d *Dispatcher) cmdConfig() error {
	o := d.Opts.Snapshot()
	d.writeString(fmt.Sprintf("\r\nbaud=%d databits=%d parity=%v stopbits=%d flow=%v device=%s\r\n",
		o.Baud, o.DataBits, o.Parity, o.StopBits, o.Flow, o.Device))
	return nil
}

func (d *Dispatcher) cmdToggleEcho() error {
	on := d.Opts.ToggleLocalEcho()
	d.writeString(fmt.Sprintf("\r\nlocal echo: %v\r\n", on))
	return nil
}

func (d *Dispatcher) cmdToggleLog() error {
	d.sub = SubFilenameLog
	d.filename = nil
	if d.Opts.LogEnabled {
		// Log is currently on: toggling turns it off with no filename
		// prompt needed.
		d.sub = SubNone
		enabled := d.Opts.ToggleLog()
		if !enabled {
			return d.Collab.CloseLog()
		}
		return nil
	}
	d.writeString("\r\nlog file: ")
	return nil
}

func (d *Dispatcher) cmdFlush() error {
	if err := d.Staging.Sync(); err != nil {
		return err
	}
	return d.Port.Flush(serial.TCIOFLUSH)
}

func (d *Dispatcher) cmdEnterLineToggle() error {
	d.sub = SubLineToggle
	return nil
}

func (d *Dispatcher) cmdToggleHex() error {
	mode := d.Opts.ToggleHexOutput()
	d.writeString(fmt.Sprintf("\r\nhex output: %v\r\n", mode == config.OutputHex))
	return nil
}

func (d *Dispatcher) cmdCycleInput() error {
	mode := d.Opts.CycleInputMode()
	d.writeString(fmt.Sprintf("\r\ninput mode: %d\r\n", mode))
	return nil
}

func (d *Dispatcher) cmdCycleOutput() error {
	mode := d.Opts.CycleOutputMode()
	d.writeString(fmt.Sprintf("\r\noutput mode: %d\r\n", mode))
	return nil
}

func (d *Dispatcher) cmdClearScreen() error {
	d.writeString("\x1bc")
	return nil
}

func (d *Dispatcher) cmdLineStates() error {
	cur, err := d.Lines.Get()
	if err != nil {
		return err
	}
	d.writeString(fmt.Sprintf("\r\nmodem lines: %s\r\n", cur.String()))
	return nil
}

func (d *Dispatcher) cmdToggleMSB2LSB() error {
	flags := d.Opts.ToggleMSB2LSB()
	d.writeString(fmt.Sprintf("\r\nmsb2lsb: %v\r\n", flags.Has(config.MapMSB2LSB)))
	return nil
}

func (d *Dispatcher) cmdEnterLinePulse() error {
	d.sub = SubLinePulse
	return nil
}

func (d *Dispatcher) cmdQuit() error {
	d.Collab.Exit(0)
	return nil
}

func (d *Dispatcher) cmdRunScript() error {
	if d.Opts.ScriptFile == "" && d.Opts.ScriptInline == "" {
		d.Diag.Warn("no script configured")
		return nil
	}
	return d.Collab.RunScript(d.Opts.ScriptFile)
}

func (d *Dispatcher) cmdStats() error {
	d.writeString(fmt.Sprintf("\r\nrx=%d tx=%d\r\n", d.Session.Counters.Rx(), d.Session.Counters.Tx()))
	return nil
}

func (d *Dispatcher) cmdCycleTimestamp() error {
	mode := d.Opts.CycleTimestamp()
	d.writeString(fmt.Sprintf("\r\ntimestamp mode: %d\r\n", mode))
	return nil
}

func (d *Dispatcher) cmdToggleOLTU() error {
	flags := d.Opts.ToggleOLTU()
	d.writeString(fmt.Sprintf("\r\noltu: %v\r\n", flags.Has(config.MapOLTU)))
	return nil
}

func (d *Dispatcher) cmdVersion() error {
	d.writeString("\r\ncomterm (serial terminal)\r\n")
	return nil
}

func (d *Dispatcher) cmdEnterXmodemChoose() error {
	d.sub = SubXmodemChoose
	return nil
}

func (d *Dispatcher) cmdYmodem() error {
	d.sub = SubFilenameTransfer
	d.pendingProto = 0
	d.filename = nil
	d.writeString("\r\nfile: ")
	return nil
}

func (d *Dispatcher) cmdEasterEgg() error {
	d.writeString("\r\n   .--.\r\n  |o_o |\r\n  |:_/ |   comterm says hi\r\n //   \\ \\\r\n(|     | )\r\n")
	return nil
}
