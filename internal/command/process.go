package command

import (
	"time"

	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/internal/transform"
)

// Process handles one locally-originated byte that the input pump has
// already passed through its hot-key/abort pre-filter. It implements
// prefix recognition, sub-command routing, and mode-filtered forwarding,
// writing to the device through d.Staging and echoing through d.Render as
// needed.
func (d *Dispatcher) Process(b byte) error {
	if d.InSub() {
		return d.HandleSub(b)
	}

	opts := d.Opts.Snapshot()

	if opts.PrefixEnabled && d.prev == opts.PrefixCode {
		d.prev = 0
		if b == opts.PrefixCode {
			return d.forwardRaw(b)
		}
		return d.Dispatch(b)
	}
	d.prev = b
	if opts.PrefixEnabled && b == opts.PrefixCode {
		return nil
	}

	switch opts.InputMode {
	case config.InputHex:
		return d.processHex(b)
	case config.InputLine:
		return d.processLine(b)
	default:
		return d.forwardRaw(b)
	}
}

// forwardRaw applies the local->device transform chain to a single byte
// and stages it for write, echoing locally if local-echo is enabled.
func (d *Dispatcher) forwardRaw(b byte) error {
	opts := d.Opts.Snapshot()
	result, echoTwice := transform.Forward(b, opts.Map, func(out byte) {
		d.stage(out)
	})
	if result == transform.ForwardBreak {
		return d.Port.SendBreak(0)
	}
	if opts.LocalEcho {
		d.Render(b)
		if echoTwice {
			d.Render(b)
		}
	}
	return nil
}

// stage writes a single outbound byte through the staging buffer, applying
// OLTU upper-casing on the way. Configured output delays bypass staging
// entirely and write byte-at-a-time.
func (d *Dispatcher) stage(b byte) {
	opts := d.Opts.Snapshot()
	buf := []byte{b}
	if opts.Map.Has(config.MapOLTU) {
		transform.UpperCase(buf)
	}
	d.writeOut(opts, buf)
	d.Session.Counters.AddTx(1)
}

func (d *Dispatcher) writeOut(opts config.Options, buf []byte) {
	if opts.OutputDelayMs > 0 || opts.OutputLineDelayMs > 0 {
		d.Port.WriteDelayed(buf,
			time.Duration(opts.OutputDelayMs)*time.Millisecond,
			time.Duration(opts.OutputLineDelayMs)*time.Millisecond)
		return
	}
	d.Staging.Write(buf)
}

func (d *Dispatcher) processHex(b byte) error {
	value, complete, ok := d.hexAcc().Push(b)
	if !ok {
		d.bell()
		return nil
	}
	d.Render(b)
	if !complete {
		return nil
	}
	d.Render('\b')
	d.Render('\b')
	d.Render(' ')
	d.Render(' ')
	d.Render('\b')
	d.Render('\b')
	d.stage(value)
	return nil
}

func (d *Dispatcher) bell() {
	d.Render(7)
}

// processLine accumulates bytes in the line-input edit buffer, handling
// destructive backspace and ESC[A/B/C/D swallowing, transmitting
// buffer+'\r' on CR.
func (d *Dispatcher) processLine(b byte) error {
	le := d.lineEditor()
	switch {
	case le.InEscape():
		le.FeedEscape(b)
		return nil
	case b == 0x1b:
		le.StartEscape()
		return nil
	case b == '\r' || b == '\n':
		line := le.Take()
		line = append(line, '\r')
		opts := d.Opts.Snapshot()
		if opts.Map.Has(config.MapOLTU) {
			transform.UpperCase(line)
		}
		d.writeOut(opts, line)
		d.Session.Counters.AddTx(len(line))
		if err := d.Staging.Sync(); err != nil {
			return err
		}
		d.Render('\r')
		d.Render('\n')
		return nil
	case b == '\b' || b == 127:
		if le.Backspace() {
			d.Render('\b')
			d.Render(' ')
			d.Render('\b')
		}
		return nil
	default:
		if !le.Append(b) {
			d.Diag.Warn("line-input buffer overflow, discarding byte")
			return nil
		}
		d.Render(b)
		return nil
	}
}
