// Package lines controls the modem lines: set/clear/toggle/pulse
// primitives and the deferred "stage then apply" table scripts use to
// commit several line changes with one ioctl.
package lines

import (
	"time"

	"github.com/comterm/comterm/serial"
)

// Controller wraps a serial.Port with the modem-line primitives.
// Polarity: value=true clears the TIOCM bit, which asserts the line on
// active-low hardware, and is reported as "HIGH". See DESIGN.md.
type Controller struct {
	port *serial.Port
}

// New wraps port.
func New(port *serial.Port) *Controller { return &Controller{port: port} }

// Get returns the current mask of all modem lines.
func (c *Controller) Get() (serial.ModemLine, error) {
	return c.port.GetModemLines()
}

// Set applies value to mask: value=true clears the bit (logged "HIGH"
// under the active-low semantics this codebase standardises on); value=
// false sets it ("LOW"). See the Controller doc comment and DESIGN.md.
func (c *Controller) Set(mask serial.ModemLine, value bool) error {
	if value {
		return c.port.DisableModemLines(mask)
	}
	return c.port.EnableModemLines(mask)
}

// Toggle flips the current state of mask.
func (c *Controller) Toggle(mask serial.ModemLine) error {
	cur, err := c.port.GetModemLines()
	if err != nil {
		return err
	}
	if cur&mask != 0 {
		return c.port.DisableModemLines(mask)
	}
	return c.port.EnableModemLines(mask)
}

// Pulse toggles mask, waits dur, then toggles it back.
func (c *Controller) Pulse(mask serial.ModemLine, dur time.Duration) error {
	if err := c.Toggle(mask); err != nil {
		return err
	}
	time.Sleep(dur)
	return c.Toggle(mask)
}

// slotCount is the deferred configuration table size, one slot per named
// modem line.
const slotCount = 6

// slotMasks fixes the mask<->slot-index mapping.
var slotMasks = [slotCount]serial.ModemLine{
	serial.TIOCM_DTR, serial.TIOCM_RTS, serial.TIOCM_CTS,
	serial.TIOCM_DSR, serial.TIOCM_CD, serial.TIOCM_RI,
}

type deferredSlot struct {
	used  bool
	value bool
}

// Deferred implements the six-slot "stage then apply" table: scripts queue
// multiple Set calls via Stage and commit them atomically with one
// TIOCMSET via Apply.
type Deferred struct {
	ctrl  *Controller
	slots [slotCount]deferredSlot
}

// NewDeferred builds a deferred-apply table bound to ctrl.
func NewDeferred(ctrl *Controller) *Deferred {
	return &Deferred{ctrl: ctrl}
}

func slotIndex(mask serial.ModemLine) int {
	for i, m := range slotMasks {
		if m == mask {
			return i
		}
	}
	return -1
}

// Stage records value for mask, overwriting any previously staged value
// for the same mask; the table never holds two entries for one line.
func (d *Deferred) Stage(mask serial.ModemLine, value bool) bool {
	idx := slotIndex(mask)
	if idx < 0 {
		return false
	}
	d.slots[idx] = deferredSlot{used: true, value: value}
	return true
}

// merged folds every staged slot into cur, leaving unstaged lines at their
// pre-call state. Split out of Apply so the commit computation is testable
// without a device.
func (d *Deferred) merged(cur serial.ModemLine) serial.ModemLine {
	next := cur
	for i, slot := range d.slots {
		if !slot.used {
			continue
		}
		mask := slotMasks[i]
		if slot.value {
			next &^= mask
		} else {
			next |= mask
		}
	}
	return next
}

// Apply commits every staged slot with a single GetModemLines+SetModemLines
// round trip, leaving unstaged lines at their pre-call state.
func (d *Deferred) Apply() error {
	cur, err := d.ctrl.Get()
	if err != nil {
		return err
	}
	if err := d.ctrl.port.SetModemLines(d.merged(cur)); err != nil {
		return err
	}
	d.slots = [slotCount]deferredSlot{}
	return nil
}
