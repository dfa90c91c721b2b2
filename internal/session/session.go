// Package session holds the singleton per-run state: byte counters, the
// rolling receive window used by the script bridge's expect(), and the
// one-slot hot-key mailbox shared between the input pump and the transfer
// adapter.
package session

import (
	"sync"
	"sync/atomic"
)

// RecvWindowCap is the rolling receive window's fixed capacity.
const RecvWindowCap = 2000

// HotKey is a one-slot mailbox: the input pump writes the first byte it
// sees while a transfer is in flight, the transfer adapter reads (and
// clears) it to decide whether to abort. "none" is represented as -1 so
// every byte value 0..255 is a valid key.
//
// The mailbox is armed by the transfer adapter for the duration of a
// blocking transfer; while disarmed, Set is a no-op and the pump forwards
// bytes normally.
type HotKey struct {
	v     atomic.Int32
	armed atomic.Bool
}

// NewHotKey returns a mailbox in the "none" state, disarmed.
func NewHotKey() *HotKey {
	h := &HotKey{}
	h.Clear()
	return h
}

// Clear resets the mailbox to "none".
func (h *HotKey) Clear() { h.v.Store(-1) }

// Empty reports whether the mailbox currently holds "none".
func (h *HotKey) Empty() bool { return h.v.Load() == -1 }

// Arm clears the slot and starts capturing: the next byte the input pump
// sees is stored instead of forwarded.
func (h *HotKey) Arm() {
	h.Clear()
	h.armed.Store(true)
}

// Disarm stops capturing and clears any leftover byte.
func (h *HotKey) Disarm() {
	h.armed.Store(false)
	h.Clear()
}

// Armed reports whether a transfer is currently capturing keystrokes.
func (h *HotKey) Armed() bool { return h.armed.Load() }

// Set stores b if the mailbox is armed and currently empty. It reports
// whether it stored the byte; false means the byte should be forwarded
// normally (disarmed, or a byte is already pending).
func (h *HotKey) Set(b byte) bool {
	if !h.armed.Load() {
		return false
	}
	return h.v.CompareAndSwap(-1, int32(b))
}

// Take reads and clears the pending byte. ok is false if the mailbox was
// empty.
func (h *HotKey) Take() (b byte, ok bool) {
	v := h.v.Swap(-1)
	if v == -1 {
		return 0, false
	}
	return byte(v), true
}

// RecvWindow is the bounded FIFO the script bridge's expect() matches
// against: always holds the most recent N<=RecvWindowCap bytes delivered
// by the device; each expect() zeroes it.
type RecvWindow struct {
	mu  sync.Mutex
	buf []byte
}

// NewRecvWindow returns an empty window.
func NewRecvWindow() *RecvWindow {
	return &RecvWindow{buf: make([]byte, 0, RecvWindowCap)}
}

// Append adds b, dropping the oldest byte if the window is already full.
func (w *RecvWindow) Append(b byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) >= RecvWindowCap {
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:len(w.buf)-1]
	}
	w.buf = append(w.buf, b)
}

// Reset empties the window; called at the start of every expect().
func (w *RecvWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = w.buf[:0]
}

// Bytes returns a copy of the window's current contents.
func (w *RecvWindow) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Counters tracks the monotonic rx/tx byte statistics.
type Counters struct {
	rx atomic.Uint64
	tx atomic.Uint64
}

// AddRx advances rx_total by n and returns the new total.
func (c *Counters) AddRx(n int) uint64 { return c.rx.Add(uint64(n)) }

// AddTx advances tx_total by n and returns the new total.
func (c *Counters) AddTx(n int) uint64 { return c.tx.Add(uint64(n)) }

// Rx reports the current rx_total.
func (c *Counters) Rx() uint64 { return c.rx.Load() }

// Tx reports the current tx_total.
func (c *Counters) Tx() uint64 { return c.tx.Load() }

// LineSlot describes one entry of a six-slot deferred line-configuration
// table. internal/lines keeps its own slot type and does not use LineSlot.
type LineSlot struct {
	Mask     int
	Value    bool
	Reserved bool
}

// State bundles the per-run session fields. The device fd and termios are
// owned by serial.Port / internal/console, the write-staging buffer by
// serial.Staging, and the hex/line edit accumulators by the command
// interpreter.
type State struct {
	Counters   Counters
	RecvWindow *RecvWindow
	HotKey     *HotKey
}

// New builds a fresh session state.
func New() *State {
	return &State{
		RecvWindow: NewRecvWindow(),
		HotKey:     NewHotKey(),
	}
}
