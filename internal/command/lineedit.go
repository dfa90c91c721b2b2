package command

import "github.com/comterm/comterm/internal/transform"

// lineEditMax bounds the line-input edit buffer; overflow truncates with a
// warning.
const lineEditMax = 4096

// LineEditor is the minimal line-input editor: destructive backspace and
// arrow-key swallowing via recognition of ESC [ A/B/C/D.
type LineEditor struct {
	buf []byte
	esc int // 0 = not in escape, 1 = saw ESC, 2 = saw ESC [
}

// StartEscape records that an ESC byte arrived.
func (e *LineEditor) StartEscape() { e.esc = 1 }

// InEscape reports whether an escape sequence is being consumed.
func (e *LineEditor) InEscape() bool { return e.esc != 0 }

// FeedEscape consumes one byte of a pending escape sequence. Arrow keys
// (ESC [ A/B/C/D) are swallowed whole; anything else terminates the
// sequence and is discarded with it.
func (e *LineEditor) FeedEscape(b byte) {
	if e.esc == 1 && b == '[' {
		e.esc = 2
		return
	}
	e.esc = 0
}

// Append adds b to the edit buffer. It reports false if the buffer is full.
func (e *LineEditor) Append(b byte) bool {
	if len(e.buf) >= lineEditMax {
		return false
	}
	e.buf = append(e.buf, b)
	return true
}

// Backspace removes the last buffered byte, reporting whether anything was
// removed (the caller only echoes the rub-out sequence when true).
func (e *LineEditor) Backspace() bool {
	if len(e.buf) == 0 {
		return false
	}
	e.buf = e.buf[:len(e.buf)-1]
	return true
}

// Take returns the accumulated line and resets the editor.
func (e *LineEditor) Take() []byte {
	line := e.buf
	e.buf = nil
	e.esc = 0
	return line
}

// Len reports the number of buffered bytes.
func (e *LineEditor) Len() int { return len(e.buf) }

func (d *Dispatcher) hexAcc() *transform.HexAccumulator { return &d.hexA }

func (d *Dispatcher) lineEditor() *LineEditor { return &d.le }
