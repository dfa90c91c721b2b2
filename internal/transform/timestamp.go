package transform

import (
	"fmt"
	"time"

	"github.com/comterm/comterm/internal/config"
)

// Timestamper injects a timestamp prefix on the first non-newline byte
// following a newline, when timestamp mode != none and the output mode is
// normal. It is stateful: it tracks whether the previous rendered byte was
// a newline, the session-start time, and the previous timestamp (for the
// "-delta" mode).
type Timestamper struct {
	mode      config.TimestampMode
	afterNL   bool
	start     time.Time
	last      time.Time
	hasStart  bool
}

// NewTimestamper builds a Timestamper in the given mode. now is injected
// (rather than time.Now()) so callers/tests control the clock.
func NewTimestamper(mode config.TimestampMode, now time.Time) *Timestamper {
	return &Timestamper{mode: mode, afterNL: true, start: now, last: now}
}

// SetMode updates the active mode (the 't' command cycles through modes).
func (t *Timestamper) SetMode(mode config.TimestampMode) { t.mode = mode }

// Prefix returns the timestamp prefix (as a string, empty if none should be
// emitted for this byte) to write before b, given the render stream so far.
// now is the current wall-clock time; callers pass time.Now() in production.
func (t *Timestamper) Prefix(b byte, now time.Time) string {
	var out string
	if t.afterNL && b != '\n' && b != '\r' && t.mode != config.TimestampNone {
		if !t.hasStart {
			t.start = now
			t.hasStart = true
		}
		out = t.format(now)
		t.last = now
	}
	t.afterNL = b == '\n'
	return out
}

func (t *Timestamper) format(now time.Time) string {
	switch t.mode {
	case config.Timestamp24Hour:
		return fmt.Sprintf("[%s] ", now.Format("15:04:05.000"))
	case config.Timestamp24HourStart:
		d := now.Sub(t.start)
		return fmt.Sprintf("[%s] ", fmtDuration(d))
	case config.Timestamp24HourDelta:
		d := now.Sub(t.last)
		return fmt.Sprintf("[+%s] ", fmtDuration(d))
	case config.TimestampISO8601:
		return fmt.Sprintf("[%s] ", now.Format(time.RFC3339Nano))
	}
	return ""
}

func fmtDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := d.Milliseconds() % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
