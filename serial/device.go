package serial

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Parity selects the parity scheme for the line.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// FlowControl selects the flow-control scheme for the line.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHard
	FlowSoft
)

// LineConfig carries the parameters needed to open and configure a serial
// line.
type LineConfig struct {
	Path          string
	Baud          int
	DataBits      int // 5..8
	Parity        Parity
	StopBits      int // 1 or 2
	Flow          FlowControl
	ExclusiveLock bool
	RS485         *RS485
	// ExtraIFlags carries the termios-level input mappings (INLCR, IGNCR,
	// ICRNL) the map-flag set can request; the rest of the map flags are
	// applied in software above the port.
	ExtraIFlags IFlag
}

// standardBauds maps a requested bps value onto the host's standard CBAUD
// set. Anything absent here needs the termios2 arbitrary-speed path.
var standardBauds = map[int]CFlag{
	50: B50, 75: B75, 110: B110, 134: B134, 150: B150, 200: B200, 300: B300,
	600: B600, 1200: B1200, 1800: B1800, 2400: B2400, 4800: B4800, 9600: B9600,
	19200: B19200, 38400: B38400, 57600: B57600, 115200: B115200, 230400: B230400,
	460800: B460800, 500000: B500000, 576000: B576000, 921600: B921600,
	1000000: B1000000, 1152000: B1152000, 1500000: B1500000, 2000000: B2000000,
	2500000: B2500000, 3000000: B3000000, 3500000: B3500000, 4000000: B4000000,
}

// dataBitsFlag maps DataBits onto the CSIZE mask.
func dataBitsFlag(bits int) (CFlag, error) {
	switch bits {
	case 5:
		return CS5, nil
	case 6:
		return CS6, nil
	case 7:
		return CS7, nil
	case 8:
		return CS8, nil
	}
	return 0, wrapErr("invalid data bits", fmt.Errorf("%d", bits))
}

func buildTermios(cfg LineConfig) (*Termios, error) {
	cs, err := dataBitsFlag(cfg.DataBits)
	if err != nil {
		return nil, err
	}
	t := &Termios{}
	t.MakeRaw()
	t.Cflag |= CLOCAL | CREAD | cs
	switch cfg.Parity {
	case ParityOdd:
		t.Cflag |= PARENB | PARODD
	case ParityEven:
		t.Cflag |= PARENB
	case ParityMark:
		t.Cflag |= PARENB | PARODD | CMSPAR
	case ParitySpace:
		t.Cflag |= PARENB | CMSPAR
	case ParityNone:
	}
	if cfg.StopBits == 2 {
		t.Cflag |= CSTOPB
	}
	switch cfg.Flow {
	case FlowHard:
		t.Cflag |= CRTSCTS
	case FlowSoft:
		t.Iflag |= IXON | IXOFF
	case FlowNone:
	}
	t.Iflag |= cfg.ExtraIFlags
	t.Cc[VTIME] = 0
	t.Cc[VMIN] = 1
	if speed, ok := standardBauds[cfg.Baud]; ok {
		t.SetSpeed(speed)
	}
	return t, nil
}

// OpenSerial opens path read-write/no-ctty/non-blocking, verifies it is a tty,
// takes an exclusive lock if requested, flushes stale queued data, and
// applies the termios derived from cfg. Non-standard baud rates fall back to
// the termios2 arbitrary-speed primitive.
func OpenSerial(cfg LineConfig) (*Port, error) {
	opts := NewOptions()
	opts.OpenMode = syscall.O_RDWR | syscall.O_NOCTTY | syscall.O_NONBLOCK
	p, err := Open(cfg.Path, opts)
	if err != nil {
		return nil, wrapErr("open device", err)
	}
	saved, err := p.GetAttr()
	if err != nil {
		p.Close()
		return nil, wrapErr("not a tty device", err)
	}
	p.saved = saved
	if cfg.ExclusiveLock {
		if err := p.Lock(); err != nil {
			p.Close()
			return nil, wrapErr("device locked by another process", err)
		}
	}
	if err := p.Flush(TCIOFLUSH); err != nil {
		p.Close()
		return nil, wrapErr("flush device", err)
	}
	t, err := buildTermios(cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	if _, ok := standardBauds[cfg.Baud]; !ok {
		if err := p.setArbitraryBaud(t, cfg.Baud); err != nil {
			p.Close()
			return nil, wrapErr("set arbitrary baud rate", err)
		}
	} else if err := p.SetAttr(TCSANOW, t); err != nil {
		p.Close()
		return nil, wrapErr("set termios", err)
	}
	if cfg.RS485 != nil {
		if err := p.SetRS485(cfg.RS485); err != nil {
			p.Close()
			return nil, wrapErr("enable rs-485", err)
		}
	}
	return p, nil
}

// setArbitraryBaud applies a custom speed via termios2, required when the
// requested baud is not in the host's standard B* set. Some UART drivers
// need ispeed/ospeed seeded from the currently-applied termios2 before
// BOTHER takes effect.
func (p *Port) setArbitraryBaud(t *Termios, baud int) error {
	cur2, err := p.GetAttr2()
	if err != nil {
		return err
	}
	cur2.Iflag, cur2.Oflag, cur2.Cflag, cur2.Lflag, cur2.Cc = t.Iflag, t.Oflag, t.Cflag, t.Lflag, t.Cc
	cur2.SetCustomSpeed(uint32(baud))
	return p.SetAttr2(TCSANOW, cur2)
}

// --- write staging ---

const bufSize = 8192

// Staging is the device-side write accumulator that collapses many small
// writes into fewer syscalls, drained explicitly by Sync.
type Staging struct {
	port *Port
	buf  []byte
}

// NewStaging wraps port with a ~2*bufSize staging buffer.
func NewStaging(port *Port) *Staging {
	return &Staging{port: port, buf: make([]byte, 0, 2*bufSize)}
}

// Write stages data, flushing first if it would overflow the buffer.
func (s *Staging) Write(data []byte) error {
	if len(s.buf)+len(data) > cap(s.buf) {
		if err := s.Sync(); err != nil {
			return err
		}
	}
	s.buf = append(s.buf, data...)
	return nil
}

// Count reports the number of bytes currently staged.
func (s *Staging) Count() int {
	return len(s.buf)
}

// Sync drains the staging buffer to the device fd in chunks, calling
// fsync+tcdrain between chunks, and resets the count to 0.
func (s *Staging) Sync() error {
	for len(s.buf) > 0 {
		n := len(s.buf)
		if n > bufSize {
			n = bufSize
		}
		if _, err := s.port.Write(s.buf[:n]); err != nil {
			return err
		}
		syscall.Fsync(s.port.Fd())
		if err := s.port.Drain(); err != nil {
			return err
		}
		s.buf = s.buf[n:]
	}
	s.buf = s.buf[:0]
	return nil
}

// WriteDelayed bypasses staging entirely: it writes one byte at a time,
// sleeping perByte after each, and additionally perLine after every '\n'.
// Used whenever output_delay (or output_line_delay) is configured nonzero.
func (p *Port) WriteDelayed(data []byte, perByte, perLine time.Duration) error {
	for _, b := range data {
		if _, err := p.Write([]byte{b}); err != nil {
			return err
		}
		if perByte > 0 {
			time.Sleep(perByte)
		}
		if b == '\n' && perLine > 0 {
			time.Sleep(perLine)
		}
	}
	return nil
}

// IsTTY reports whether path names a character device without otherwise
// altering its state; used by wait-for-device polling. It does not check
// that the device is a terminal; OpenSerial does that with TCGETS.
func IsTTY(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		return false
	}
	return true
}
