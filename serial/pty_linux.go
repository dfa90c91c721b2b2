package serial

import (
	ioctl "github.com/daedaluz/goioctl"
	"syscall"
	"unsafe"
)

type Winsize struct {
	Row    uint16
	Col    uint16
	Xpixel uint16
	Ypixel uint16
}

// GetWinSize returns the terminal window size.
func (p *Port) GetWinSize() (*Winsize, error) {
	ws := &Winsize{}
	err := ioctl.Ioctl(uintptr(p.f), tiocgwinsz, uintptr(unsafe.Pointer(ws)))
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// SetWinSize sets the terminal window size.
func (p *Port) SetWinSize(ws *Winsize) error {
	return ioctl.Ioctl(uintptr(p.f), tiocswinsz, uintptr(unsafe.Pointer(ws)))
}

// SetLockPT locks or unlocks the slave pseudoterminal associated with the
// master referred to by the Port.
func (p *Port) SetLockPT(lock bool) error {
	v := int32(0)
	if lock {
		v = 1
	}
	return ioctl.Ioctl(uintptr(p.f), tiocsptlck, uintptr(unsafe.Pointer(&v)))
}

// GetLockPT reports whether the slave pseudoterminal is locked.
func (p *Port) GetLockPT() (bool, error) {
	var v int32
	err := ioctl.Ioctl(uintptr(p.f), tiocgptlck, uintptr(unsafe.Pointer(&v)))
	return v != 0, err
}

// GetPTNumber returns the pty number of the slave associated with the master.
func (p *Port) GetPTNumber() (int, error) {
	var n uint32
	err := ioctl.Ioctl(uintptr(p.f), tiocgptn, uintptr(unsafe.Pointer(&n)))
	return int(n), err
}

// GetPTPeer opens and returns the slave pseudoterminal associated with the
// master referred to by the Port.
func (p *Port) GetPTPeer(flags int) (*Port, error) {
	fd, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(p.f), tiocgptpeer,
		uintptr(flags|syscall.O_RDWR|syscall.O_NOCTTY))
	if errno != 0 {
		return nil, errno
	}
	return &Port{options: NewOptions(), f: int(fd)}, nil
}

// OpenPTY finds an available pseudoterminal and returns a master and slave port.
// If termp is non-nil, the slave port will be configured with the given termios.
// If winp is non-nil, the slave port will be configured with the given window size.
func OpenPTY(termp *Termios, winp *Winsize) (*Port, *Port, error) {
	master, err := Open("/dev/ptmx", nil)
	if err != nil {
		return nil, nil, err
	}
	if err := master.SetLockPT(false); err != nil {
		master.Close()
		return nil, nil, err
	}
	slave, err := master.GetPTPeer(0)
	if err != nil {
		master.Close()
		return nil, nil, err
	}
	if termp != nil {
		if err := slave.SetAttr(TCSANOW, termp); err != nil {
			master.Close()
			return nil, nil, err
		}
	}
	if winp != nil {
		if err := slave.SetWinSize(winp); err != nil {
			master.Close()
			return nil, nil, err
		}
	}

	return master, slave, nil
}
