// Package lifecycle orchestrates the device lifecycle: wait-for-device,
// connect, disconnect, reconnect, and the restore hooks that guarantee
// terminal and port state is replayed on every exit path.
package lifecycle

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/comterm/comterm/internal/alert"
	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/serial"
)

// Restorer is an ordered list of cleanup hooks run exactly once, in reverse
// registration order, on every exit path (normal, error, or signal).
type Restorer struct {
	mu    sync.Mutex
	hooks []func()
	done  bool
}

// Add registers a hook.
func (r *Restorer) Add(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Run executes all hooks, newest first. Subsequent calls are no-ops.
func (r *Restorer) Run() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	hooks := r.hooks
	r.mu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// Manager drives the device lifecycle.
type Manager struct {
	Opts  *config.Options
	Diag  *diag.Diag
	Alert *alert.Alerter

	lastErrno error
}

// WaitForDevice polls device accessibility at ~1 Hz until the path opens as
// a tty. The "Waiting for tty device" notice is printed once per distinct
// errno.
func (m *Manager) WaitForDevice() {
	for {
		path := m.Opts.Snapshot().Device
		_, err := os.Stat(path)
		if err == nil && serial.IsTTY(path) {
			return
		}
		if err == nil {
			err = errors.New("not a tty device")
		}
		if m.lastErrno == nil || m.lastErrno.Error() != err.Error() {
			m.Diag.Warn("Waiting for tty device %s (%v)", path, err)
			m.lastErrno = err
		}
		time.Sleep(time.Second)
	}
}

// Connect opens and configures the device (open, verify tty, lock, flush,
// termios, optional RS-485), firing the alert-connect hook on success.
func (m *Manager) Connect() (*serial.Port, error) {
	o := m.Opts.Snapshot()
	cfg := m.Opts.LineConfig()
	if o.RS485Enabled {
		cfg.RS485 = &serial.RS485{Flags: serial.RS485Enabled | serial.RS485RTSOnSend}
	}
	port, err := serial.OpenSerial(cfg)
	if err != nil {
		return nil, err
	}
	m.lastErrno = nil
	m.Alert.Connect()
	m.Diag.Warn("Connected to %s", o.Device)
	return port, nil
}

// Disconnect fires alert-disconnect, releases the exclusive lock and closes
// the fd.
func (m *Manager) Disconnect(port *serial.Port) {
	m.Alert.Disconnect()
	port.Unlock()
	port.Close()
	m.Diag.Warn("Disconnected")
}
