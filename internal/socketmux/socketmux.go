// Package socketmux is the optional control socket: clients receive the
// post-render device bytes and their input is fed into the command
// interpreter exactly like local keystrokes. Raw fds are used throughout
// so the descriptors slot straight into the event loop's poll set.
package socketmux

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/comterm/comterm/internal/diag"
)

// Mux owns the listening socket and every accepted client fd.
type Mux struct {
	listenFd int
	path     string // unix socket path, unlinked on Close
	conns    []int
	diag     *diag.Diag
}

// Open parses spec ("unix:/path" or "tcp:port") and starts listening.
func Open(spec string, d *diag.Diag) (*Mux, error) {
	kind, arg, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("invalid socket spec %q", spec)
	}
	switch kind {
	case "unix":
		fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		if err != nil {
			return nil, err
		}
		os.Remove(arg)
		if err := unix.Bind(fd, &unix.SockaddrUnix{Name: arg}); err != nil {
			unix.Close(fd)
			return nil, err
		}
		if err := unix.Listen(fd, 4); err != nil {
			unix.Close(fd)
			return nil, err
		}
		return &Mux{listenFd: fd, path: arg, diag: d}, nil
	case "tcp":
		port, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid tcp port %q", arg)
		}
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return nil, err
		}
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], net.IPv4zero.To4())
		if err := unix.Bind(fd, sa); err != nil {
			unix.Close(fd)
			return nil, err
		}
		if err := unix.Listen(fd, 4); err != nil {
			unix.Close(fd)
			return nil, err
		}
		return &Mux{listenFd: fd, diag: d}, nil
	}
	return nil, fmt.Errorf("unknown socket kind %q", kind)
}

// Fds returns every descriptor the event loop should include in its poll
// set: the listener plus all accepted clients.
func (m *Mux) Fds() []int {
	out := make([]int, 0, len(m.conns)+1)
	out = append(out, m.listenFd)
	out = append(out, m.conns...)
	return out
}

// HandleReadable services one readable fd from Fds. For the listener it
// accepts a new client; for a client it reads pending input and returns it
// for forwarding to the device. A zero-length read closes the client.
func (m *Mux) HandleReadable(fd int) []byte {
	if fd == m.listenFd {
		nfd, _, err := unix.Accept(m.listenFd)
		if err != nil {
			m.diag.Warn("socket accept: %v", err)
			return nil
		}
		m.conns = append(m.conns, nfd)
		return nil
	}
	buf := make([]byte, 512)
	n, err := unix.Read(fd, buf)
	if n <= 0 || err != nil {
		m.drop(fd)
		return nil
	}
	return buf[:n]
}

// Broadcast sends rendered device bytes to every client, dropping clients
// whose connection has gone away.
func (m *Mux) Broadcast(p []byte) {
	for i := 0; i < len(m.conns); i++ {
		if _, err := unix.Write(m.conns[i], p); err != nil {
			m.drop(m.conns[i])
			i--
		}
	}
}

func (m *Mux) drop(fd int) {
	unix.Close(fd)
	for i, c := range m.conns {
		if c == fd {
			m.conns = append(m.conns[:i], m.conns[i+1:]...)
			return
		}
	}
}

// Close shuts down the listener and every client.
func (m *Mux) Close() {
	for _, c := range m.conns {
		unix.Close(c)
	}
	m.conns = nil
	unix.Close(m.listenFd)
	if m.path != "" {
		os.Remove(m.path)
	}
}
