// Command comterm is an interactive, scriptable serial-line terminal: it
// attaches a human or a piped program to a locally-attached serial device,
// mediates byte flow in both directions, and offers in-session control
// commands, XMODEM/YMODEM transfers, log capture and Lua automation.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/comterm/comterm/internal/alert"
	"github.com/comterm/comterm/internal/command"
	"github.com/comterm/comterm/internal/config"
	"github.com/comterm/comterm/internal/console"
	"github.com/comterm/comterm/internal/diag"
	"github.com/comterm/comterm/internal/engine"
	"github.com/comterm/comterm/internal/inputpump"
	"github.com/comterm/comterm/internal/lifecycle"
	"github.com/comterm/comterm/internal/lines"
	"github.com/comterm/comterm/internal/logfile"
	"github.com/comterm/comterm/internal/script"
	"github.com/comterm/comterm/internal/session"
	"github.com/comterm/comterm/internal/socketmux"
	"github.com/comterm/comterm/internal/transfer"
	"github.com/comterm/comterm/internal/transform"
	"github.com/comterm/comterm/serial"
)

const version = "comterm 1.0.0"

// portHolder shares the current device between the main task and the
// pump's prefix+F flush hook.
type portHolder struct {
	mu   sync.Mutex
	port *serial.Port
}

func (h *portHolder) set(p *serial.Port) {
	h.mu.Lock()
	h.port = p
	h.mu.Unlock()
}

func (h *portHolder) flush() {
	h.mu.Lock()
	p := h.port
	h.mu.Unlock()
	if p != nil {
		p.Flush(serial.TCIOFLUSH)
	}
}

func main() {
	fs := config.NewFlagSet("comterm")
	positional, err := fs.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if fs.Help() {
		fmt.Printf("Usage: comterm [options] <device|profile>\n\n%s", fs.Usage())
		os.Exit(0)
	}
	if fs.Version() {
		fmt.Println(version)
		os.Exit(0)
	}
	if fs.ListDevices() {
		listDevices()
		os.Exit(0)
	}

	opts := config.Default()
	cfgFile := config.ConfigFile()
	if err := config.LoadFile(cfgFile, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	device, err := config.ResolveProfile(cfgFile, positional, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if device == "" {
		device = positional
	}
	opts.Device = device
	if err := fs.Apply(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opts.ColorSpec == "list" {
		listColors()
		os.Exit(0)
	}
	if opts.Device == "" {
		fmt.Fprintln(os.Stderr, "no device given")
		os.Exit(1)
	}

	d := diag.New(os.Stderr, opts.Mute)
	restorer := &lifecycle.Restorer{}
	exit := func(code int) {
		restorer.Run()
		os.Exit(code)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		exit(1)
	}()

	cons, err := console.Setup()
	if err != nil {
		d.Fatal("terminal setup: %v", err)
	}
	restorer.Add(cons.Restore)

	sess := session.New()
	holder := &portHolder{}
	pump, err := inputpump.Start(os.Stdin, sess.HotKey, d,
		cons.Interactive(), opts.PrefixEnabled, opts.PrefixCode,
		inputpump.Hooks{Exit: exit, Flush: holder.flush})
	if err != nil {
		exit(1)
	}
	pump.WaitReady()

	var mux *socketmux.Mux
	if opts.Socket != "" {
		mux, err = socketmux.Open(opts.Socket, d)
		if err != nil {
			d.Error("socket: %v", err)
			exit(1)
		}
		restorer.Add(mux.Close)
	}

	alerter := alert.New(opts.Alert, os.Stdout)
	mgr := &lifecycle.Manager{Opts: opts, Diag: d, Alert: alerter}

	code := run(opts, d, sess, pump, mux, mgr, restorer, holder, exit)
	restorer.Run()
	os.Exit(code)
}

// run is the connect/session/reconnect loop. It returns the process exit
// code.
func run(opts *config.Options, d *diag.Diag, sess *session.State,
	pump *inputpump.Pump, mux *socketmux.Mux, mgr *lifecycle.Manager,
	restorer *lifecycle.Restorer, holder *portHolder, exit func(int)) int {

	scriptLaunched := false
	for {
		if !serial.IsTTY(opts.Snapshot().Device) {
			mgr.WaitForDevice()
		}
		port, err := mgr.Connect()
		if err != nil {
			d.Error("%v", err)
			return 1
		}
		holder.set(port)
		restorer.Add(func() {
			if saved := port.SavedAttr(); saved != nil && port.Fd() >= 0 {
				port.SetAttr(serial.TCSANOW, saved)
			}
		})

		staging := serial.NewStaging(port)
		lc := lines.New(port)
		deferred := lines.NewDeferred(lc)
		adapter := transfer.New(port, sess.HotKey)
		ts := transform.NewTimestamper(opts.Snapshot().Timestamp, time.Now())
		renderer := &engine.Renderer{Opts: opts, Out: os.Stdout, TS: ts, Sockets: mux}

		var logw *logfile.Writer
		openLog := func(path string) error {
			o := opts.Snapshot()
			w, err := logfile.Open(path, o.LogStrip)
			if err != nil {
				return err
			}
			logw = w
			renderer.SetLog(w)
			return nil
		}
		closeLog := func() error {
			renderer.SetLog(nil)
			if logw == nil {
				return nil
			}
			err := logw.Close()
			logw = nil
			return err
		}
		if o := opts.Snapshot(); o.LogEnabled && o.LogFile != "" {
			if err := openLog(o.LogFile); err != nil {
				d.Warn("log: %v", err)
			}
		}

		bridge := &script.Bridge{
			Port: port, Lines: lc, Deferred: deferred, Sess: sess,
			Diag: d, Transfer: adapter, Out: os.Stdout, ExitFn: exit,
		}
		runScript := func(path string) error {
			if err := staging.Sync(); err != nil {
				return err
			}
			if path != "" {
				return bridge.RunFile(path)
			}
			return bridge.RunInline(opts.Snapshot().ScriptInline)
		}
		sendFile := func(path string, proto transfer.Protocol) error {
			if err := staging.Sync(); err != nil {
				return err
			}
			return adapter.Send(path, proto)
		}

		disp := command.New(opts, port, staging, lc, deferred, sess, d,
			renderer.Echo, command.Collaborators{
				OpenLog:   openLog,
				CloseLog:  closeLog,
				RunScript: runScript,
				SendFile:  sendFile,
				Exit:      exit,
			})

		o := opts.Snapshot()
		if o.ScriptPolicy == config.ScriptAlways ||
			(o.ScriptPolicy == config.ScriptOnce && !scriptLaunched) {
			scriptLaunched = true
			if err := runScript(o.ScriptFile); err != nil {
				d.Warn("script: %v", err)
			}
		}

		eng := &engine.Engine{
			Port: port, Staging: staging, Sess: sess, Diag: d,
			Render: renderer, Process: disp.Process,
			Input: pump.Reader(), Mux: mux,
			ResponseWait: o.ResponseWait, ResponseMs: o.ResponseTimeout,
		}
		err = eng.Run()

		closeLog()
		if saved := port.SavedAttr(); saved != nil {
			port.SetAttr(serial.TCSANOW, saved)
		}
		holder.set(nil)
		mgr.Disconnect(port)

		switch err {
		case nil, engine.ErrInputEOF:
			return 0
		case engine.ErrResponseTimeout:
			return 1
		case engine.ErrDeviceGone:
			if opts.Snapshot().AutoConnect {
				continue
			}
			return 1
		default:
			d.Error("%v", err)
			return 1
		}
	}
}

// listDevices prints serial device candidates, -L/--list-devices.
func listDevices() {
	var out []string
	for _, pattern := range []string{"/dev/serial/by-id/*", "/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*"} {
		matches, _ := filepath.Glob(pattern)
		out = append(out, matches...)
	}
	sort.Strings(out)
	for _, dev := range out {
		fmt.Println(dev)
	}
}

// listColors prints the 256-color swatch, -c list.
func listColors() {
	for i := 0; i < 256; i++ {
		c := color.New(color.Attribute(38), color.Attribute(5), color.Attribute(i))
		c.Printf("%3d ", i)
		if i%16 == 15 {
			fmt.Println()
		}
	}
}
