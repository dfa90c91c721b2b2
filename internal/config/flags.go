package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/comterm/comterm/serial"
	flag "github.com/spf13/pflag"
)

// FlagSet holds the pflag flag table, GNU-style short+long aliasing.
type FlagSet struct {
	fs *flag.FlagSet

	baud            int
	dataBits        int
	flow            string
	stopBits        int
	parity          string
	outputDelay     int
	outputLineDelay int
	linePulse       string
	noAutoConnect   bool
	localEcho       bool
	timestamp       string
	listDevices     bool
	logFile         string
	logStrip        bool
	mapFlags        string
	color           string
	socket          string
	hexadecimal     bool
	responseWait    bool
	responseTimeout int
	rs485           bool
	rs485Config     string
	alert           string
	mute            bool
	version         bool
	help            bool
	script          string
	exclusiveLock   bool
}

// NewFlagSet builds the flag table. Call Parse(args) then Apply(opts).
func NewFlagSet(name string) *FlagSet {
	f := &FlagSet{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	fs := f.fs
	fs.IntVarP(&f.baud, "baudrate", "b", 9600, "serial baud rate")
	fs.IntVarP(&f.dataBits, "databits", "d", 8, "data bits (5-8)")
	fs.StringVarP(&f.flow, "flow", "f", "none", "flow control: hard|soft|none")
	fs.IntVarP(&f.stopBits, "stopbits", "s", 1, "stop bits (1 or 2)")
	fs.StringVarP(&f.parity, "parity", "p", "none", "parity: odd|even|none|mark|space")
	fs.IntVarP(&f.outputDelay, "output-delay", "o", 0, "per-byte output delay (ms)")
	fs.IntVarP(&f.outputLineDelay, "output-line-delay", "O", 0, "per-line output delay (ms)")
	fs.StringVar(&f.linePulse, "line-pulse-duration", "", "LINE=ms,... pulse durations")
	fs.BoolVarP(&f.noAutoConnect, "no-autoconnect", "n", false, "disable auto-reconnect")
	fs.BoolVarP(&f.localEcho, "local-echo", "e", false, "enable local echo")
	fs.StringVarP(&f.timestamp, "timestamp", "t", "", "timestamp mode")
	fs.StringVar(&f.timestamp, "timestamp-format", "", "timestamp mode (alias)")
	fs.BoolVarP(&f.listDevices, "list-devices", "L", false, "list candidate devices and exit")
	fs.StringVarP(&f.logFile, "log", "l", "", "log file path")
	fs.StringVar(&f.logFile, "log-file", "", "log file path (alias)")
	fs.BoolVar(&f.logStrip, "log-strip", false, "strip control bytes from the log")
	fs.StringVarP(&f.mapFlags, "map", "m", "", "comma-separated map flags")
	fs.StringVarP(&f.color, "color", "c", "", "status color: 0-255|bold|none|list")
	fs.StringVarP(&f.socket, "socket", "S", "", "control socket spec")
	fs.BoolVarP(&f.hexadecimal, "hexadecimal", "x", false, "start in hex output mode")
	fs.BoolVarP(&f.responseWait, "response-wait", "r", false, "exit on first device CR/LF")
	fs.IntVar(&f.responseTimeout, "response-timeout", 0, "response-wait timeout (ms)")
	fs.BoolVar(&f.rs485, "rs-485", false, "enable RS-485 mode")
	fs.StringVar(&f.rs485Config, "rs-485-config", "", "RS-485 configuration string")
	fs.StringVar(&f.alert, "alert", "none", "alert mode: bell|blink|none")
	fs.BoolVar(&f.mute, "mute", false, "suppress warning diagnostics")
	fs.BoolVarP(&f.version, "version", "v", false, "print version and exit")
	fs.BoolVarP(&f.help, "help", "h", false, "print help and exit")
	fs.StringVar(&f.script, "script", "", "script file to run on connect")
	fs.BoolVar(&f.exclusiveLock, "exclusive-lock", true, "take an exclusive device lock")
	return f
}

// Parse parses argv (excluding argv[0]) and records the positional
// argument (device path or profile name).
func (f *FlagSet) Parse(args []string) (positional string, err error) {
	if err := f.fs.Parse(args); err != nil {
		return "", err
	}
	rest := f.fs.Args()
	if len(rest) > 0 {
		positional = rest[0]
	}
	return positional, nil
}

// Apply merges the parsed flag values into opts, overriding any config-file
// values already present (CLI wins over tiorc, per the usual precedence).
func (f *FlagSet) Apply(opts *Options) error {
	opts.mu.Lock()
	defer opts.mu.Unlock()

	if f.fs.Changed("baudrate") {
		opts.Baud = f.baud
	}
	if f.fs.Changed("databits") {
		opts.DataBits = f.dataBits
	}
	if f.fs.Changed("flow") {
		fl, err := ParseFlow(f.flow)
		if err != nil {
			return err
		}
		opts.Flow = fl
	}
	if f.fs.Changed("stopbits") {
		opts.StopBits = f.stopBits
	}
	if f.fs.Changed("parity") {
		pa, err := ParseParity(f.parity)
		if err != nil {
			return err
		}
		opts.Parity = pa
	}
	if f.fs.Changed("output-delay") {
		opts.OutputDelayMs = f.outputDelay
	}
	if f.fs.Changed("output-line-delay") {
		opts.OutputLineDelayMs = f.outputLineDelay
	}
	if f.linePulse != "" {
		dur, err := parseLinePulse(f.linePulse)
		if err != nil {
			return err
		}
		opts.LinePulse = dur
	}
	if f.noAutoConnect {
		opts.AutoConnect = false
	}
	if f.localEcho {
		opts.LocalEcho = true
	}
	if f.timestamp != "" {
		ts, err := parseTimestampMode(f.timestamp)
		if err != nil {
			return err
		}
		opts.Timestamp = ts
	}
	if f.logFile != "" {
		opts.LogEnabled = true
		opts.LogFile = f.logFile
	}
	opts.LogStrip = f.logStrip
	if f.mapFlags != "" {
		mf, err := ParseMapFlags(f.mapFlags)
		if err != nil {
			return err
		}
		opts.Map = mf
	}
	if f.color != "" {
		opts.ColorSpec = f.color
	}
	opts.Socket = f.socket
	if f.hexadecimal {
		opts.OutputMode = OutputHex
	}
	opts.ResponseWait = f.responseWait
	if f.responseTimeout > 0 {
		opts.ResponseTimeout = f.responseTimeout
	}
	opts.RS485Enabled = f.rs485
	opts.RS485Config = f.rs485Config
	if f.alert != "" {
		am, err := parseAlertMode(f.alert)
		if err != nil {
			return err
		}
		opts.Alert = am
	}
	opts.Mute = f.mute
	opts.ExclusiveLock = f.exclusiveLock
	if f.script != "" {
		opts.ScriptPolicy = ScriptOnce
		opts.ScriptFile = f.script
	}
	return nil
}

// ListDevices reports whether -L/--list-devices was given.
func (f *FlagSet) ListDevices() bool { return f.listDevices }

// Version reports whether -v/--version was given.
func (f *FlagSet) Version() bool { return f.version }

// Help reports whether -h/--help was given.
func (f *FlagSet) Help() bool { return f.help }

// Usage prints the flag usage text (used by the 'h'/--help path).
func (f *FlagSet) Usage() string { return f.fs.FlagUsages() }

func parseLinePulse(csv string) (LinePulseDurations, error) {
	out := LinePulseDurations{}
	for _, pair := range strings.Split(csv, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid line-pulse-duration entry %q", pair)
		}
		line, err := parseLineMask(kv[0])
		if err != nil {
			return nil, err
		}
		ms, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid pulse duration %q", kv[1])
		}
		out[line] = ms
	}
	return out, nil
}

func parseLineMask(name string) (serial.ModemLine, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DTR":
		return serial.TIOCM_DTR, nil
	case "RTS":
		return serial.TIOCM_RTS, nil
	case "CTS":
		return serial.TIOCM_CTS, nil
	case "DSR":
		return serial.TIOCM_DSR, nil
	case "DCD", "CD":
		return serial.TIOCM_CD, nil
	case "RI":
		return serial.TIOCM_RI, nil
	}
	return 0, fmt.Errorf("unknown modem line %q", name)
}

func parseTimestampMode(s string) (TimestampMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return TimestampNone, nil
	case "24hour":
		return Timestamp24Hour, nil
	case "24hour-start":
		return Timestamp24HourStart, nil
	case "24hour-delta":
		return Timestamp24HourDelta, nil
	case "iso8601":
		return TimestampISO8601, nil
	}
	return 0, fmt.Errorf("invalid timestamp mode %q", s)
}

func parseAlertMode(s string) (AlertMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return AlertNone, nil
	case "bell":
		return AlertBell, nil
	case "blink":
		return AlertBlink, nil
	}
	return 0, fmt.Errorf("invalid alert mode %q", s)
}
