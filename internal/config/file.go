package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/ini.v1"
)

// ConfigFile locates the first present tiorc file:
// $XDG_CONFIG_HOME/tio/tiorc, $HOME/.config/tio/tiorc, $HOME/.tiorc.
func ConfigFile() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		p := filepath.Join(xdg, "tio", "tiorc")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "tio", "tiorc")
		if _, err := os.Stat(p); err == nil {
			return p
		}
		p = filepath.Join(home, ".tiorc")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFile parses path's unnamed-section defaults into opts. Named profile
// sections are resolved separately via ResolveProfile since they require
// the CLI's positional argument to select one.
func LoadFile(path string, opts *Options) error {
	if path == "" {
		return nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return applySection(cfg.Section(ini.DefaultSection), opts)
}

// ResolveProfile matches positional (the CLI's positional argument) against
// each named section's `pattern` key, first as plain text then as an
// extended regex with a capture group substituted into that section's
// `tty` value. It returns the resolved device path, or "" if positional
// should be treated as a literal device path.
func ResolveProfile(path, positional string, opts *Options) (device string, err error) {
	if path == "" || positional == "" {
		return "", nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("load config %s: %w", path, err)
	}
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		pattern := sec.Key("pattern").String()
		if pattern == "" {
			continue
		}
		if pattern == positional {
			if err := applySection(sec, opts); err != nil {
				return "", err
			}
			return sec.Key("tty").String(), nil
		}
	}
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		pattern := sec.Key("pattern").String()
		if pattern == "" {
			continue
		}
		re, err := regexp.CompilePOSIX(pattern)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(positional)
		if m == nil {
			continue
		}
		if err := applySection(sec, opts); err != nil {
			return "", err
		}
		tty := sec.Key("tty").String()
		if len(m) > 1 {
			tty = fmt.Sprintf(tty, m[1])
		}
		return tty, nil
	}
	return "", nil
}

// applySection maps the recognised tiorc keys onto opts, mirroring the CLI
// flag names so one mental model covers both surfaces.
func applySection(sec *ini.Section, opts *Options) error {
	opts.mu.Lock()
	defer opts.mu.Unlock()

	if sec.HasKey("baudrate") {
		opts.Baud = sec.Key("baudrate").MustInt(opts.Baud)
	}
	if sec.HasKey("databits") {
		opts.DataBits = sec.Key("databits").MustInt(opts.DataBits)
	}
	if sec.HasKey("stopbits") {
		opts.StopBits = sec.Key("stopbits").MustInt(opts.StopBits)
	}
	if sec.HasKey("parity") {
		p, err := ParseParity(sec.Key("parity").String())
		if err != nil {
			return err
		}
		opts.Parity = p
	}
	if sec.HasKey("flow") {
		fl, err := ParseFlow(sec.Key("flow").String())
		if err != nil {
			return err
		}
		opts.Flow = fl
	}
	if sec.HasKey("output-delay") {
		opts.OutputDelayMs = sec.Key("output-delay").MustInt(opts.OutputDelayMs)
	}
	if sec.HasKey("output-line-delay") {
		opts.OutputLineDelayMs = sec.Key("output-line-delay").MustInt(opts.OutputLineDelayMs)
	}
	if sec.HasKey("local-echo") {
		opts.LocalEcho = sec.Key("local-echo").MustBool(opts.LocalEcho)
	}
	if sec.HasKey("map") {
		mf, err := ParseMapFlags(sec.Key("map").String())
		if err != nil {
			return err
		}
		opts.Map = mf
	}
	if sec.HasKey("color") {
		opts.ColorSpec = sec.Key("color").String()
	}
	if sec.HasKey("log") {
		opts.LogEnabled = true
		opts.LogFile = sec.Key("log").String()
	}
	if sec.HasKey("socket") {
		opts.Socket = sec.Key("socket").String()
	}
	if sec.HasKey("no-autoconnect") {
		opts.AutoConnect = !sec.Key("no-autoconnect").MustBool(false)
	}
	if sec.HasKey("mute") {
		opts.Mute = sec.Key("mute").MustBool(opts.Mute)
	}
	if sec.HasKey("script") {
		opts.ScriptPolicy = ScriptOnce
		opts.ScriptFile = sec.Key("script").String()
	}
	return nil
}
