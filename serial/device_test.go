package serial

import (
	"testing"
)

func TestBuildTermiosDataBits(t *testing.T) {
	cfg := LineConfig{Baud: 9600, DataBits: 8, StopBits: 1, Parity: ParityEven}
	term, err := buildTermios(cfg)
	if err != nil {
		t.Fatalf("buildTermios: %v", err)
	}
	if term.Cflag&CSIZE != CS8 {
		t.Fatalf("expected CS8, got %o", term.Cflag&CSIZE)
	}
	if term.Cflag&PARENB == 0 {
		t.Fatalf("expected PARENB set for even parity")
	}
	if term.Cflag&PARODD != 0 {
		t.Fatalf("even parity must not set PARODD")
	}
}

func TestBuildTermiosInvalidDataBits(t *testing.T) {
	_, err := buildTermios(LineConfig{Baud: 9600, DataBits: 9})
	if err == nil {
		t.Fatalf("expected error for invalid data bits")
	}
}

func TestStagingSyncOverPTY(t *testing.T) {
	raw := &Termios{}
	raw.MakeRaw()
	raw.Cflag |= CREAD | CLOCAL
	raw.Cc[VMIN] = 1
	master, slave, err := OpenPTY(raw, nil)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	st := NewStaging(master)
	chunks := [][]byte{[]byte("hello "), []byte("world")}
	for _, c := range chunks {
		if err := st.Write(c); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if st.Count() != len("hello world") {
		t.Fatalf("expected %d staged bytes, got %d", len("hello world"), st.Count())
	}
	if err := st.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if st.Count() != 0 {
		t.Fatalf("staging count must be 0 after Sync, got %d", st.Count())
	}

	buf := make([]byte, len("hello world"))
	n, err := slave.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello world" {
		t.Fatalf("got %q, want %q", buf[:n], "hello world")
	}
}

func TestBuildTermiosExtraIFlags(t *testing.T) {
	cfg := LineConfig{Baud: 9600, DataBits: 8, StopBits: 1, ExtraIFlags: INLCR | ICRNL}
	term, err := buildTermios(cfg)
	if err != nil {
		t.Fatalf("buildTermios: %v", err)
	}
	if term.Iflag&INLCR == 0 || term.Iflag&ICRNL == 0 {
		t.Fatalf("extra input flags not applied: %o", term.Iflag)
	}
}

func TestStandardBaudLookup(t *testing.T) {
	if _, ok := standardBauds[9600]; !ok {
		t.Fatalf("9600 must be a standard baud")
	}
	if _, ok := standardBauds[123456]; ok {
		t.Fatalf("123456 must not be a standard baud")
	}
}
