package alert

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comterm/comterm/internal/config"
)

func TestBellAlert(t *testing.T) {
	out := &bytes.Buffer{}
	a := New(config.AlertBell, out)
	a.Connect()
	require.Equal(t, []byte{7}, out.Bytes())

	a.Disconnect()
	require.Equal(t, []byte{7, 7}, out.Bytes())
}

func TestNoneAlertIsSilent(t *testing.T) {
	out := &bytes.Buffer{}
	a := New(config.AlertNone, out)
	a.Connect()
	a.Disconnect()
	require.Empty(t, out.Bytes())
}

func TestBlinkAlertBracketsVisualBell(t *testing.T) {
	out := &bytes.Buffer{}
	New(config.AlertBlink, out).Connect()
	require.Equal(t, "\x1b[?5h\x1b[?5l", out.String())
}
