package diag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWarnSuppressedUnderMute(t *testing.T) {
	out := &bytes.Buffer{}
	d := New(out, true)
	d.Warn("should not appear")
	require.Empty(t, out.String())

	d.SetMute(false)
	d.Warn("now visible")
	require.Contains(t, out.String(), "now visible")
}

func TestErrorNeverSuppressed(t *testing.T) {
	out := &bytes.Buffer{}
	d := New(out, true)
	d.Error("fatal-ish")
	require.Contains(t, out.String(), "fatal-ish")
}

func TestColorForIndex(t *testing.T) {
	require.Nil(t, ColorForIndex("none"))
	require.Nil(t, ColorForIndex(""))
	require.NotNil(t, ColorForIndex("bold"))
	require.NotNil(t, ColorForIndex("42"))
	require.Nil(t, ColorForIndex("300"))
	require.Nil(t, ColorForIndex("chartreuse"))
}
