package logfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")

	w, err := Open(path, false)
	require.NoError(t, err)
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Reopening appends rather than truncating.
	w, err = Open(path, false)
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(data))
}

func TestStripControlBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	w, err := Open(path, true)
	require.NoError(t, err)

	n, err := w.Write([]byte("a\x1b[1mb\r\nc\td"))
	require.NoError(t, err)
	require.Equal(t, 11, n, "reported count covers the original bytes")
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a[1mb\nc\td", string(data))
}

func TestCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	w, err := Open(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
