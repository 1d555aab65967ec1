package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Opening a real serial device is not possible in CI; these tests cover the
// contract around an unopened port.

func TestSerialTransportNotOpen(t *testing.T) {
	require := require.New(t)

	tr := NewSerial("/dev/ttyUSB0", 115200)

	require.False(tr.IsOpen())

	_, err := tr.Write([]byte("VOLT 1.000\r\n"))
	require.ErrorIs(err, ErrNotOpen)

	_, err = tr.Read(make([]byte, 8))
	require.ErrorIs(err, ErrNotOpen)

	// Close without a prior open is a no-op.
	require.NoError(tr.Close())
	require.NoError(tr.Close())
}

func TestSerialTransportOpenMissingDevice(t *testing.T) {
	require := require.New(t)

	tr := NewSerial("/dev/does-not-exist", 115200)
	require.ErrorIs(tr.Open(), ErrConnFailed)
	require.False(tr.IsOpen())
}

func TestSerialTransportSetReadTimeoutBeforeOpen(t *testing.T) {
	require := require.New(t)

	tr := NewSerial("/dev/ttyUSB0", 115200)
	require.NoError(tr.SetReadTimeout(2 * time.Second))
	require.Equal(2*time.Second, tr.timeout)
}
