package chrome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDevice(t *testing.T) {
	_, ok, err := LookupDevice("")
	require.NoError(t, err)
	assert.False(t, ok)

	dev, ok, err := LookupDevice("Desktop 1280x800")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1280), dev.Width)
	assert.Equal(t, int64(800), dev.Height)
	assert.False(t, dev.Mobile)

	_, _, err = LookupDevice("Nokia 3310")
	assert.ErrorContains(t, err, "unknown device")
}

func TestDeviceNames_Sorted(t *testing.T) {
	names := DeviceNames()
	require.Len(t, names, len(Devices))
	assert.IsIncreasing(t, names)
}
