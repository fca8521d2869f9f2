package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsFromYAMLMatchesEmbeddedAsset(t *testing.T) {
	c, err := defaultsFromYAML()
	require.NoError(t, err)
	assert.EqualValues(t, 4010, c.Port)
	assert.Equal(t, "audiobridge", c.Hostname)
	assert.Equal(t, ReceiverSpdif, c.DeviceMode)
	assert.EqualValues(t, 48000, c.SampleRate)
}

func TestParseDeviceModeNameRejectsUnknown(t *testing.T) {
	_, err := parseDeviceModeName("bogus")
	assert.Error(t, err)
}

func TestDefaultsFallsBackOnUnparseableEmbeddedAsset(t *testing.T) {
	original := defaultsYAML
	defer func() { defaultsYAML = original }()

	defaultsYAML = []byte("device_mode: not_a_real_mode\n")
	c := Defaults()
	assert.Equal(t, hardcodedDefaults().Port, c.Port)
}
