package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedsDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Port, s.Snapshot().Port)
}

// R2
func TestSaveAllThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyHostname, "studio-left"))
	require.NoError(t, s.Set(KeySampleRate, uint32(44100)))
	require.NoError(t, s.SaveAll())

	reloaded, err := Load(dir)
	require.NoError(t, err)
	got := reloaded.Snapshot()
	assert.Equal(t, "studio-left", got.Hostname)
	assert.EqualValues(t, 44100, got.SampleRate)
}

func TestLoadWipesCorruptBackingStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.ini"), []byte("[default\nnot valid ini"), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Hostname, s.Snapshot().Hostname)

	raw, err := os.ReadFile(filepath.Join(dir, "app_config.ini"))
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

// P4
func TestDeviceModeKeepsLegacyBooleansConsistent(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyDeviceMode, SenderUsb))
	got := s.Snapshot()
	assert.True(t, got.EnableUsbSender)
	assert.False(t, got.EnableSpdifSender)

	require.NoError(t, s.Set(KeyDeviceMode, SenderSpdif))
	got = s.Snapshot()
	assert.False(t, got.EnableUsbSender)
	assert.True(t, got.EnableSpdifSender)

	require.NoError(t, s.Set(KeyDeviceMode, ReceiverUsb))
	got = s.Snapshot()
	assert.False(t, got.EnableUsbSender)
	assert.False(t, got.EnableSpdifSender)
}

// B4
func TestVolumeIsClamped(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyVolume, float32(-0.1)))
	assert.EqualValues(t, 0, s.Snapshot().Volume)

	require.NoError(t, s.Set(KeyVolume, float32(1.5)))
	assert.EqualValues(t, 1, s.Snapshot().Volume)
}

func TestSpdifPinIsClamped(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeySpdifDataPin, uint8(200)))
	assert.EqualValues(t, 39, s.Snapshot().SpdifDataPin)
}

func TestMigrationDerivesDeviceModeFromLegacyBooleans(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app_config.ini")
	require.NoError(t, os.WriteFile(path, []byte("enable_spdif_sender = true\n"), 0o644))

	s, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, SenderSpdif, s.Snapshot().DeviceMode)
}

func TestBatchUpdateIsAtomicOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)

	before := s.Snapshot()
	err = s.BatchUpdate(map[string]any{
		KeyHostname:   "newname",
		KeySampleRate: "not-a-number", // invalid
	})
	require.Error(t, err)
	assert.Equal(t, before, s.Snapshot(), "partial batch must not apply")
}

func TestResetToDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyHostname, "changed"))

	require.NoError(t, s.ResetToDefaults())
	assert.Equal(t, Defaults().Hostname, s.Snapshot().Hostname)
}

func TestGetTypedUnknownKey(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	require.NoError(t, err)
	_, ok := s.GetTyped("does_not_exist")
	assert.False(t, ok)
}
