package audioio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice is an in-memory Device used to exercise the adapters without
// real hardware, the same role the teacher's injected syscall fakes play
// in its config tests.
type fakeDevice struct {
	mu sync.Mutex

	connected    bool
	configureErr error
	writeErrs    []error // consumed in order, then nil
	lastCfg      StreamConfig
	written      [][]byte
	readData     []byte
}

func (f *fakeDevice) Write(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writeErrs) > 0 {
		err := f.writeErrs[0]
		f.writeErrs = f.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	cp := append([]byte(nil), pcm...)
	f.written = append(f.written, cp)
	return len(pcm), nil
}

func (f *fakeDevice) Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(pcm, f.readData)
	return n, nil
}

func (f *fakeDevice) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeDevice) Configure(cfg StreamConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configureErr != nil {
		return f.configureErr
	}
	f.lastCfg = cfg
	return nil
}

func testStreamConfig() StreamConfig {
	return StreamConfig{Channels: 2, BitResolution: 16, SampleRateHz: 48000}
}

func TestUsbSinkStartTransitionsToStreaming(t *testing.T) {
	dev := &fakeDevice{connected: true}
	sink := NewUsbSink(dev, "usb-1", 0)
	require.NoError(t, sink.Initialize())
	require.NoError(t, sink.Start(testStreamConfig()))
	assert.Equal(t, Streaming, sink.State())
	assert.Equal(t, testStreamConfig(), dev.lastCfg)
}

func TestUsbSinkWriteRetriesThenSucceeds(t *testing.T) {
	dev := &fakeDevice{connected: true, writeErrs: []error{assertErr, nil}}
	sink := NewUsbSink(dev, "usb-1", 0)
	require.NoError(t, sink.Start(testStreamConfig()))

	err := sink.Write(context.Background(), make([]byte, 8), time.Second)
	require.NoError(t, err)
	assert.Len(t, dev.written, 1)
}

func TestUsbSinkWriteReconnectsAfterExhaustedRetries(t *testing.T) {
	dev := &fakeDevice{connected: true, writeErrs: []error{assertErr, assertErr, assertErr}}
	sink := NewUsbSink(dev, "usb-1", 0)
	require.NoError(t, sink.Start(testStreamConfig()))

	err := sink.Write(context.Background(), make([]byte, 8), time.Second)
	require.NoError(t, err)
	assert.Equal(t, Streaming, sink.State())
}

func TestUsbSinkWriteFailsWhenDeviceNeverReconnects(t *testing.T) {
	dev := &fakeDevice{connected: false, writeErrs: []error{assertErr, assertErr, assertErr}}
	sink := NewUsbSink(dev, "usb-1", 0)
	dev.connected = true
	require.NoError(t, sink.Start(testStreamConfig()))
	dev.connected = false

	err := sink.Write(context.Background(), make([]byte, 8), time.Second)
	require.Error(t, err)
	assert.Equal(t, Disconnected, sink.State())
}

func TestUsbSinkSetVolumeClamps(t *testing.T) {
	sink := NewUsbSink(&fakeDevice{connected: true}, "usb-1", 0)
	require.NoError(t, sink.SetVolume(-1))
	assert.EqualValues(t, 0, sink.volume)
	require.NoError(t, sink.SetVolume(2))
	assert.EqualValues(t, 1, sink.volume)
}

func TestUsbSinkRestoreAfterWakeReappliesSavedConfig(t *testing.T) {
	dev := &fakeDevice{connected: true}
	sink := NewUsbSink(dev, "usb-1", 0)
	require.NoError(t, sink.Start(testStreamConfig()))
	require.NoError(t, sink.PrepareForSleep())
	assert.Equal(t, Disconnected, sink.State())

	dev.lastCfg = StreamConfig{}
	require.NoError(t, sink.RestoreAfterWake())
	assert.Equal(t, Streaming, sink.State())
	assert.Equal(t, testStreamConfig(), dev.lastCfg)
}

func TestUsbSourceReadPassesThrough(t *testing.T) {
	dev := &fakeDevice{connected: true, readData: []byte{1, 2, 3, 4}}
	src := NewUsbSource(dev)
	require.NoError(t, src.Start(testStreamConfig()))

	buf := make([]byte, 4)
	n, err := src.Read(context.Background(), buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestSpdifSinkStartIsImmediate(t *testing.T) {
	dev := &fakeDevice{connected: true}
	sink := NewSpdifSink(dev, 18)
	require.NoError(t, sink.Start(testStreamConfig()))
	assert.Equal(t, Streaming, sink.State())
}

func TestSpdifSinkWriteIsNonBlocking(t *testing.T) {
	dev := &fakeDevice{connected: true}
	sink := NewSpdifSink(dev, 18)
	require.NoError(t, sink.Start(testStreamConfig()))

	err := sink.Write(context.Background(), make([]byte, 4), time.Second)
	require.NoError(t, err)
	assert.Len(t, dev.written, 1)
}

func TestSpdifSinkWriteErrorPropagates(t *testing.T) {
	dev := &fakeDevice{connected: true, writeErrs: []error{assertErr}}
	sink := NewSpdifSink(dev, 18)
	require.NoError(t, sink.Start(testStreamConfig()))

	err := sink.Write(context.Background(), make([]byte, 4), time.Second)
	require.Error(t, err)
}

func TestSpdifSinkSetSampleRateReprogramsWithoutRestart(t *testing.T) {
	dev := &fakeDevice{connected: true}
	sink := NewSpdifSink(dev, 18)
	require.NoError(t, sink.Start(testStreamConfig()))

	require.NoError(t, sink.SetSampleRate(44100))
	assert.EqualValues(t, 44100, dev.lastCfg.SampleRateHz)
	assert.Equal(t, Streaming, sink.State())
}

func TestSpdifSinkSetPinReprogramsDriver(t *testing.T) {
	dev := &fakeDevice{connected: true}
	sink := NewSpdifSink(dev, 18)
	require.NoError(t, sink.Start(testStreamConfig()))
	assert.EqualValues(t, 18, dev.lastCfg.Pin)

	require.NoError(t, sink.SetPin(23))
	assert.EqualValues(t, 23, dev.lastCfg.Pin)
	assert.EqualValues(t, 48000, dev.lastCfg.SampleRateHz)
	assert.Equal(t, Streaming, sink.State())
}

func TestSpdifSourceReadPassesThrough(t *testing.T) {
	dev := &fakeDevice{connected: true, readData: []byte{9, 9}}
	src := NewSpdifSource(dev, 19)
	require.NoError(t, src.Start(testStreamConfig()))

	buf := make([]byte, 2)
	n, err := src.Read(context.Background(), buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

var assertErr = &fakeErr{"simulated transfer failure"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }
