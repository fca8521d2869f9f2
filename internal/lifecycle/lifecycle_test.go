package lifecycle

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netham45/rtpbridge/internal/audioio"
	"github.com/netham45/rtpbridge/internal/config"
	"github.com/netham45/rtpbridge/internal/external"
	"github.com/netham45/rtpbridge/internal/stats"
)

// fakeSink is an in-memory audioio.Sink standing in for a real USB/S-PDIF
// adapter, the same seam audioio_test.go exercises with fakeDevice.
type fakeSink struct {
	mu       sync.Mutex
	state    audioio.ConnectionState
	volume   float32
	cfg      audioio.StreamConfig
	written  int
}

func (s *fakeSink) Initialize() error { return nil }
func (s *fakeSink) Start(cfg audioio.StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.state = audioio.Streaming
	return nil
}
func (s *fakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = audioio.Ready
	return nil
}
func (s *fakeSink) Deinitialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = audioio.Disconnected
	return nil
}
func (s *fakeSink) IsConnected() bool { return true }
func (s *fakeSink) Write(ctx context.Context, pcm []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written++
	return nil
}
func (s *fakeSink) SetVolume(v float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	return nil
}
func (s *fakeSink) PrepareForSleep() error   { return nil }
func (s *fakeSink) RestoreAfterWake() error  { return nil }
func (s *fakeSink) State() audioio.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// fakeSource is an in-memory audioio.Source that always yields silence.
type fakeSource struct{}

func (f *fakeSource) Initialize() error                  { return nil }
func (f *fakeSource) Start(audioio.StreamConfig) error    { return nil }
func (f *fakeSource) Stop() error                         { return nil }
func (f *fakeSource) Deinitialize() error                 { return nil }
func (f *fakeSource) IsConnected() bool                   { return true }
func (f *fakeSource) PrepareForSleep() error              { return nil }
func (f *fakeSource) RestoreAfterWake() error             { return nil }
func (f *fakeSource) State() audioio.ConnectionState      { return audioio.Streaming }
func (f *fakeSource) Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	for i := range pcm {
		pcm[i] = 0
	}
	return len(pcm), nil
}

func newTestDeps(t *testing.T, mode config.DeviceMode, port, senderPort uint16) (Deps, *fakeSink, *fakeSink) {
	t.Helper()
	store, err := config.Load(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(config.KeyDeviceMode, mode))
	require.NoError(t, store.Set(config.KeyPort, port))
	require.NoError(t, store.Set(config.KeySenderDestinationPort, senderPort))
	require.NoError(t, store.Set(config.KeySenderDestinationIP, "127.0.0.1"))
	require.NoError(t, store.Set(config.KeySetupWizardCompleted, true))

	usbSink := &fakeSink{}
	spdifSink := &fakeSink{}

	deps := Deps{
		Store:              store,
		UsbSink:            usbSink,
		UsbSource:          &fakeSource{},
		SpdifSink:          spdifSink,
		SpdifSource:        &fakeSource{},
		LocalMAC:           net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		LocalAddrs:         []net.IP{net.ParseIP("127.0.0.1")},
		Advertiser:         external.NoopAdvertiser{},
		NTPClient:          external.NoopNTPClient{},
		SAPListener:        external.NoopSAPListener{},
		WebServer:          external.NoopWebServer{},
		OTAManager:         external.NoopOTAManager{},
		BatteryMonitor:     external.NoopBatteryMonitor{},
		CaptivePortal:      external.NoopCaptivePortal{},
		NetworkProvisioner: external.NoopNetworkProvisioner{},
		Counters:           stats.NewCounters(),
	}
	return deps, usbSink, spdifSink
}

func TestStartEntersConfiguredModeWhenWizardCompleted(t *testing.T) {
	deps, _, _ := newTestDeps(t, config.ReceiverSpdif, 41100, 41101)
	c := New(deps)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Equal(t, ModeReceiverSpdif, c.State())
}

func TestStartAwaitsModeConfigWhenWizardIncomplete(t *testing.T) {
	deps, _, _ := newTestDeps(t, config.ReceiverSpdif, 41102, 41103)
	require.NoError(t, deps.Store.Set(config.KeySetupWizardCompleted, false))
	c := New(deps)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Equal(t, AwaitingModeConfig, c.State())
}

func TestSenderModeStartsEgressTransmitter(t *testing.T) {
	deps, _, _ := newTestDeps(t, config.SenderUsb, 41104, 41105)
	c := New(deps)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.Equal(t, ModeSenderUsb, c.State())
	c.mu.Lock()
	tx := c.tx
	c.mu.Unlock()
	require.NotNil(t, tx)
}

func TestVolumeChangeAppliesToUsbSink(t *testing.T) {
	deps, usbSink, _ := newTestDeps(t, config.ReceiverUsb, 41106, 41107)
	c := New(deps)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	require.Equal(t, ModeReceiverUsb, c.State())

	newCfg := deps.Store.Snapshot()
	newCfg.Volume = 0.25
	c.handleConfigurationChanged(&newCfg)

	require.InDelta(t, 0.25, usbSink.volume, 1e-6)
}

func TestEnterSleepAndWakeUpRoundTrip(t *testing.T) {
	deps, _, _ := newTestDeps(t, config.ReceiverSpdif, 41108, 41109)
	c := New(deps)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	require.Equal(t, ModeReceiverSpdif, c.State())

	c.handleEnterSleep()
	require.Equal(t, Sleeping, c.State())
	require.Equal(t, ModeReceiverSpdif, c.resumeState)

	c.handleWakeUp()
	require.Equal(t, ModeReceiverSpdif, c.State())
}

func TestStartPairingSuspendsModeAndCancelResumesIt(t *testing.T) {
	deps, _, _ := newTestDeps(t, config.ReceiverSpdif, 41110, 41111)
	c := New(deps)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	require.Equal(t, ModeReceiverSpdif, c.State())

	c.handleStartPairing()
	require.Equal(t, Pairing, c.State())

	c.handleEndPairing()
	require.Equal(t, ModeReceiverSpdif, c.State())
}

func TestEventQueueDoesNotBlockOnFullQueue(t *testing.T) {
	deps, _, _ := newTestDeps(t, config.ReceiverSpdif, 41112, 41113)
	c := New(deps)
	for i := 0; i < queueDepth*2; i++ {
		c.Post(Event{Type: EvWifiConnected})
	}
}

func TestDeviceModeChangeRestartsIntoNewMode(t *testing.T) {
	deps, _, spdifSink := newTestDeps(t, config.ReceiverSpdif, 41114, 41115)
	c := New(deps)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	require.Equal(t, ModeReceiverSpdif, c.State())

	newCfg := deps.Store.Snapshot()
	newCfg.DeviceMode = config.SenderUsb
	c.handleConfigurationChanged(&newCfg)

	require.Equal(t, ModeSenderUsb, c.State())
	require.Equal(t, audioio.Disconnected, spdifSink.State())
}
